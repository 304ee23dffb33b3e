package sentiment

import (
	"context"

	"github.com/BTreeMap/ClarityRoom/internal/models"
)

// Analyzer scores a piece of free text. Implementations may call out to a
// remote model, so callers pass a context that bounds the call.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (models.SentimentResult, error)
}

// AnalyzerFunc adapts an ordinary function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, text string) (models.SentimentResult, error)

// Analyze calls f(ctx, text).
func (f AnalyzerFunc) Analyze(ctx context.Context, text string) (models.SentimentResult, error) {
	return f(ctx, text)
}
