package catalog

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/BTreeMap/ClarityRoom/internal/models"
)

// Selector draws reflection prompts from the catalog, uniformly at random and
// without replacement.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a Selector using rng as its randomness source. A nil rng
// uses a PCG source seeded from the process-wide generator.
func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{rng: rng}
}

// NewSeededSelector creates a deterministic Selector, mainly for tests and the CLI --seed flag.
func NewSeededSelector(seed uint64) *Selector {
	return NewSelector(rand.New(rand.NewPCG(seed, seed)))
}

// Select returns count distinct prompts from the catalog of mood.
// count must be between 0 and the number of prompts defined for mood.
func (s *Selector) Select(mood models.Mood, count int) ([]string, error) {
	t, ok := themes[mood]
	if !ok {
		return nil, fmt.Errorf("%w: unknown mood %q", models.ErrInvalidArgument, mood)
	}
	available := len(t.Prompts)
	if count < 0 || count > available {
		slog.Warn("Selector.Select: prompt count out of range", "mood", mood, "count", count, "available", available)
		return nil, fmt.Errorf("%w: requested %d prompts for mood %q, %d available", models.ErrInvalidArgument, count, mood, available)
	}

	pool := append([]string(nil), t.Prompts...)
	s.mu.Lock()
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	s.mu.Unlock()

	slog.Debug("Selector.Select: prompts selected", "mood", mood, "count", count)
	return pool[:count:count], nil
}
