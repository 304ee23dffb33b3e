package models

import "math"

// Band is the three-way classification outcome of polarity thresholding.
type Band string

const (
	BandPositive Band = "positive"
	BandNegative Band = "negative"
	BandNeutral  Band = "neutral"
)

// SentimentResult is the pair produced by a sentiment collaborator for one text.
// Polarity is conventionally in [-1, 1] and subjectivity in [0, 1].
type SentimentResult struct {
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
}

// IsFinite reports whether both scores are real numbers (not NaN or infinite).
func (r SentimentResult) IsFinite() bool {
	return !math.IsNaN(r.Polarity) && !math.IsInf(r.Polarity, 0) &&
		!math.IsNaN(r.Subjectivity) && !math.IsInf(r.Subjectivity, 0)
}

// Reflection is what the user sees after a successful submission.
type Reflection struct {
	Sentiment SentimentResult `json:"sentiment"`
	Band      Band            `json:"band"`
	Feedback  string          `json:"feedback"`
}
