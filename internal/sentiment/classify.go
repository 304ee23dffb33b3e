// Package sentiment turns raw sentiment scores into a band and a feedback
// message, and provides the analyzers that produce those scores.
package sentiment

import "github.com/BTreeMap/ClarityRoom/internal/models"

// Polarity thresholds. Comparisons are strict: a polarity exactly on a
// threshold is neutral.
const (
	PositiveThreshold = 0.2
	NegativeThreshold = -0.2
)

// Feedback messages shown for each band.
const (
	FeedbackPositive = "🌟 It sounds like you're in a positive place. Hold on to this energy."
	FeedbackNegative = "💙 It's okay to feel this way. You've done well by opening up."
	FeedbackNeutral  = "🧘 Thank you for sharing. You're creating space for clarity."
)

// Classify maps a polarity score to a band. NaN classifies as neutral.
func Classify(polarity float64) models.Band {
	switch {
	case polarity > PositiveThreshold:
		return models.BandPositive
	case polarity < NegativeThreshold:
		return models.BandNegative
	default:
		return models.BandNeutral
	}
}

// Feedback returns the canonical message for a band. Unknown bands get the
// neutral message.
func Feedback(band models.Band) string {
	switch band {
	case models.BandPositive:
		return FeedbackPositive
	case models.BandNegative:
		return FeedbackNegative
	default:
		return FeedbackNeutral
	}
}

// Reflect builds the reflection shown to the user for a scored text.
func Reflect(result models.SentimentResult) models.Reflection {
	band := Classify(result.Polarity)
	return models.Reflection{
		Sentiment: result,
		Band:      band,
		Feedback:  Feedback(band),
	}
}
