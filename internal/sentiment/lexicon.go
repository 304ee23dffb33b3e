package sentiment

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/BTreeMap/ClarityRoom/internal/models"
)

type score struct {
	polarity     float64
	subjectivity float64
}

// defaultLexicon holds adjectives and verbs common in short journal entries.
var defaultLexicon = map[string]score{
	"wonderful":   {1.0, 1.0},
	"amazing":     {0.6, 0.9},
	"great":       {0.8, 0.75},
	"good":        {0.7, 0.6},
	"happy":       {0.8, 1.0},
	"glad":        {0.5, 1.0},
	"calm":        {0.3, 0.75},
	"grateful":    {0.6, 0.8},
	"proud":       {0.8, 1.0},
	"love":        {0.5, 0.6},
	"loved":       {0.7, 0.8},
	"excited":     {0.4, 0.75},
	"hopeful":     {0.5, 0.8},
	"relaxed":     {0.4, 0.6},
	"peaceful":    {0.5, 0.7},
	"fine":        {0.4, 0.5},
	"okay":        {0.1, 0.5},
	"better":      {0.5, 0.5},
	"best":        {1.0, 0.3},
	"fun":         {0.3, 0.2},
	"sad":         {-0.5, 1.0},
	"bad":         {-0.7, 0.67},
	"terrible":    {-1.0, 1.0},
	"awful":       {-1.0, 1.0},
	"horrible":    {-1.0, 1.0},
	"angry":       {-0.5, 1.0},
	"furious":     {-0.8, 0.9},
	"anxious":     {-0.3, 0.8},
	"worried":     {-0.4, 0.7},
	"nervous":     {-0.3, 0.8},
	"scared":      {-0.5, 0.8},
	"afraid":      {-0.6, 0.9},
	"lonely":      {-0.5, 0.9},
	"tired":       {-0.4, 0.7},
	"exhausted":   {-0.6, 0.8},
	"stressed":    {-0.5, 0.8},
	"overwhelmed": {-0.6, 0.8},
	"upset":       {-0.6, 0.9},
	"hate":        {-0.8, 0.9},
	"hurt":        {-0.5, 0.8},
	"worse":       {-0.4, 0.6},
	"worst":       {-1.0, 1.0},
	"frustrated":  {-0.7, 0.8},
	"miserable":   {-1.0, 1.0},
	"boring":      {-0.4, 0.8},
}

var defaultIntensifiers = map[string]float64{
	"very":       1.3,
	"really":     1.3,
	"so":         1.3,
	"extremely":  1.5,
	"incredibly": 1.5,
	"truly":      1.2,
	"super":      1.4,
	"quite":      1.1,
	"slightly":   0.5,
	"somewhat":   0.7,
	"little":     0.6,
}

var defaultNegators = map[string]bool{
	"not":     true,
	"no":      true,
	"never":   true,
	"neither": true,
	"nor":     true,
	"dont":    true,
	"don't":   true,
	"didnt":   true,
	"didn't":  true,
	"isnt":    true,
	"isn't":   true,
	"wasnt":   true,
	"wasn't":  true,
	"cant":    true,
	"can't":   true,
	"wont":    true,
	"won't":   true,
	"hardly":  true,
}

// negationFactor is applied to the polarity of a negated hit.
const negationFactor = -0.5

// LexiconAnalyzer is an offline scorer. Each known word contributes its
// polarity and subjectivity, adjusted by a directly preceding intensifier or
// negator, and the result is the mean over all hits.
type LexiconAnalyzer struct {
	lexicon      map[string]score
	intensifiers map[string]float64
	negators     map[string]bool
}

// NewLexiconAnalyzer returns an analyzer over the built-in word lists.
func NewLexiconAnalyzer() *LexiconAnalyzer {
	return &LexiconAnalyzer{
		lexicon:      defaultLexicon,
		intensifiers: defaultIntensifiers,
		negators:     defaultNegators,
	}
}

// Analyze scores text. Text without any lexicon hit scores (0, 0).
func (a *LexiconAnalyzer) Analyze(ctx context.Context, text string) (models.SentimentResult, error) {
	if err := ctx.Err(); err != nil {
		return models.SentimentResult{}, err
	}
	words := tokenize(text)

	var sumPol, sumSubj float64
	hits := 0
	for i, w := range words {
		s, ok := a.lexicon[w]
		if !ok {
			continue
		}
		pol, subj := s.polarity, s.subjectivity

		j := i - 1
		if j >= 0 {
			if mult, ok := a.intensifiers[words[j]]; ok {
				pol = clamp(pol*mult, -1, 1)
				subj = clamp(subj*mult, 0, 1)
				j--
			}
		}
		if j >= 0 && a.negators[words[j]] {
			pol *= negationFactor
		}

		sumPol += pol
		sumSubj += subj
		hits++
	}

	if hits == 0 {
		slog.Debug("LexiconAnalyzer.Analyze: no lexicon hits", "words", len(words))
		return models.SentimentResult{}, nil
	}
	result := models.SentimentResult{
		Polarity:     sumPol / float64(hits),
		Subjectivity: sumSubj / float64(hits),
	}
	slog.Debug("LexiconAnalyzer.Analyze: scored", "hits", hits, "polarity", result.Polarity, "subjectivity", result.Subjectivity)
	return result, nil
}

// tokenize lower-cases text and splits it into words. Apostrophes are kept so
// that contractions like "don't" survive as one token.
func tokenize(text string) []string {
	lower := strings.ReplaceAll(strings.ToLower(text), "’", "'")
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
