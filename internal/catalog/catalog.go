// Package catalog holds the fixed mood catalog (reflection prompts and presentation
// theme per mood) and the prompt selector drawing from it.
package catalog

import (
	"fmt"

	"github.com/BTreeMap/ClarityRoom/internal/models"
)

// Theme is the static configuration attached to one mood.
type Theme struct {
	Mood    models.Mood `json:"mood"`
	Label   string      `json:"label"`
	Color   string      `json:"color"`
	Accent  string      `json:"accent"`
	Emoji   string      `json:"emoji"`
	Prompts []string    `json:"prompts"`
}

// order is the canonical display order.
var order = []models.Mood{
	models.MoodHappy,
	models.MoodSad,
	models.MoodAngry,
	models.MoodAnxious,
	models.MoodNeutral,
}

var themes = map[models.Mood]Theme{
	models.MoodHappy: {
		Mood:   models.MoodHappy,
		Label:  "Happy",
		Color:  "#FFF8E1",
		Accent: "#F9A825",
		Emoji:  "😊",
		Prompts: []string{
			"What's bringing you joy today?",
			"Who or what made you smile recently?",
			"How can you spread this positivity forward?",
		},
	},
	models.MoodSad: {
		Mood:   models.MoodSad,
		Label:  "Sad",
		Color:  "#E3F2FD",
		Accent: "#1E88E5",
		Emoji:  "😢",
		Prompts: []string{
			"What are you feeling right now, and why?",
			"What do you wish someone understood about your feelings?",
			"What can help you feel slightly better in this moment?",
		},
	},
	models.MoodAngry: {
		Mood:   models.MoodAngry,
		Label:  "Angry",
		Color:  "#FFEBEE",
		Accent: "#E53935",
		Emoji:  "😠",
		Prompts: []string{
			"What triggered this anger?",
			"Is this reaction protecting something important to you?",
			"What would help release this anger safely?",
		},
	},
	models.MoodAnxious: {
		Mood:   models.MoodAnxious,
		Label:  "Anxious",
		Color:  "#F3E5F5",
		Accent: "#8E24AA",
		Emoji:  "😰",
		Prompts: []string{
			"What thoughts are making you uneasy?",
			"What's one small thing you can control today?",
			"Can you reframe this thought with kindness?",
		},
	},
	models.MoodNeutral: {
		Mood:   models.MoodNeutral,
		Label:  "Neutral",
		Color:  "#ECEFF1",
		Accent: "#546E7A",
		Emoji:  "😐",
		Prompts: []string{
			"How do you feel in your body right now?",
			"What would make this day feel more meaningful?",
			"What are you grateful for today?",
		},
	},
}

// Moods returns the five moods in display order.
func Moods() []models.Mood {
	return append([]models.Mood(nil), order...)
}

// Themes returns the full catalog. Every call returns a fresh copy, so callers
// may modify the result freely.
func Themes() map[models.Mood]Theme {
	out := make(map[models.Mood]Theme, len(themes))
	for m, t := range themes {
		out[m] = t.clone()
	}
	return out
}

// Lookup returns the theme for one mood.
func Lookup(mood models.Mood) (Theme, error) {
	t, ok := themes[mood]
	if !ok {
		return Theme{}, fmt.Errorf("%w: unknown mood %q", models.ErrInvalidArgument, mood)
	}
	return t.clone(), nil
}

// Contains reports whether prompt belongs to the catalog of mood.
func Contains(mood models.Mood, prompt string) bool {
	for _, p := range themes[mood].Prompts {
		if p == prompt {
			return true
		}
	}
	return false
}

func (t Theme) clone() Theme {
	t.Prompts = append([]string(nil), t.Prompts...)
	return t
}
