package models

import (
	"fmt"
	"strings"
)

// Mood is the user-selected emotional category driving which prompts are shown.
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodSad     Mood = "sad"
	MoodAngry   Mood = "angry"
	MoodAnxious Mood = "anxious"
	MoodNeutral Mood = "neutral"
)

// IsValid reports whether m is one of the five known moods.
func (m Mood) IsValid() bool {
	switch m {
	case MoodHappy, MoodSad, MoodAngry, MoodAnxious, MoodNeutral:
		return true
	default:
		return false
	}
}

// ParseMood canonicalizes a mood identifier. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unknown mood %q", ErrInvalidArgument, s)
	}
	return m, nil
}
