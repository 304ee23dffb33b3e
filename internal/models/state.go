// Package models defines session state structures for the journaling flow.
package models

import "time"

// StateType represents a specific state within the journaling flow.
type StateType string

// Journaling flow states.
const (
	StateNoMoodSelected StateType = "no_mood_selected"
	StateMoodSelected   StateType = "mood_selected"
	StatePromptsShown   StateType = "prompts_shown"
	StateResultShown    StateType = "result_shown"
)

// Session is a snapshot of one user's journaling session. Snapshots are values:
// flow operations return a new snapshot instead of mutating the one passed in.
type Session struct {
	ID        string      `json:"id"`
	State     StateType   `json:"state"`
	Mood      Mood        `json:"mood,omitempty"` // empty while no mood is selected
	Prompts   []string    `json:"prompts,omitempty"`
	Result    *Reflection `json:"result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewSession returns a session in its initial state.
func NewSession(id string, now time.Time) Session {
	return Session{
		ID:        id,
		State:     StateNoMoodSelected,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the snapshot.
func (s Session) Clone() Session {
	out := s
	if s.Prompts != nil {
		out.Prompts = append([]string(nil), s.Prompts...)
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return out
}
