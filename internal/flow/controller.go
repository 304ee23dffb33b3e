// Package flow drives the journaling session state machine: mood selection,
// prompt generation and submission of the written entry.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/ClarityRoom/internal/catalog"
	"github.com/BTreeMap/ClarityRoom/internal/models"
	"github.com/BTreeMap/ClarityRoom/internal/sentiment"
	"github.com/google/uuid"
)

// DefaultPromptCount is the number of prompts shown per generation.
const DefaultPromptCount = 2

// EmptyEntryWarning is shown when the user submits a blank entry.
const EmptyEntryWarning = "Please write something before analyzing your reflection."

// Recorder persists finished journal entries.
type Recorder interface {
	AddEntry(entry models.JournalEntry) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithPromptCount sets how many prompts Generate selects.
func WithPromptCount(n int) Option {
	return func(c *Controller) {
		c.promptCount = n
	}
}

// WithSelector sets the prompt selector. Use a seeded selector for
// reproducible prompt choices.
func WithSelector(s *catalog.Selector) Option {
	return func(c *Controller) {
		if s != nil {
			c.selector = s
		}
	}
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithAutoGenerate makes Pick continue straight into Generate.
func WithAutoGenerate(enabled bool) Option {
	return func(c *Controller) {
		c.autoGenerate = enabled
	}
}

// WithRecorder records a journal entry after every accepted submission.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// Controller applies user actions to session snapshots. It holds no session
// state of its own and is safe for concurrent use.
type Controller struct {
	analyzer     sentiment.Analyzer
	selector     *catalog.Selector
	promptCount  int
	autoGenerate bool
	recorder     Recorder
	now          func() time.Time
}

// NewController creates a controller that scores entries with analyzer.
func NewController(analyzer sentiment.Analyzer, opts ...Option) *Controller {
	c := &Controller{
		analyzer:    analyzer,
		promptCount: DefaultPromptCount,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.selector == nil {
		c.selector = catalog.NewSelector(nil)
	}
	slog.Debug("flow.NewController: created", "prompt_count", c.promptCount, "auto_generate", c.autoGenerate, "recorder", c.recorder != nil)
	return c
}

// PromptCount returns the number of prompts selected per generation.
func (c *Controller) PromptCount() int {
	return c.promptCount
}

// Pick selects a mood. It is accepted in every state and discards any prompts
// and result from the previous mood.
func (c *Controller) Pick(s models.Session, mood models.Mood) (models.Session, error) {
	if !mood.IsValid() {
		slog.Warn("Controller.Pick: unknown mood", "session_id", s.ID, "mood", mood)
		return s, fmt.Errorf("%w: unknown mood %q", models.ErrInvalidArgument, mood)
	}

	next := s.Clone()
	next.State = models.StateMoodSelected
	next.Mood = mood
	next.Prompts = nil
	next.Result = nil
	next.UpdatedAt = c.now()
	slog.Debug("Controller.Pick: mood selected", "session_id", s.ID, "from", s.State, "mood", mood)

	if !c.autoGenerate {
		return next, nil
	}
	generated, err := c.Generate(next)
	if err != nil {
		return s, err
	}
	return generated, nil
}

// Generate selects fresh prompts for the current mood. From PromptsShown or
// ResultShown it acts as a re-roll and discards the result.
func (c *Controller) Generate(s models.Session) (models.Session, error) {
	switch s.State {
	case models.StateMoodSelected, models.StatePromptsShown, models.StateResultShown:
	default:
		slog.Warn("Controller.Generate: no mood selected", "session_id", s.ID, "state", s.State)
		return s, fmt.Errorf("%w: cannot generate prompts in state %s", models.ErrInvalidTransition, s.State)
	}

	prompts, err := c.selector.Select(s.Mood, c.promptCount)
	if err != nil {
		slog.Error("Controller.Generate: prompt selection failed", "session_id", s.ID, "mood", s.Mood, "count", c.promptCount, "error", err)
		return s, err
	}

	next := s.Clone()
	next.State = models.StatePromptsShown
	next.Prompts = prompts
	next.Result = nil
	next.UpdatedAt = c.now()
	slog.Debug("Controller.Generate: prompts shown", "session_id", s.ID, "mood", s.Mood, "count", len(prompts))
	return next, nil
}

// Submit scores the written entry and shows the reflection. Blank text is
// rejected with a *models.ValidationError before the analyzer is called. On
// any error the input snapshot is returned unchanged.
func (c *Controller) Submit(ctx context.Context, s models.Session, text string) (models.Session, error) {
	switch s.State {
	case models.StatePromptsShown, models.StateResultShown:
	default:
		slog.Warn("Controller.Submit: prompts not shown", "session_id", s.ID, "state", s.State)
		return s, fmt.Errorf("%w: cannot submit in state %s", models.ErrInvalidTransition, s.State)
	}

	if strings.TrimSpace(text) == "" {
		slog.Debug("Controller.Submit: empty entry rejected", "session_id", s.ID)
		return s, &models.ValidationError{Warning: EmptyEntryWarning}
	}

	result, err := c.analyzer.Analyze(ctx, text)
	if err != nil {
		slog.Error("Controller.Submit: sentiment analysis failed", "session_id", s.ID, "error", err)
		return s, fmt.Errorf("%w: %w", models.ErrCollaboratorFailure, err)
	}
	if !result.IsFinite() {
		slog.Error("Controller.Submit: sentiment analysis returned non-finite score", "session_id", s.ID, "polarity", result.Polarity, "subjectivity", result.Subjectivity)
		return s, fmt.Errorf("%w: non-finite score", models.ErrCollaboratorFailure)
	}

	reflection := sentiment.Reflect(result)
	now := c.now()

	next := s.Clone()
	next.State = models.StateResultShown
	next.Result = &reflection
	next.UpdatedAt = now
	slog.Info("Controller.Submit: reflection shown", "session_id", s.ID, "mood", s.Mood, "band", reflection.Band)

	c.record(next, text, now)
	return next, nil
}

// record stores the finished entry. Failures are logged only; the reflection
// has already been produced.
func (c *Controller) record(s models.Session, text string, now time.Time) {
	if c.recorder == nil {
		return
	}
	entry := models.JournalEntry{
		ID:           uuid.NewString(),
		SessionID:    s.ID,
		Mood:         s.Mood,
		Prompts:      append([]string(nil), s.Prompts...),
		Text:         text,
		Polarity:     s.Result.Sentiment.Polarity,
		Subjectivity: s.Result.Sentiment.Subjectivity,
		Band:         s.Result.Band,
		Feedback:     s.Result.Feedback,
		CreatedAt:    now,
	}
	if err := c.recorder.AddEntry(entry); err != nil {
		slog.Error("Controller.record: failed to record journal entry", "session_id", s.ID, "entry_id", entry.ID, "error", err)
		return
	}
	slog.Debug("Controller.record: journal entry recorded", "session_id", s.ID, "entry_id", entry.ID)
}
