// Package scheduler provides cron-based scheduling for Clarity Room.
//
// It runs check-in reminders and housekeeping such as idle session sweeps.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// ErrDuplicateJob is returned when a named job is scheduled twice.
var ErrDuplicateJob = errors.New("job already scheduled")

// parser accepts standard 5-field expressions and descriptors such as
// "@daily" or "@every 30m".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports whether expr is a schedule the scheduler accepts.
func Validate(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron  *cron.Cron
	mu    sync.Mutex
	named map[string]cron.EntryID
}

// NewScheduler creates and starts a cron scheduler. Panicking jobs are
// recovered and logged.
func NewScheduler() *Scheduler {
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c, named: make(map[string]cron.EntryID)}
}

// AddJob schedules an anonymous task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	if _, err := s.cron.AddFunc(expr, task); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	slog.Debug("Scheduler AddJob", "expr", expr)
	return nil
}

// Schedule adds a task under id so it can be removed later.
func (s *Scheduler) Schedule(id, expr string, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.named[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, id)
	}
	entryID, err := s.cron.AddFunc(expr, task)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	s.named[id] = entryID
	slog.Debug("Scheduler Schedule", "id", id, "expr", expr, "next", s.cron.Entry(entryID).Next)
	return nil
}

// Remove unschedules the task registered under id. It reports whether a task
// was found.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.named[id]
	if !ok {
		return false
	}
	s.cron.Remove(entryID)
	delete(s.named, id)
	slog.Debug("Scheduler Remove", "id", id)
	return true
}

// Has reports whether a task is registered under id.
func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.named[id]
	return ok
}

// Len returns the number of scheduled entries, named or not.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
