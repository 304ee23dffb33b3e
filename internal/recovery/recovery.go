// Package recovery restores scheduled state after Clarity Room restarts.
// Components register their own recovery logic; the manager runs them at startup.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ClarityRoom/internal/store"
)

// Recoverable defines the interface for components that can recover their state
type Recoverable interface {
	// RecoverState is called during application startup to restore component state
	RecoverState(ctx context.Context, registry *RecoveryRegistry) error
}

// ReminderRecoveryInfo holds what is needed to put a persisted reminder back on the schedule.
type ReminderRecoveryInfo struct {
	ReminderID string
	To         string
	Cron       string
	CreatedAt  time.Time
}

// RecoveryRegistry provides services that components can use during recovery
type RecoveryRegistry struct {
	store store.Store

	reminderRecoveryFunc func(ReminderRecoveryInfo) error
}

// NewRecoveryRegistry creates a new recovery registry
func NewRecoveryRegistry(st store.Store) *RecoveryRegistry {
	return &RecoveryRegistry{store: st}
}

// RegisterReminderRecovery registers a callback for reminder recovery
func (r *RecoveryRegistry) RegisterReminderRecovery(fn func(ReminderRecoveryInfo) error) {
	r.reminderRecoveryFunc = fn
}

// RecoverReminder requests recovery of a reminder
func (r *RecoveryRegistry) RecoverReminder(info ReminderRecoveryInfo) error {
	if r.reminderRecoveryFunc == nil {
		return fmt.Errorf("no reminder recovery handler registered")
	}
	return r.reminderRecoveryFunc(info)
}

// GetStore provides access to the store for recovery operations
func (r *RecoveryRegistry) GetStore() store.Store {
	return r.store
}

// RecoveryManager orchestrates recovery of all registered components
type RecoveryManager struct {
	registry     *RecoveryRegistry
	recoverables []Recoverable
}

// NewRecoveryManager creates a new recovery manager
func NewRecoveryManager(st store.Store) *RecoveryManager {
	return &RecoveryManager{
		registry:     NewRecoveryRegistry(st),
		recoverables: make([]Recoverable, 0),
	}
}

// RegisterRecoverable adds a component that can be recovered
func (rm *RecoveryManager) RegisterRecoverable(r Recoverable) {
	rm.recoverables = append(rm.recoverables, r)
}

// RegisterReminderRecovery registers the reminder recovery infrastructure
func (rm *RecoveryManager) RegisterReminderRecovery(fn func(ReminderRecoveryInfo) error) {
	rm.registry.RegisterReminderRecovery(fn)
}

// RecoverAll performs recovery of all registered components. A failing
// component does not stop the others.
func (rm *RecoveryManager) RecoverAll(ctx context.Context) error {
	slog.Info("Starting application recovery", "components", len(rm.recoverables))

	recoveredCount := 0
	errorCount := 0

	for _, recoverable := range rm.recoverables {
		if err := recoverable.RecoverState(ctx, rm.registry); err != nil {
			slog.Error("Component recovery failed", "error", err, "component", fmt.Sprintf("%T", recoverable))
			errorCount++
			continue
		}
		recoveredCount++
	}

	slog.Info("Application recovery completed", "recovered", recoveredCount, "errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("recovery completed with %d errors out of %d components", errorCount, len(rm.recoverables))
	}

	return nil
}

// GetRegistry provides access to the recovery registry for infrastructure setup
func (rm *RecoveryManager) GetRegistry() *RecoveryRegistry {
	return rm.registry
}

// ReminderRecoverable reloads every persisted reminder and hands it to the
// registry's reminder recovery handler.
type ReminderRecoverable struct{}

// RecoverState implements Recoverable.
func (ReminderRecoverable) RecoverState(ctx context.Context, registry *RecoveryRegistry) error {
	st := registry.GetStore()
	if st == nil {
		return nil
	}
	reminders, err := st.ListReminders()
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}

	failed := 0
	for _, rem := range reminders {
		if err := ctx.Err(); err != nil {
			return err
		}
		info := ReminderRecoveryInfo{
			ReminderID: rem.ID,
			To:         rem.To,
			Cron:       rem.Cron,
			CreatedAt:  rem.CreatedAt,
		}
		if err := registry.RecoverReminder(info); err != nil {
			slog.Error("ReminderRecoverable: failed to recover reminder", "error", err, "reminderID", rem.ID)
			failed++
		}
	}
	slog.Info("ReminderRecoverable: reminders recovered", "total", len(reminders), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("failed to recover %d of %d reminders", failed, len(reminders))
	}
	return nil
}
