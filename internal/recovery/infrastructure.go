package recovery

import (
	"fmt"
	"log/slog"

	"github.com/BTreeMap/ClarityRoom/internal/scheduler"
)

// ReminderTaskFactory builds the job that delivers a recovered reminder.
// This allows the main application to provide the actual send logic without creating import cycles
type ReminderTaskFactory func(ReminderRecoveryInfo) func()

// ReminderRecoveryHandler provides the callback function for reminder recovery infrastructure
func ReminderRecoveryHandler(sched *scheduler.Scheduler, factory ReminderTaskFactory) func(ReminderRecoveryInfo) error {
	return func(info ReminderRecoveryInfo) error {
		slog.Info("Recovering reminder",
			"reminderID", info.ReminderID,
			"to", info.To,
			"cron", info.Cron)

		if factory == nil {
			return fmt.Errorf("no reminder task factory provided")
		}
		if err := sched.Schedule(info.ReminderID, info.Cron, factory(info)); err != nil {
			return fmt.Errorf("failed to schedule recovered reminder: %w", err)
		}
		return nil
	}
}
