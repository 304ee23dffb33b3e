package recovery

import (
	"errors"
	"testing"

	"github.com/BTreeMap/ClarityRoom/internal/scheduler"
)

func TestReminderRecoveryHandler(t *testing.T) {
	sched := scheduler.NewScheduler()
	defer sched.Stop()

	var built ReminderRecoveryInfo
	handler := ReminderRecoveryHandler(sched, func(info ReminderRecoveryInfo) func() {
		built = info
		return func() {}
	})

	if handler == nil {
		t.Fatal("ReminderRecoveryHandler returned nil")
	}

	info := ReminderRecoveryInfo{ReminderID: "rem_1", To: "+15551234567", Cron: "@every 1h"}
	if err := handler(info); err != nil {
		t.Fatalf("ReminderRecoveryHandler failed: %v", err)
	}

	if !sched.Has("rem_1") {
		t.Error("expected reminder to be scheduled under its id")
	}
	if built.ReminderID != "rem_1" {
		t.Errorf("task factory received %+v", built)
	}
}

func TestReminderRecoveryHandler_InvalidCron(t *testing.T) {
	sched := scheduler.NewScheduler()
	defer sched.Stop()

	handler := ReminderRecoveryHandler(sched, func(ReminderRecoveryInfo) func() { return func() {} })

	if err := handler(ReminderRecoveryInfo{ReminderID: "rem_1", Cron: "not a cron"}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if sched.Has("rem_1") {
		t.Error("invalid reminder should not be scheduled")
	}
}

func TestReminderRecoveryHandler_Duplicate(t *testing.T) {
	sched := scheduler.NewScheduler()
	defer sched.Stop()

	handler := ReminderRecoveryHandler(sched, func(ReminderRecoveryInfo) func() { return func() {} })
	info := ReminderRecoveryInfo{ReminderID: "rem_1", Cron: "@daily"}

	if err := handler(info); err != nil {
		t.Fatalf("first recovery failed: %v", err)
	}
	err := handler(info)
	if !errors.Is(err, scheduler.ErrDuplicateJob) {
		t.Errorf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestReminderRecoveryHandler_NoFactory(t *testing.T) {
	sched := scheduler.NewScheduler()
	defer sched.Stop()

	if err := ReminderRecoveryHandler(sched, nil)(ReminderRecoveryInfo{ReminderID: "rem_1", Cron: "@daily"}); err == nil {
		t.Error("expected error when no task factory is provided")
	}
}
