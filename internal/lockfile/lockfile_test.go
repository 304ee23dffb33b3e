package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLockAcquisition(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	lockPath := filepath.Join(dir, LockFileName)
	if lock.Path() != lockPath {
		t.Errorf("Path() = %q, want %q", lock.Path(), lockPath)
	}

	content, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	fields := parseInfo(string(content))
	if fields["pid"] != fmt.Sprintf("%d", os.Getpid()) {
		t.Errorf("lock file pid = %q, want %d", fields["pid"], os.Getpid())
	}
	if fields["started"] == "" {
		t.Errorf("lock file missing start time: %q", content)
	}
}

func TestLockConflict(t *testing.T) {
	dir := t.TempDir()

	lock1, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2, err := AcquireLock(dir)
	if err == nil {
		lock2.Release()
		t.Fatalf("Second lock acquisition should have failed")
	}

	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Expected LockError, got: %T", err)
	}
	if !strings.Contains(lockErr.ExistingInfo, "(running)") {
		t.Errorf("holder should be reported as running: %q", lockErr.ExistingInfo)
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "another Clarity Room server") {
		t.Errorf("Error message should mention another server: %s", errMsg)
	}
	if !strings.Contains(errMsg, dir) {
		t.Errorf("Error message should contain the lock path: %s", errMsg)
	}
}

func TestLockRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	lockPath := filepath.Join(dir, LockFileName)

	if err := lock.Release(); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file should be removed after release: %s", lockPath)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("Multiple releases should be safe: %v", err)
	}
}

func TestLockReacquisition(t *testing.T) {
	dir := t.TempDir()

	lock1, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	lock1.Release()

	lock2, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to reacquire lock after release: %v", err)
	}
	defer lock2.Release()
}

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantPID string
	}{
		{"valid pid", "pid=12345\n", "12345"},
		{"pid with extra content", "pid=67890\nstarted=2026-10-18T09:00:00Z", "67890"},
		{"no pid", "other=info", ""},
		{"empty content", "", ""},
		{"no equals", "pid12345", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseInfo(tt.content)["pid"]; got != tt.wantPID {
				t.Errorf("parseInfo(%q)[pid] = %q, want %q", tt.content, got, tt.wantPID)
			}
		})
	}
}

func TestDescribeHolder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)

	if got := describeHolder(path); !strings.Contains(got, "unreadable") {
		t.Errorf("missing file: got %q", got)
	}

	os.WriteFile(path, []byte(""), 0644)
	if got := describeHolder(path); !strings.Contains(got, "empty") {
		t.Errorf("empty file: got %q", got)
	}

	os.WriteFile(path, []byte(fmt.Sprintf("pid=%d\nstarted=2026-10-18T09:00:00Z\n", os.Getpid())), 0644)
	got := describeHolder(path)
	if !strings.Contains(got, "running") || !strings.Contains(got, "2026-10-18T09:00:00Z") {
		t.Errorf("live holder: got %q", got)
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Errorf("Our own process should be detected as running")
	}
	if processAlive(999999) {
		t.Logf("High PID detected as running (unexpected but not necessarily wrong)")
	}
}

func TestNonExistentDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Should be able to create directory and acquire lock: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("Directory should have been created: %s", dir)
	}
}
