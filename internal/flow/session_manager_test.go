package flow

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/ClarityRoom/internal/models"
)

func TestSessionManager_CreateGetSave(t *testing.T) {
	m := NewSessionManager()
	s := m.Create()
	if !strings.HasPrefix(s.ID, "s_") || len(s.ID) != 34 {
		t.Errorf("unexpected session id %q", s.ID)
	}
	if s.State != models.StateNoMoodSelected {
		t.Errorf("expected initial state, got %s", s.State)
	}

	s.State = models.StatePromptsShown
	s.Mood = models.MoodSad
	s.Prompts = []string{"a", "b"}
	if err := m.Save(s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s.Prompts[0] = "mutated after save"
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != models.StatePromptsShown || got.Mood != models.MoodSad {
		t.Errorf("expected saved snapshot, got %+v", got)
	}
	if got.Prompts[0] != "a" {
		t.Errorf("stored snapshot shares memory with caller: %v", got.Prompts)
	}
}

func TestSessionManager_NotFound(t *testing.T) {
	m := NewSessionManager()
	if _, err := m.Get("s_missing"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Get: expected ErrSessionNotFound, got %v", err)
	}
	if err := m.Save(models.NewSession("s_missing", time.Now())); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Save: expected ErrSessionNotFound, got %v", err)
	}
	if err := m.Delete("s_missing"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Delete: expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionManager_Delete(t *testing.T) {
	m := NewSessionManager()
	s := m.Create()
	if err := m.Delete(s.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected deleted session to be gone, got %v", err)
	}
	if err := m.Save(s); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected Save not to resurrect a deleted session, got %v", err)
	}
}

func TestSessionManager_Sweep(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	m := NewSessionManager()
	m.now = func() time.Time { return now }

	stale := m.Create()
	stale.UpdatedAt = now.Add(-3 * time.Hour)
	if err := m.Save(stale); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	fresh := m.Create()

	if removed := m.Sweep(2 * time.Hour); removed != 1 {
		t.Errorf("expected 1 session removed, got %d", removed)
	}
	if _, err := m.Get(stale.ID); !errors.Is(err, models.ErrSessionNotFound) {
		t.Error("stale session survived the sweep")
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Errorf("fresh session was removed: %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", m.Len())
	}
}

func TestSessionManager_Concurrent(t *testing.T) {
	m := NewSessionManager()
	c := newTestController(&stubAnalyzer{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.Create()
			next, err := c.Pick(s, models.MoodNeutral)
			if err != nil {
				t.Errorf("Pick failed: %v", err)
				return
			}
			if err := m.Save(next); err != nil {
				t.Errorf("Save failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if m.Len() != 20 {
		t.Errorf("expected 20 sessions, got %d", m.Len())
	}
}
