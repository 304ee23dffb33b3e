package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ClarityRoom/internal/models"
	"github.com/BTreeMap/ClarityRoom/internal/util"
)

// SessionManager keeps session snapshots in memory, keyed by session ID.
// Sessions do not survive a restart.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	now      func() time.Time
	newID    func() string
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	slog.Debug("Creating SessionManager")
	return &SessionManager{
		sessions: make(map[string]models.Session),
		now:      time.Now,
		newID:    util.GenerateSessionID,
	}
}

// Create registers a new session in the initial state.
func (m *SessionManager) Create() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	for _, exists := m.sessions[id]; exists; _, exists = m.sessions[id] {
		id = m.newID()
	}
	s := models.NewSession(id, m.now())
	m.sessions[id] = s
	slog.Debug("SessionManager Create", "session_id", id, "active", len(m.sessions))
	return s.Clone()
}

// Get returns a copy of the stored snapshot.
func (m *SessionManager) Get(id string) (models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		slog.Debug("SessionManager Get not found", "session_id", id)
		return models.Session{}, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return s.Clone(), nil
}

// Save replaces the stored snapshot. Deleted or unknown sessions are not
// recreated.
func (m *SessionManager) Save(s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; !ok {
		slog.Warn("SessionManager Save for unknown session", "session_id", s.ID)
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	slog.Debug("SessionManager Save", "session_id", s.ID, "state", s.State)
	return nil
}

// Delete tears a session down.
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	slog.Debug("SessionManager Delete", "session_id", id, "active", len(m.sessions))
	return nil
}

// Sweep removes sessions not updated within maxIdle and returns how many were
// removed.
func (m *SessionManager) Sweep(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	removed := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("SessionManager Sweep removed idle sessions", "removed", removed, "active", len(m.sessions), "max_idle", maxIdle)
	}
	return removed
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
