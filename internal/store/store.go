// Package store provides storage backends for Clarity Room.
//
// It persists finished journal entries, outbound message receipts and
// scheduled reminders. Session state is never stored here.
package store

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/BTreeMap/ClarityRoom/internal/models"
)

// ErrReminderNotFound is returned when deleting an unknown reminder.
var ErrReminderNotFound = errors.New("reminder not found")

// Store is the persistence interface shared by all backends.
type Store interface {
	AddEntry(e models.JournalEntry) error
	// ListEntries returns entries newest first. limit <= 0 returns all.
	ListEntries(limit int) ([]models.JournalEntry, error)
	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
	AddReminder(r models.Reminder) error
	ListReminders() ([]models.Reminder, error)
	DeleteReminder(id string) error
	Close() error
}

// DSN types understood by New.
const (
	DSNTypeMemory   = "memory"
	DSNTypeSQLite   = "sqlite3"
	DSNTypePostgres = "postgres"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports which backend a DSN addresses. An empty DSN selects the
// in-memory store; URLs and keyword strings select PostgreSQL; anything else is
// treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	switch {
	case d == "" || d == ":memory:":
		return DSNTypeMemory
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"):
		return DSNTypePostgres
	case strings.Contains(d, "host=") || strings.Contains(d, "dbname="):
		return DSNTypePostgres
	default:
		return DSNTypeSQLite
	}
}

// New opens the backend selected by the DSN.
func New(dsn string) (Store, error) {
	switch DetectDSNType(dsn) {
	case DSNTypeMemory:
		slog.Info("Using in-memory store")
		return NewInMemoryStore(), nil
	case DSNTypePostgres:
		slog.Info("Using PostgreSQL store")
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		slog.Info("Using SQLite store", "path", dsn)
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}

// InMemoryStore keeps everything in process memory. It is used in tests and
// when no database is configured.
type InMemoryStore struct {
	mu        sync.RWMutex
	entries   []models.JournalEntry
	receipts  []models.Receipt
	reminders []models.Reminder
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddEntry(e models.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Prompts = append([]string(nil), e.Prompts...)
	s.entries = append(s.entries, e)
	return nil
}

func (s *InMemoryStore) ListEntries(limit int) ([]models.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first; insertion order breaks ties.
	idx := make([]int, len(s.entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := s.entries[idx[a]], s.entries[idx[b]]
		if ea.CreatedAt.Equal(eb.CreatedAt) {
			return idx[a] > idx[b]
		}
		return ea.CreatedAt.After(eb.CreatedAt)
	})
	if limit > 0 && limit < len(idx) {
		idx = idx[:limit]
	}

	out := make([]models.JournalEntry, 0, len(idx))
	for _, i := range idx {
		e := s.entries[i]
		e.Prompts = append([]string(nil), e.Prompts...)
		out = append(out, e)
	}
	return out, nil
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Receipt(nil), s.receipts...), nil
}

func (s *InMemoryStore) AddReminder(r models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, r)
	return nil
}

func (s *InMemoryStore) ListReminders() ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Reminder(nil), s.reminders...), nil
}

func (s *InMemoryStore) DeleteReminder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.reminders {
		if r.ID == id {
			s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
			return nil
		}
	}
	return ErrReminderNotFound
}

func (s *InMemoryStore) Close() error {
	return nil
}
