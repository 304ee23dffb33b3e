// Package store provides storage backends for Clarity Room.
//
// This file implements an SQLite-backed store for journal entries, receipts
// and reminders.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/ClarityRoom/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddEntry(e models.JournalEntry) error {
	prompts, err := encodePrompts(e.Prompts)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO journal_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Mood, prompts, e.Text, e.Polarity, e.Subjectivity, e.Band, e.Feedback, e.CreatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore AddEntry failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to insert journal entry %s: %w", e.ID, err)
	}
	slog.Debug("SQLiteStore AddEntry succeeded", "id", e.ID, "mood", e.Mood, "band", e.Band)
	return nil
}

func (s *SQLiteStore) ListEntries(limit int) ([]models.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries ORDER BY created_at DESC, seq DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			slog.Error("SQLiteStore ListEntries scan failed", "error", err)
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListEntries rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate journal entry rows: %w", err)
	}
	slog.Debug("SQLiteStore ListEntries succeeded", "count", len(entries), "limit", limit)
	return entries, nil
}

func (s *SQLiteStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, kind, status, time) VALUES (?, ?, ?, ?)`, r.To, r.Kind, r.Status, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	slog.Debug("SQLiteStore AddReceipt succeeded", "to", r.To, "kind", r.Kind, "status", r.Status)
	return nil
}

func (s *SQLiteStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, kind, status, time FROM receipts ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.To, &r.Kind, &r.Status, &r.Time); err != nil {
			slog.Error("SQLiteStore GetReceipts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetReceipts rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	slog.Debug("SQLiteStore GetReceipts succeeded", "count", len(receipts))
	return receipts, nil
}

func (s *SQLiteStore) AddReminder(r models.Reminder) error {
	_, err := s.db.Exec(`INSERT INTO reminders (id, recipient, cron, created_at) VALUES (?, ?, ?, ?)`, r.ID, r.To, r.Cron, r.CreatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore AddReminder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to insert reminder %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore AddReminder succeeded", "id", r.ID, "cron", r.Cron)
	return nil
}

func (s *SQLiteStore) ListReminders() ([]models.Reminder, error) {
	rows, err := s.db.Query(`SELECT id, recipient, cron, created_at FROM reminders ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListReminders query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.To, &r.Cron, &r.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListReminders scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}
	slog.Debug("SQLiteStore ListReminders succeeded", "count", len(reminders))
	return reminders, nil
}

func (s *SQLiteStore) DeleteReminder(id string) error {
	res, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteReminder failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete reminder %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrReminderNotFound
	}
	slog.Debug("SQLiteStore DeleteReminder succeeded", "id", id)
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
