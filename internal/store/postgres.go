// Package store provides storage backends for Clarity Room.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/ClarityRoom/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("Postgres ping successful")

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddEntry(e models.JournalEntry) error {
	prompts, err := encodePrompts(e.Prompts)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO journal_entries (`+entryColumns+`) VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.SessionID, e.Mood, prompts, e.Text, e.Polarity, e.Subjectivity, e.Band, e.Feedback, e.CreatedAt.UTC())
	if err != nil {
		slog.Error("PostgresStore AddEntry failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to insert journal entry %s: %w", e.ID, err)
	}
	slog.Debug("PostgresStore AddEntry succeeded", "id", e.ID, "mood", e.Mood, "band", e.Band)
	return nil
}

func (s *PostgresStore) ListEntries(limit int) ([]models.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries ORDER BY created_at DESC, seq DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			slog.Error("PostgresStore ListEntries scan failed", "error", err)
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListEntries rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate journal entry rows: %w", err)
	}
	slog.Debug("PostgresStore ListEntries succeeded", "count", len(entries), "limit", limit)
	return entries, nil
}

func (s *PostgresStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, kind, status, time) VALUES ($1, $2, $3, $4)`, r.To, r.Kind, r.Status, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	slog.Debug("PostgresStore AddReceipt succeeded", "to", r.To, "kind", r.Kind, "status", r.Status)
	return nil
}

func (s *PostgresStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, kind, status, time FROM receipts ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.To, &r.Kind, &r.Status, &r.Time); err != nil {
			slog.Error("PostgresStore GetReceipts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	slog.Debug("PostgresStore GetReceipts succeeded", "count", len(receipts))
	return receipts, nil
}

func (s *PostgresStore) AddReminder(r models.Reminder) error {
	_, err := s.db.Exec(`INSERT INTO reminders (id, recipient, cron, created_at) VALUES ($1, $2, $3, $4)`, r.ID, r.To, r.Cron, r.CreatedAt.UTC())
	if err != nil {
		slog.Error("PostgresStore AddReminder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to insert reminder %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore AddReminder succeeded", "id", r.ID, "cron", r.Cron)
	return nil
}

func (s *PostgresStore) ListReminders() ([]models.Reminder, error) {
	rows, err := s.db.Query(`SELECT id, recipient, cron, created_at FROM reminders ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListReminders query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.To, &r.Cron, &r.CreatedAt); err != nil {
			slog.Error("PostgresStore ListReminders scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}
	slog.Debug("PostgresStore ListReminders succeeded", "count", len(reminders))
	return reminders, nil
}

func (s *PostgresStore) DeleteReminder(id string) error {
	res, err := s.db.Exec(`DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteReminder failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete reminder %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrReminderNotFound
	}
	slog.Debug("PostgresStore DeleteReminder succeeded", "id", id)
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
