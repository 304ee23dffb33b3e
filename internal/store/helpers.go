package store

import (
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/ClarityRoom/internal/models"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// entryColumns is the column list shared by both SQL backends.
const entryColumns = `id, session_id, mood, prompts, body, polarity, subjectivity, band, feedback, created_at`

// encodePrompts serializes a prompt list for storage. nil becomes "[]".
func encodePrompts(prompts []string) (string, error) {
	if prompts == nil {
		prompts = []string{}
	}
	b, err := json.Marshal(prompts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompts: %w", err)
	}
	return string(b), nil
}

// scanEntry scans one journal entry row selected with entryColumns.
func scanEntry(row rowScanner) (models.JournalEntry, error) {
	var e models.JournalEntry
	var prompts []byte
	err := row.Scan(&e.ID, &e.SessionID, &e.Mood, &prompts, &e.Text,
		&e.Polarity, &e.Subjectivity, &e.Band, &e.Feedback, &e.CreatedAt)
	if err != nil {
		return e, fmt.Errorf("scan journal entry failed: %w", err)
	}
	if len(prompts) > 0 {
		if err := json.Unmarshal(prompts, &e.Prompts); err != nil {
			return e, fmt.Errorf("failed to unmarshal prompts for entry %s: %w", e.ID, err)
		}
	}
	return e, nil
}
