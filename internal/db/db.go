package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Event type constants, process lifecycle.
const (
	EventProcessStarted = "process.started"
	EventSessionCreated = "session.created"
	EventSessionEvicted = "session.evicted"
)

// Event type constants, message flow.
const (
	EventCommandHandled = "command.handled"
	EventTurnStarted    = "turn.started"
	EventTurnCompleted  = "turn.completed"
	EventTurnFailed     = "turn.failed"
	EventReplySent      = "reply.sent"
)

// OpenDB opens (or creates) a SQLite database at the given path, ensuring
// that the parent directory exists.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	return db, nil
}

// InitSchema creates the events and poll_state tables. Conversation history
// is deliberately not stored here; the rolling context lives in memory and
// dies with the process.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL DEFAULT (unixepoch()),
			parent_id INTEGER,
			event_type TEXT NOT NULL,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_parent_id ON events(parent_id);

		CREATE TABLE IF NOT EXISTS poll_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_update_id INTEGER NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
	`)
	return err
}

// LoadOffset returns the next transport polling offset, or 0 when no update
// has been processed yet.
func LoadOffset(database *sql.DB) (int64, error) {
	var last int64
	err := database.QueryRow(`SELECT last_update_id FROM poll_state WHERE id = 1`).Scan(&last)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// StoreOffset records the highest processed update id so a restart does not
// replay delivered updates.
func StoreOffset(database *sql.DB, lastUpdateID int64) error {
	_, err := database.Exec(`
		INSERT INTO poll_state (id, last_update_id, updated_at) VALUES (1, ?, unixepoch())
		ON CONFLICT(id) DO UPDATE SET last_update_id = excluded.last_update_id, updated_at = unixepoch()
	`, lastUpdateID)
	return err
}

// LogEvent inserts an event and returns its auto-generated id. parentID may
// be nil for root events. payload is serialized to JSON; nil stores NULL.
func LogEvent(db *sql.DB, parentID *int64, eventType string, payload map[string]any) (int64, error) {
	var payloadJSON any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal event payload: %w", err)
		}
		payloadJSON = string(data)
	}

	res, err := db.Exec(
		`INSERT INTO events (parent_id, event_type, payload) VALUES (?, ?, ?)`,
		parentID, eventType, payloadJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event %s: %w", eventType, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get event id: %w", err)
	}
	return id, nil
}
