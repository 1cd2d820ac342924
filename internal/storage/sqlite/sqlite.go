package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smarther2mqtt/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultListLimit is used when a caller asks for a non-positive limit
const DefaultListLimit = 50

// SQLiteJournal implements storage.Journal using SQLite
type SQLiteJournal struct {
	db *sql.DB
}

// New creates a new SQLite journal instance
func New(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes come from the debouncer and the poller; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	journal := &SQLiteJournal{db: db}

	if err := journal.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return journal, nil
}

// migrate creates the database schema
func (s *SQLiteJournal) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS setpoint_commands (
			id TEXT PRIMARY KEY,
			home_id TEXT NOT NULL,
			room_id TEXT NOT NULL,
			temperature REAL,
			mode TEXT,
			status TEXT NOT NULL,
			error TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_setpoint_commands_created ON setpoint_commands(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordCommand stores a command
func (s *SQLiteJournal) RecordCommand(ctx context.Context, entry *storage.JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var temperature sql.NullFloat64
	if entry.Temperature != nil {
		temperature = sql.NullFloat64{Float64: *entry.Temperature, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO setpoint_commands (id, home_id, room_id, temperature, mode, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.HomeID, entry.RoomID, temperature, nullString(entry.Mode),
		entry.Status, nullString(entry.Error), entry.CreatedAt.UTC())

	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}
	return nil
}

// ListCommands returns the most recent commands, newest first
func (s *SQLiteJournal) ListCommands(ctx context.Context, limit int) ([]*storage.JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, home_id, room_id, temperature, mode, status, error, created_at
		FROM setpoint_commands
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*storage.JournalEntry
	for rows.Next() {
		var entry storage.JournalEntry
		var temperature sql.NullFloat64
		var mode, errText sql.NullString

		if err := rows.Scan(&entry.ID, &entry.HomeID, &entry.RoomID, &temperature, &mode,
			&entry.Status, &errText, &entry.CreatedAt); err != nil {
			return nil, err
		}

		if temperature.Valid {
			value := temperature.Float64
			entry.Temperature = &value
		}
		entry.Mode = mode.String
		entry.Error = errText.String

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Close closes the database connection
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
