package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"smarther2mqtt/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteJournal {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	journal, err := New(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		journal.Close()
	})

	return journal
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestSQLiteJournal_Commands(t *testing.T) {
	journal := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	// Test RecordCommand
	err := journal.RecordCommand(ctx, &storage.JournalEntry{
		ID:          "cmd_1",
		HomeID:      "home-1",
		RoomID:      "room-1",
		Temperature: floatPtr(21.5),
		Mode:        "manual",
		Status:      storage.StatusSent,
		CreatedAt:   base,
	})
	require.NoError(t, err)

	err = journal.RecordCommand(ctx, &storage.JournalEntry{
		ID:        "cmd_2",
		HomeID:    "home-1",
		RoomID:    "room-1",
		Mode:      "max",
		Status:    storage.StatusFailed,
		Error:     "provider unavailable",
		CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)

	// Test ListCommands - newest first
	entries, err := journal.ListCommands(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "cmd_2", entries[0].ID)
	assert.Nil(t, entries[0].Temperature)
	assert.Equal(t, "max", entries[0].Mode)
	assert.Equal(t, storage.StatusFailed, entries[0].Status)
	assert.Equal(t, "provider unavailable", entries[0].Error)

	assert.Equal(t, "cmd_1", entries[1].ID)
	require.NotNil(t, entries[1].Temperature)
	assert.Equal(t, 21.5, *entries[1].Temperature)
	assert.Equal(t, "manual", entries[1].Mode)
	assert.Empty(t, entries[1].Error)
	assert.True(t, base.Equal(entries[1].CreatedAt))

	// Test ListCommands - limit
	entries, err = journal.ListCommands(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cmd_2", entries[0].ID)

	// Test RecordCommand - duplicate id
	err = journal.RecordCommand(ctx, &storage.JournalEntry{
		ID: "cmd_1", RoomID: "room-1", Mode: "home", Status: storage.StatusSent,
	})
	assert.Error(t, err)
}

func TestSQLiteJournal_DefaultsCreatedAt(t *testing.T) {
	journal := setupTestDB(t)
	ctx := context.Background()

	entry := &storage.JournalEntry{ID: "cmd_1", RoomID: "room-1", Mode: "home", Status: storage.StatusSent}
	require.NoError(t, journal.RecordCommand(ctx, entry))
	assert.False(t, entry.CreatedAt.IsZero())

	entries, err := journal.ListCommands(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSQLiteJournal_InvalidEntries(t *testing.T) {
	journal := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry storage.JournalEntry
	}{
		{"missing id", storage.JournalEntry{RoomID: "room-1", Mode: "home", Status: storage.StatusSent}},
		{"missing room", storage.JournalEntry{ID: "cmd_1", Mode: "home", Status: storage.StatusSent}},
		{"empty command", storage.JournalEntry{ID: "cmd_1", RoomID: "room-1", Status: storage.StatusSent}},
		{"unknown status", storage.JournalEntry{ID: "cmd_1", RoomID: "room-1", Mode: "home", Status: "pending"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := tt.entry
			assert.ErrorIs(t, journal.RecordCommand(ctx, &entry), storage.ErrInvalidEntry)
		})
	}

	entries, err := journal.ListCommands(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteJournal_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	journal, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, journal.RecordCommand(ctx, &storage.JournalEntry{
		ID: "cmd_1", RoomID: "room-1", Temperature: floatPtr(19), Status: storage.StatusSent,
	}))
	require.NoError(t, journal.Close())

	journal, err = New(dbPath)
	require.NoError(t, err)
	defer journal.Close()

	entries, err := journal.ListCommands(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 19.0, *entries[0].Temperature)
}
