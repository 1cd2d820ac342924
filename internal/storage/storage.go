package storage

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidEntry = errors.New("invalid journal entry")

// Command outcomes
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// JournalEntry is one setpoint command sent (or attempted) to the provider
type JournalEntry struct {
	ID          string    `json:"id"`
	HomeID      string    `json:"home_id"`
	RoomID      string    `json:"room_id"`
	Temperature *float64  `json:"temperature,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the entry before it is stored
func (e *JournalEntry) Validate() error {
	if e.ID == "" || e.RoomID == "" {
		return ErrInvalidEntry
	}
	if e.Temperature == nil && e.Mode == "" {
		return ErrInvalidEntry
	}
	if e.Status != StatusSent && e.Status != StatusFailed {
		return ErrInvalidEntry
	}
	return nil
}

// Journal defines the interface for command persistence
type Journal interface {
	RecordCommand(ctx context.Context, entry *JournalEntry) error
	ListCommands(ctx context.Context, limit int) ([]*JournalEntry, error)

	// Lifecycle
	Close() error
}
