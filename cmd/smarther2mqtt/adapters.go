package main

import (
	"context"
	"log/slog"

	"smarther2mqtt/internal/idgen"
	"smarther2mqtt/internal/metrics"
	"smarther2mqtt/internal/storage"
	"smarther2mqtt/internal/thermostat"
)

// Adapter types to bridge interface differences between packages

// commandRecorder turns debouncer sends into metrics and journal entries
type commandRecorder struct {
	journal storage.Journal // nil when the journal is disabled
	metrics *metrics.Metrics
	homeID  string
	roomID  string
	logger  *slog.Logger
}

func (r *commandRecorder) RecordSend(ctx context.Context, cmd thermostat.Command, err error) {
	r.metrics.ObserveCommand(err)

	if r.journal == nil {
		return
	}

	entry := &storage.JournalEntry{
		ID:          idgen.NewCommand(),
		HomeID:      r.homeID,
		RoomID:      r.roomID,
		Temperature: cmd.Temperature,
		Status:      storage.StatusSent,
	}
	if cmd.Mode != nil {
		entry.Mode = string(*cmd.Mode)
	}
	if err != nil {
		entry.Status = storage.StatusFailed
		entry.Error = err.Error()
	}

	if err := r.journal.RecordCommand(ctx, entry); err != nil {
		r.logger.Warn("Failed to journal command", "error", err)
	}
}
