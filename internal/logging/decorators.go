package logging

import (
	"context"
	"log/slog"
	"time"
)

// RoomStateSetter is anything that writes room setpoints to the provider
type RoomStateSetter interface {
	SetRoomState(ctx context.Context, homeID, roomID string, params map[string]any) error
}

// RoomStateLogger wraps a RoomStateSetter and logs all calls
type RoomStateLogger struct {
	setter RoomStateSetter
	logger *slog.Logger
}

// NewRoomStateLogger creates a new logging decorator for a RoomStateSetter
func NewRoomStateLogger(setter RoomStateSetter, logger *slog.Logger) RoomStateSetter {
	return &RoomStateLogger{
		setter: setter,
		logger: logger.With("interface", "RoomStateSetter"),
	}
}

func (l *RoomStateLogger) SetRoomState(ctx context.Context, homeID, roomID string, params map[string]any) error {
	start := time.Now()
	l.logger.Info("SetRoomState called",
		"home_id", homeID,
		"room_id", roomID,
		"params", params)

	err := l.setter.SetRoomState(ctx, homeID, roomID, params)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("SetRoomState failed",
			"home_id", homeID,
			"room_id", roomID,
			"params", params,
			"duration", duration,
			"error", err)
		return err
	}

	l.logger.Info("SetRoomState completed",
		"home_id", homeID,
		"room_id", roomID,
		"duration", duration)

	return nil
}
