package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Channel delivers a message to the human operator
type Channel interface {
	Publish(ctx context.Context, message string) error
}

// Channels fans a message out to every channel
type Channels []Channel

// Publish sends message to all channels. Every channel is tried even when
// an earlier one fails.
func (c Channels) Publish(ctx context.Context, message string) error {
	var errs []error
	for _, ch := range c {
		if err := ch.Publish(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogChannel writes messages to the application log
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a channel backed by logger
func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With("component", "notify")}
}

func (l *LogChannel) Publish(ctx context.Context, message string) error {
	l.logger.Warn(message)
	return nil
}
