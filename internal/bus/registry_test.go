package bus

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"smarther2mqtt/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopBus is a Bus that accepts everything
type nopBus struct{}

func (nopBus) Publish(ctx context.Context, topic, payload string, retain bool) error { return nil }
func (nopBus) Subscribe(filter string, handler Handler) error                       { return nil }
func (nopBus) Close()                                                               {}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	factory := func(logger *slog.Logger) (Bus, error) { return nopBus{}, nil }

	require.NoError(t, registry.Register("nats", factory))
	require.NoError(t, registry.Register("mqtt", factory))

	// Attempt to register duplicate
	err := registry.Register("mqtt", factory)
	assert.ErrorIs(t, err, ErrBackendAlreadyExists)

	assert.Equal(t, []string{"mqtt", "nats"}, registry.List())
}

func TestRegistry_Open(t *testing.T) {
	registry := NewRegistry()
	opened := 0
	require.NoError(t, registry.Register("mqtt", func(logger *slog.Logger) (Bus, error) {
		opened++
		return nopBus{}, nil
	}))
	require.NoError(t, registry.Register("broken", func(logger *slog.Logger) (Bus, error) {
		return nil, errors.New("unreachable")
	}))

	b, err := registry.Open("mqtt", logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Equal(t, 1, opened)

	_, err = registry.Open("broken", logging.Discard())
	assert.EqualError(t, err, "unreachable")

	_, err = registry.Open("kafka", logging.Discard())
	assert.ErrorIs(t, err, ErrBackendNotFound)
	assert.Contains(t, err.Error(), "available: broken, mqtt")
}
