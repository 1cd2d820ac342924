package bus

import (
	"context"
	"testing"
	"time"

	"smarther2mqtt/internal/logging"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startNATSServer runs an in-process server on a random port and returns its URL
func startNATSServer(t *testing.T) string {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "nats server did not start")
	t.Cleanup(ns.Shutdown)
	return ns.ClientURL()
}

func newTestNATSBus(t *testing.T, url string) *NATSBus {
	t.Helper()
	b, err := NewNATSBus(url, "smarther2mqtt-test", logging.Discard())
	require.NoError(t, err)
	return b
}

func TestNATSBus_RoundTrip(t *testing.T) {
	b := newTestNATSBus(t, startNATSServer(t))
	defer b.Close()

	received := make(chan message, 4)
	require.NoError(t, b.Subscribe("smarther2/set/+", collect(received)))

	// Topics go out as subjects and come back as topics
	require.NoError(t, b.Publish(context.Background(), "smarther2/set/temperature_setpoint", "21.5", true))
	assert.Equal(t, message{topic: "smarther2/set/temperature_setpoint", payload: "21.5"}, waitMessage(t, received))

	require.NoError(t, b.Publish(context.Background(), "smarther2/set/mode", "OFF", false))
	assert.Equal(t, message{topic: "smarther2/set/mode", payload: "OFF"}, waitMessage(t, received))
}

func TestNATSBus_MultiLevelWildcard(t *testing.T) {
	b := newTestNATSBus(t, startNATSServer(t))
	defer b.Close()

	received := make(chan message, 4)
	require.NoError(t, b.Subscribe("smarther2/#", collect(received)))

	require.NoError(t, b.Publish(context.Background(), "smarther2/set/mode", "AUTO", false))
	assert.Equal(t, "smarther2/set/mode", waitMessage(t, received).topic)
}

func TestNATSBus_PublishAfterClose(t *testing.T) {
	b := newTestNATSBus(t, startNATSServer(t))
	b.Close()

	err := b.Publish(context.Background(), "smarther2/mode", "AUTO", true)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestNATSBus_PublishCancelledContext(t *testing.T) {
	b := newTestNATSBus(t, startNATSServer(t))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Publish(ctx, "smarther2/mode", "AUTO", true), context.Canceled)
}
