package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	nats "github.com/nats-io/nats.go"
)

var (
	topicToSubject = strings.NewReplacer("/", ".", "+", "*", "#", ">")
	subjectToTopic = strings.NewReplacer(".", "/")
)

// Subject converts an MQTT topic or filter into a NATS subject
func Subject(topic string) string {
	return topicToSubject.Replace(topic)
}

// Topic converts a NATS subject back into an MQTT topic
func Topic(subject string) string {
	return subjectToTopic.Replace(subject)
}

// NATSBus is a Bus backed by a NATS server. NATS has no retained messages,
// so the retain flag is ignored.
type NATSBus struct {
	nc     *nats.Conn
	logger *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSBus connects to the NATS server at url
func NewNATSBus(url, name string, logger *slog.Logger) (*NATSBus, error) {
	logger = logger.With("component", "nats", "url", url)

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS connection lost", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	logger.Info("Connected to NATS")
	return &NATSBus{nc: nc, logger: logger}, nil
}

func (b *NATSBus) Publish(ctx context.Context, topic, payload string, retain bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.nc.IsConnected() {
		return ErrNotConnected
	}
	if err := b.nc.Publish(Subject(topic), []byte(payload)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *NATSBus) Subscribe(filter string, handler Handler) error {
	sub, err := b.nc.Subscribe(Subject(filter), func(msg *nats.Msg) {
		handler(Topic(msg.Subject), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Info("Subscribed", "subject", sub.Subject)
	return nil
}

func (b *NATSBus) Close() {
	b.mu.Lock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	b.mu.Unlock()

	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
}
