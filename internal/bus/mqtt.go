package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS          = 0
	mqttQuiesceMilli = 250
)

// MQTTConfig holds the broker connection settings
type MQTTConfig struct {
	Host           string
	Port           int
	ClientID       string
	ConnectTimeout time.Duration
}

// BrokerURL returns the tcp:// address of the broker
func (c MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// MQTTBus is a Bus backed by an MQTT broker. Subscriptions are replayed
// whenever the client reconnects.
type MQTTBus struct {
	client  mqtt.Client
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

// NewMQTTBus connects to the broker
func NewMQTTBus(config MQTTConfig, logger *slog.Logger) (*MQTTBus, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	b := &MQTTBus{
		timeout: config.ConnectTimeout,
		logger:  logger.With("component", "mqtt", "broker", config.BrokerURL()),
		subs:    make(map[string]Handler),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(config.BrokerURL()).
		SetClientID(config.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(config.ConnectTimeout).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "error", err)
		})

	b.client = mqtt.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(config.ConnectTimeout) {
		return nil, fmt.Errorf("failed to connect to %s: timed out after %s", config.BrokerURL(), config.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.BrokerURL(), err)
	}

	return b, nil
}

func (b *MQTTBus) onConnect(client mqtt.Client) {
	b.logger.Info("Connected to MQTT broker")

	b.mu.Lock()
	defer b.mu.Unlock()
	for filter, handler := range b.subs {
		if err := b.subscribe(filter, handler); err != nil {
			b.logger.Error("Failed to resubscribe", "filter", filter, "error", err)
		}
	}
}

func (b *MQTTBus) Publish(ctx context.Context, topic, payload string, retain bool) error {
	if !b.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := b.client.Publish(topic, mqttQoS, retain, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MQTTBus) Subscribe(filter string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[filter] = handler
	if !b.client.IsConnectionOpen() {
		// onConnect will pick it up
		return nil
	}
	return b.subscribe(filter, handler)
}

func (b *MQTTBus) subscribe(filter string, handler Handler) error {
	token := b.client.Subscribe(filter, mqttQoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(b.timeout) {
		return fmt.Errorf("failed to subscribe to %s: timed out", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}
	b.logger.Info("Subscribed", "filter", filter)
	return nil
}

func (b *MQTTBus) Close() {
	b.client.Disconnect(mqttQuiesceMilli)
}
