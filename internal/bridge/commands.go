package bridge

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"smarther2mqtt/config"
	"smarther2mqtt/internal/thermostat"
)

// Commander accepts setpoint commands
type Commander interface {
	SetTemperature(value float64)
	SetMode(mode thermostat.Mode)
}

// CommandHandler routes bus messages to the debouncer
type CommandHandler struct {
	topics    config.SubscribeTopics
	commander Commander
	logger    *slog.Logger
}

// NewCommandHandler creates a handler for the configured command topics
func NewCommandHandler(topics config.SubscribeTopics, commander Commander, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{
		topics:    topics,
		commander: commander,
		logger:    logger.With("component", "commands"),
	}
}

// Filter is the subscription covering every command topic
func (h *CommandHandler) Filter() string {
	return h.topics.Filter()
}

// Handle processes one received message. It never panics, so a bad
// payload cannot take the bus callback down.
func (h *CommandHandler) Handle(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic while processing received message",
				"topic", topic,
				"payload", string(payload),
				"error", r)
		}
	}()

	msg := strings.ToUpper(strings.TrimSpace(string(payload)))
	h.logger.Debug("Received command", "topic", topic, "payload", msg)

	switch topic {
	case h.topics.Topic(h.topics.TemperatureSetpoint):
		value, err := strconv.ParseFloat(msg, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			h.logger.Warn("Invalid temperature received", "payload", msg)
			return
		}
		h.commander.SetTemperature(value)

	case h.topics.Topic(h.topics.Mode):
		mode, ok := thermostat.ParseUserMode(msg)
		if !ok {
			h.logger.Warn("Invalid mode received", "payload", msg)
			return
		}
		h.commander.SetMode(mode)

	default:
		h.logger.Debug("Ignoring message on unhandled topic", "topic", topic)
	}
}
