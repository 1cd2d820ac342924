package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"smarther2mqtt/config"
	"smarther2mqtt/internal/netatmo"
	"smarther2mqtt/internal/thermostat"
)

var ErrRoomNotFound = errors.New("room not found in home status")

// StatusSource fetches the raw /homestatus document
type StatusSource interface {
	HomeStatus(ctx context.Context, homeID string) ([]byte, error)
}

// Authorizer obtains a brand new token interactively
type Authorizer interface {
	Authorize(ctx context.Context) error
}

// Setpoints is the debouncer view the poller needs
type Setpoints interface {
	TemperatureUpdatePending() bool
	ModeUpdatePending() bool
	UpdateTemperature(value float64)
	UpdateMode(mode thermostat.Mode)
}

// Publisher sends a message on the bus
type Publisher interface {
	Publish(ctx context.Context, topic, payload string, retain bool) error
}

// RoomObserver is told about every room reading
type RoomObserver interface {
	ObserveRoom(measured float64, humidity *float64, setpoint float64)
}

// PollerConfig holds the poll loop settings
type PollerConfig struct {
	HomeID   string
	RoomID   string
	Interval time.Duration
	Topics   config.PublishTopics
}

// Snapshot is the last room status the poller published
type Snapshot struct {
	Room     netatmo.RoomStatus `json:"room"`
	PolledAt time.Time          `json:"polled_at"`
}

// Poller periodically fetches the room status and republishes it
type Poller struct {
	config     PollerConfig
	source     StatusSource
	authorizer Authorizer
	setpoints  Setpoints
	publisher  Publisher
	observer   RoomObserver
	logger     *slog.Logger

	mu     sync.RWMutex
	latest *Snapshot
}

// PollerOption customises a Poller
type PollerOption func(*Poller)

// WithRoomObserver registers an observer for room readings
func WithRoomObserver(observer RoomObserver) PollerOption {
	return func(p *Poller) {
		p.observer = observer
	}
}

// NewPoller creates a new poller
func NewPoller(config PollerConfig, source StatusSource, authorizer Authorizer, setpoints Setpoints, publisher Publisher, logger *slog.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		config:     config,
		source:     source,
		authorizer: authorizer,
		setpoints:  setpoints,
		publisher:  publisher,
		logger:     logger.With("component", "poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately and then once per interval until ctx is cancelled.
// It returns netatmo.ErrAuthorizationAborted when a re-authorization was
// interrupted, and nil on a plain shutdown.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Starting polling cycle", "interval", p.config.Interval)
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	if err := p.tick(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ticker.C:
			if err := p.tick(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			p.logger.Info("Polling stopped")
			return nil
		}
	}
}

// Latest returns the last published room status
func (p *Poller) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return Snapshot{}, false
	}
	return *p.latest, true
}

// tick runs one cycle and decides how to recover from its failure.
// Only an aborted authorization is returned.
func (p *Poller) tick(ctx context.Context) error {
	err := p.poll(ctx)
	if err == nil || ctx.Err() != nil {
		return nil
	}

	var apiErr *netatmo.APIError
	var tokenErr *netatmo.TokenError

	switch {
	case errors.Is(err, netatmo.ErrTransport):
		p.logger.Error("Error while connecting to server. Restarting polling cycle", "error", err)

	case errors.As(err, &apiErr), errors.As(err, &tokenErr), errors.Is(err, netatmo.ErrNoToken):
		p.logger.Error("HTTP exception in polling cycle. Obtaining a new token", "error", err)
		if err := p.authorizer.Authorize(ctx); err != nil {
			if errors.Is(err, netatmo.ErrAuthorizationAborted) {
				return err
			}
			p.logger.Error("Authorization failed", "error", err)
		}

	default:
		p.logger.Error("Unknown error occurred in polling cycle", "error", err)
	}

	return nil
}

// poll fetches the home status once and publishes the managed room
func (p *Poller) poll(ctx context.Context) error {
	body, err := p.source.HomeStatus(ctx, p.config.HomeID)
	if err != nil {
		return err
	}
	p.logger.Debug("Received home status", "body", string(body))

	status, err := netatmo.ParseHomeStatus(body)
	if err != nil {
		return err
	}

	// Rate limiting and similar system-wide errors come back as a body
	if status.Error != nil {
		p.logger.Warn("API returned system-wide error. Will try again at next polling cycle",
			"code", status.Error.Code,
			"message", status.Error.Message)
		return nil
	}
	if len(status.Body.Errors) > 0 {
		p.logger.Warn("API returned application-level error. Will try again at next polling cycle",
			"code", status.Body.Errors[0].Code)
		return nil
	}

	room, ok := status.Room(p.config.RoomID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, p.config.RoomID)
	}
	p.logger.Debug("Room status", "room", room)

	p.publish(ctx, room)

	p.mu.Lock()
	p.latest = &Snapshot{Room: *room, PolledAt: time.Now()}
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.ObserveRoom(room.MeasuredTemperature, room.Humidity, room.SetpointTemperature)
	}

	return nil
}

// publish sends the room readings. Setpoints with a local change pending
// are not republished so a stale value does not overwrite the user's command.
func (p *Poller) publish(ctx context.Context, room *netatmo.RoomStatus) {
	topics := p.config.Topics

	p.send(ctx, topics.Topic(topics.Temperature), formatFloat(room.MeasuredTemperature))
	if room.Humidity != nil {
		p.send(ctx, topics.Topic(topics.Humidity), formatFloat(*room.Humidity))
	}

	endTime := "0"
	if room.SetpointEndTime != nil {
		endTime = strconv.FormatInt(*room.SetpointEndTime, 10)
	}
	p.send(ctx, topics.Topic(topics.SetpointEndtime), endTime)

	if !p.setpoints.TemperatureUpdatePending() {
		p.send(ctx, topics.Topic(topics.TemperatureSetpoint), formatFloat(room.SetpointTemperature))
		p.setpoints.UpdateTemperature(room.SetpointTemperature)
	}

	if !p.setpoints.ModeUpdatePending() {
		if mode, ok := thermostat.ParseMode(room.SetpointMode); ok {
			p.send(ctx, topics.Topic(topics.Mode), mode.UserName())
			p.setpoints.UpdateMode(mode)
		} else {
			p.logger.Warn("Unknown setpoint mode reported", "mode", room.SetpointMode)
			p.send(ctx, topics.Topic(topics.Mode), strings.ToUpper(room.SetpointMode))
		}
	}
}

func (p *Poller) send(ctx context.Context, topic, payload string) {
	if err := p.publisher.Publish(ctx, topic, payload, true); err != nil {
		p.logger.Warn("Failed to publish", "topic", topic, "error", err)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
