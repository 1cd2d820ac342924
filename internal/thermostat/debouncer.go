package thermostat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Gateway applies room state on the provider
type Gateway interface {
	SetRoomState(ctx context.Context, homeID, roomID string, params map[string]any) error
}

// Recorder is told about every send attempt, successful or not
type Recorder interface {
	RecordSend(ctx context.Context, cmd Command, err error)
}

// Command is one coalesced write to the thermostat
type Command struct {
	Temperature *float64
	Mode        *Mode
}

// Empty reports whether there is nothing to send
func (c Command) Empty() bool {
	return c.Temperature == nil && c.Mode == nil
}

// Params renders the command as /setstate room parameters
func (c Command) Params() map[string]any {
	params := make(map[string]any, 2)
	if c.Temperature != nil {
		params["therm_setpoint_temperature"] = *c.Temperature
	}
	if c.Mode != nil {
		params["therm_setpoint_mode"] = string(*c.Mode)
	}
	return params
}

// State is a snapshot of the debouncer
type State struct {
	TargetTemperature *float64 `json:"target_temperature"`
	TargetMode        *Mode    `json:"target_mode"`
	LastTemperature   *float64 `json:"last_temperature"`
	LastMode          *Mode    `json:"last_mode"`
	SendScheduled     bool     `json:"send_scheduled"`
}

// Config identifies the managed room and the coalescing window
type Config struct {
	HomeID      string
	RoomID      string
	QuietPeriod time.Duration
}

// Debouncer coalesces bursts of setpoint changes into a single API call
// issued once no new command has arrived for the quiet period.
type Debouncer struct {
	config   Config
	gateway  Gateway
	recorder Recorder
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu                sync.Mutex
	targetTemperature *float64
	targetMode        *Mode
	lastTemperature   *float64
	lastMode          *Mode
	timer             *time.Timer
	generation        uint64
	closed            bool
}

// Option customises a Debouncer
type Option func(*Debouncer)

// WithRecorder registers a recorder for send attempts
func WithRecorder(recorder Recorder) Option {
	return func(d *Debouncer) {
		d.recorder = recorder
	}
}

// NewDebouncer creates a debouncer for one room
func NewDebouncer(config Config, gateway Gateway, logger *slog.Logger, opts ...Option) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Debouncer{
		config:  config,
		gateway: gateway,
		logger:  logger.With("component", "debouncer", "room_id", config.RoomID),
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// SetTemperature requests a new setpoint temperature. A value equal to the
// last one set is ignored, so state echoed back over the bus does not
// trigger another call.
func (d *Debouncer) SetTemperature(value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.lastTemperature != nil && *d.lastTemperature == value {
		d.logger.Debug("Temperature unchanged, ignoring", "temperature", value)
		return
	}

	d.targetTemperature = float64Ptr(value)
	d.lastTemperature = float64Ptr(value)
	d.scheduleSendLocked()
}

// SetMode requests a new operating mode. Going straight from off to boost
// is not accepted by the thermostat, so a manual setpoint is sent first.
func (d *Debouncer) SetMode(mode Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if mode == ModeMax && isOff(d.lastMode) {
		d.logger.Debug("BOOST mode requested. Setting intermediate MANUAL mode first")
		d.cancelScheduledLocked()
		d.targetMode = modePtr(ModeManual)
		d.targetTemperature = float64Ptr(SafeTemperature)
		d.sendLocked()
	}

	if d.lastMode != nil && *d.lastMode == mode {
		d.logger.Debug("Mode unchanged, ignoring", "mode", string(mode))
		return
	}

	d.targetMode = modePtr(mode)
	d.lastMode = modePtr(mode)

	// A manual mode change is ignored by the API unless it carries a setpoint
	if mode == ModeManual && d.targetTemperature == nil {
		if d.lastTemperature != nil {
			d.targetTemperature = float64Ptr(*d.lastTemperature)
		} else {
			d.targetTemperature = float64Ptr(SafeTemperature)
			d.lastTemperature = float64Ptr(SafeTemperature)
		}
		d.logger.Debug("Manual mode requested without pending setpoint, applying one",
			"temperature", *d.targetTemperature)
	}

	d.scheduleSendLocked()
}

// UpdateTemperature records a setpoint reported by the provider
func (d *Debouncer) UpdateTemperature(value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastTemperature = float64Ptr(value)
}

// UpdateMode records a mode reported by the provider
func (d *Debouncer) UpdateMode(mode Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastMode = modePtr(mode)
}

// TemperatureUpdatePending reports whether a temperature change awaits sending
func (d *Debouncer) TemperatureUpdatePending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targetTemperature != nil
}

// ModeUpdatePending reports whether a mode change awaits sending
func (d *Debouncer) ModeUpdatePending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targetMode != nil
}

// Snapshot returns a copy of the current state
func (d *Debouncer) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		TargetTemperature: copyFloat(d.targetTemperature),
		TargetMode:        copyMode(d.targetMode),
		LastTemperature:   copyFloat(d.lastTemperature),
		LastMode:          copyMode(d.lastMode),
		SendScheduled:     d.timer != nil,
	}
}

// Close drops any scheduled send. Commands received afterwards are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelScheduledLocked()
	d.closed = true
	d.cancel()
}

// scheduleSendLocked replaces any scheduled send with a new one firing
// after the quiet period
func (d *Debouncer) scheduleSendLocked() {
	if d.timer != nil {
		d.logger.Debug("Canceling pending thermostat update")
	}
	d.cancelScheduledLocked()

	gen := d.generation
	d.timer = time.AfterFunc(d.config.QuietPeriod, func() {
		d.fire(gen)
	})
	d.logger.Debug("Scheduling thermostat update", "delay", d.config.QuietPeriod)
}

func (d *Debouncer) cancelScheduledLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// A timer that already fired but has not taken the lock yet sees a
	// different generation and gives up
	d.generation++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.generation || d.closed {
		return
	}
	d.sendLocked()
}

// sendLocked issues the pending command and clears it whatever the outcome
func (d *Debouncer) sendLocked() {
	cmd := Command{Temperature: d.targetTemperature, Mode: d.targetMode}

	d.targetTemperature = nil
	d.targetMode = nil
	d.timer = nil

	if cmd.Empty() {
		d.logger.Debug("Nothing to send")
		return
	}

	d.logger.Debug("Sending thermostat update", "params", cmd.Params())
	err := d.gateway.SetRoomState(d.ctx, d.config.HomeID, d.config.RoomID, cmd.Params())
	if err != nil {
		d.logger.Error("Thermostat update failed, command dropped", "params", cmd.Params(), "error", err)
	}

	if d.recorder != nil {
		d.recorder.RecordSend(d.ctx, cmd, err)
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}

func modePtr(m Mode) *Mode {
	return &m
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return float64Ptr(*v)
}

func copyMode(m *Mode) *Mode {
	if m == nil {
		return nil
	}
	return modePtr(*m)
}
