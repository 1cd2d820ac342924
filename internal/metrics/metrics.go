package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smarther2mqtt"

// Metrics holds the bridge's prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	apiCalls          *prometheus.CounterVec
	tokenRefreshes    *prometheus.CounterVec
	commands          *prometheus.CounterVec
	roomTemperature   prometheus.Gauge
	roomHumidity      prometheus.Gauge
	roomSetpoint      prometheus.Gauge
	lastPollTimestamp prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_calls_total",
				Help:      "Netatmo API calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		tokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "OAuth token refresh attempts by result",
			},
			[]string{"result"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "setpoint_commands_total",
				Help:      "Coalesced setpoint commands sent to the thermostat by status",
			},
			[]string{"status"},
		),
		roomTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_temperature_celsius",
			Help:      "Measured room temperature",
		}),
		roomHumidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_humidity_percent",
			Help:      "Measured room humidity",
		}),
		roomSetpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_setpoint_celsius",
			Help:      "Thermostat setpoint temperature",
		}),
		lastPollTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_poll_timestamp_seconds",
			Help:      "Unix time of the last successful status poll",
		}),
	}

	m.registry.MustRegister(
		m.apiCalls,
		m.tokenRefreshes,
		m.commands,
		m.roomTemperature,
		m.roomHumidity,
		m.roomSetpoint,
		m.lastPollTimestamp,
	)

	return m
}

// ObserveAPICall counts a Netatmo API call
func (m *Metrics) ObserveAPICall(endpoint, outcome string) {
	m.apiCalls.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveRefresh counts a token refresh
func (m *Metrics) ObserveRefresh(err error) {
	m.tokenRefreshes.WithLabelValues(result(err)).Inc()
}

// ObserveCommand counts a setpoint command
func (m *Metrics) ObserveCommand(err error) {
	if err != nil {
		m.commands.WithLabelValues("failed").Inc()
		return
	}
	m.commands.WithLabelValues("sent").Inc()
}

// ObserveRoom records the latest room readings
func (m *Metrics) ObserveRoom(measured float64, humidity *float64, setpoint float64) {
	m.roomTemperature.Set(measured)
	if humidity != nil {
		m.roomHumidity.Set(*humidity)
	}
	m.roomSetpoint.Set(setpoint)
	m.lastPollTimestamp.Set(float64(time.Now().Unix()))
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
