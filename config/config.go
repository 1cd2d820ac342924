package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

const (
	BusMQTT = "mqtt"
	BusNATS = "nats"

	envPrefix = "SMARTHER"
)

// Config represents the application settings
type Config struct {
	Debug             bool                    `mapstructure:"debug"`
	LogLevel          string                  `mapstructure:"log_level"`
	LogFormat         string                  `mapstructure:"log_format"`
	Netatmo           NetatmoConfig           `mapstructure:"netatmo"`
	OAuthCodeEndpoint OAuthCodeEndpointConfig `mapstructure:"oauth_code_endpoint"`
	Telegram          TelegramConfig          `mapstructure:"telegram"`
	Bus               BusConfig               `mapstructure:"bus"`
	MQTT              MQTTConfig              `mapstructure:"mqtt"`
	NATS              NATSConfig              `mapstructure:"nats"`
	Journal           JournalConfig           `mapstructure:"journal"`
	StatusServer      ServerConfig            `mapstructure:"status_server"`
}

// NetatmoConfig contains Netatmo Connect API settings
type NetatmoConfig struct {
	ClientID           string  `mapstructure:"clientid"`
	ClientSecret       string  `mapstructure:"clientsecret"`
	HomeID             string  `mapstructure:"homeid"`
	RoomID             string  `mapstructure:"roomid"`
	TokenFile          string  `mapstructure:"token_file"`
	PollingInterval    int     `mapstructure:"polling_interval"`      // seconds
	MinRequestIdleTime float64 `mapstructure:"min_request_idle_time"` // seconds
	HTTPTimeout        int     `mapstructure:"http_timeout"`          // seconds
	BaseURL            string  `mapstructure:"base_url"`
	AuthURL            string  `mapstructure:"auth_url"`
	TokenURL           string  `mapstructure:"token_url"`
}

// PollingPeriod returns the polling interval as a duration
func (n NetatmoConfig) PollingPeriod() time.Duration {
	return time.Duration(n.PollingInterval) * time.Second
}

// QuietPeriod returns the command coalescing window
func (n NetatmoConfig) QuietPeriod() time.Duration {
	return time.Duration(n.MinRequestIdleTime * float64(time.Second))
}

// RequestTimeout returns the timeout applied to outbound HTTP calls
func (n NetatmoConfig) RequestTimeout() time.Duration {
	return time.Duration(n.HTTPTimeout) * time.Second
}

// OAuthCodeEndpointConfig is where the temporary authorization listener binds
type OAuthCodeEndpointConfig struct {
	IPAddress string `mapstructure:"ipaddress"`
	Port      int    `mapstructure:"port"`
}

// TelegramConfig contains the optional Telegram notification settings
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Enabled reports whether a bot token has been configured
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

// BusConfig selects the message bus backend
type BusConfig struct {
	Backend string `mapstructure:"backend"`
}

// MQTTConfig contains broker settings and the topic layout. The topic layout
// is shared by every bus backend.
type MQTTConfig struct {
	Broker          BrokerConfig    `mapstructure:"broker"`
	ClientID        string          `mapstructure:"client_id"`
	PublishTopics   PublishTopics   `mapstructure:"publish_topics"`
	SubscribeTopics SubscribeTopics `mapstructure:"subscribe_topics"`
}

// BrokerConfig is the MQTT broker address
type BrokerConfig struct {
	IPAddress string `mapstructure:"ipaddress"`
	Port      int    `mapstructure:"port"`
}

// PublishTopics are the topics room status is published to
type PublishTopics struct {
	BaseTopic           string `mapstructure:"base_topic"`
	Temperature         string `mapstructure:"temperature"`
	Humidity            string `mapstructure:"humidity"`
	SetpointEndtime     string `mapstructure:"setpoint_endtime"`
	TemperatureSetpoint string `mapstructure:"temperature_setpoint"`
	Mode                string `mapstructure:"mode"`
}

// Topic joins the base topic with a leaf
func (p PublishTopics) Topic(leaf string) string {
	return p.BaseTopic + "/" + leaf
}

// SubscribeTopics are the topics commands are received on
type SubscribeTopics struct {
	BaseTopic           string `mapstructure:"base_topic"`
	TemperatureSetpoint string `mapstructure:"temperature_setpoint"`
	Mode                string `mapstructure:"mode"`
}

// Topic joins the base topic with a leaf
func (s SubscribeTopics) Topic(leaf string) string {
	return s.BaseTopic + "/" + leaf
}

// Filter is the wildcard subscription covering every command topic
func (s SubscribeTopics) Filter() string {
	return s.BaseTopic + "/+"
}

// NATSConfig contains NATS connection settings
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// JournalConfig controls the SQLite command journal. An empty path disables it.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig contains HTTP server settings. Port 0 disables the server.
type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// Enabled reports whether the server should be started
func (s ServerConfig) Enabled() bool {
	return s.Port != 0
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Netatmo.ClientID == "" || c.Netatmo.ClientSecret == "" {
		return fmt.Errorf("%w: netatmo client credentials are required", ErrInvalidConfig)
	}

	if c.Netatmo.HomeID == "" || c.Netatmo.RoomID == "" {
		return fmt.Errorf("%w: netatmo.homeid and netatmo.roomid are required", ErrInvalidConfig)
	}

	if c.Netatmo.TokenFile == "" {
		return fmt.Errorf("%w: netatmo.token_file is required", ErrInvalidConfig)
	}

	if c.Netatmo.PollingInterval <= 0 {
		return fmt.Errorf("%w: netatmo.polling_interval must be positive", ErrInvalidConfig)
	}

	if c.Netatmo.MinRequestIdleTime < 0 {
		return fmt.Errorf("%w: netatmo.min_request_idle_time cannot be negative", ErrInvalidConfig)
	}

	if c.OAuthCodeEndpoint.IPAddress == "" {
		return fmt.Errorf("%w: oauth_code_endpoint.ipaddress is required", ErrInvalidConfig)
	}

	if c.OAuthCodeEndpoint.Port <= 0 || c.OAuthCodeEndpoint.Port > 65535 {
		return fmt.Errorf("%w: invalid oauth_code_endpoint port", ErrInvalidConfig)
	}

	if c.Telegram.Enabled() && c.Telegram.ChatID == 0 {
		return fmt.Errorf("%w: telegram.chat_id is required when a bot token is set", ErrInvalidConfig)
	}

	switch c.Bus.Backend {
	case BusMQTT:
		if c.MQTT.Broker.IPAddress == "" {
			return fmt.Errorf("%w: mqtt.broker.ipaddress is required", ErrInvalidConfig)
		}
		if c.MQTT.Broker.Port <= 0 || c.MQTT.Broker.Port > 65535 {
			return fmt.Errorf("%w: invalid mqtt broker port", ErrInvalidConfig)
		}
	case BusNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("%w: nats.url is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown bus backend %q", ErrInvalidConfig, c.Bus.Backend)
	}

	if c.MQTT.PublishTopics.BaseTopic == "" || c.MQTT.SubscribeTopics.BaseTopic == "" {
		return fmt.Errorf("%w: publish and subscribe base topics are required", ErrInvalidConfig)
	}

	if c.StatusServer.Port < 0 || c.StatusServer.Port > 65535 {
		return fmt.Errorf("%w: invalid status server port", ErrInvalidConfig)
	}

	return nil
}

// Load loads settings from a YAML file. Every key can be overridden from
// the environment, e.g. SMARTHER_NETATMO_CLIENTSECRET.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Bus.Backend = strings.ToLower(cfg.Bus.Backend)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every key so that environment overrides apply
// even when the key is missing from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("netatmo.clientid", "")
	v.SetDefault("netatmo.clientsecret", "")
	v.SetDefault("netatmo.homeid", "")
	v.SetDefault("netatmo.roomid", "")
	v.SetDefault("netatmo.token_file", "netatmo_token.json")
	v.SetDefault("netatmo.polling_interval", 60)
	v.SetDefault("netatmo.min_request_idle_time", 5)
	v.SetDefault("netatmo.http_timeout", 30)
	v.SetDefault("netatmo.base_url", "https://api.netatmo.com/api/")
	v.SetDefault("netatmo.auth_url", "https://api.netatmo.com/oauth2/authorize")
	v.SetDefault("netatmo.token_url", "https://api.netatmo.com/oauth2/token")

	v.SetDefault("oauth_code_endpoint.ipaddress", "localhost")
	v.SetDefault("oauth_code_endpoint.port", 8080)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("bus.backend", BusMQTT)

	v.SetDefault("mqtt.broker.ipaddress", "")
	v.SetDefault("mqtt.broker.port", 1883)
	v.SetDefault("mqtt.client_id", "smarther2mqtt")
	v.SetDefault("mqtt.publish_topics.base_topic", "smarther2")
	v.SetDefault("mqtt.publish_topics.temperature", "temperature")
	v.SetDefault("mqtt.publish_topics.humidity", "humidity")
	v.SetDefault("mqtt.publish_topics.setpoint_endtime", "setpoint_endtime")
	v.SetDefault("mqtt.publish_topics.temperature_setpoint", "temperature_setpoint")
	v.SetDefault("mqtt.publish_topics.mode", "mode")
	v.SetDefault("mqtt.subscribe_topics.base_topic", "smarther2/set")
	v.SetDefault("mqtt.subscribe_topics.temperature_setpoint", "temperature_setpoint")
	v.SetDefault("mqtt.subscribe_topics.mode", "mode")

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")

	v.SetDefault("journal.path", "")

	v.SetDefault("status_server.host", "0.0.0.0")
	v.SetDefault("status_server.port", 0)
	v.SetDefault("status_server.api_key", "")
}
