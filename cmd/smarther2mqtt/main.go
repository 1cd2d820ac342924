package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"smarther2mqtt/config"
	"smarther2mqtt/internal/logging"
	"smarther2mqtt/internal/netatmo"
	"smarther2mqtt/internal/notify"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "settings.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:          "smarther2mqtt",
	Short:        "Netatmo Smarther2 to MQTT bridge",
	Long:         "Polls a Netatmo Smarther2 thermostat, republishes its state on a message bus and applies setpoint commands received from it",
	SilenceUsage: true,
	RunE:         runBridge,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to settings file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles what every command needs
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *netatmo.FileStore
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.LogFormat,
		Level:  logging.LevelFor(cfg.Debug, cfg.LogLevel),
	})

	store := netatmo.NewFileStore(cfg.Netatmo.TokenFile, logger)
	store.Load()
	logger.Debug("Netatmo token exists", "exists", store.Exists())

	return &app{cfg: cfg, logger: logger, store: store}, nil
}

// signalContext is cancelled on Ctrl-C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// notificationChannels always logs, and also uses Telegram when configured
func (a *app) notificationChannels() notify.Channel {
	channels := notify.Channels{notify.NewLogChannel(a.logger)}

	if a.cfg.Telegram.Enabled() {
		telegram, err := notify.NewTelegramChannel(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.logger)
		if err != nil {
			a.logger.Warn("Telegram notifications unavailable", "error", err)
		} else {
			channels = append(channels, telegram)
		}
	}

	return channels
}

func (a *app) authenticator(opts ...netatmo.AuthOption) *netatmo.Authenticator {
	return netatmo.NewAuthenticator(netatmo.OAuthConfig{
		ClientID:     a.cfg.Netatmo.ClientID,
		ClientSecret: a.cfg.Netatmo.ClientSecret,
		AuthURL:      a.cfg.Netatmo.AuthURL,
		TokenURL:     a.cfg.Netatmo.TokenURL,
		Scopes:       netatmo.DefaultScopes,
		ListenHost:   a.cfg.OAuthCodeEndpoint.IPAddress,
		ListenPort:   a.cfg.OAuthCodeEndpoint.Port,
		HTTPTimeout:  a.cfg.Netatmo.RequestTimeout(),
	}, a.store, a.notificationChannels(), a.logger, opts...)
}
