package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"smarther2mqtt/config"
	"smarther2mqtt/internal/api"
	"smarther2mqtt/internal/bridge"
	"smarther2mqtt/internal/bus"
	"smarther2mqtt/internal/logging"
	"smarther2mqtt/internal/metrics"
	"smarther2mqtt/internal/netatmo"
	"smarther2mqtt/internal/storage"
	"smarther2mqtt/internal/storage/sqlite"
	"smarther2mqtt/internal/thermostat"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge (default)",
	RunE:  runBridge,
}

func runBridge(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	logger := a.logger
	cfg := a.cfg

	ctx, stop := signalContext()
	defer stop()

	m := metrics.New()
	auth := a.authenticator(netatmo.WithAuthObserver(m))
	client := netatmo.NewClient(netatmo.ClientConfig{
		BaseURL:     cfg.Netatmo.BaseURL,
		HTTPTimeout: cfg.Netatmo.RequestTimeout(),
	}, a.store, auth, logger, netatmo.WithCallObserver(m))

	if !a.store.Exists() {
		if err := auth.Authorize(ctx); err != nil {
			if errors.Is(err, netatmo.ErrAuthorizationAborted) {
				logger.Info("Authorization interrupted, exiting")
				return nil
			}
			return fmt.Errorf("failed to obtain token: %w", err)
		}
	}

	// Optional command journal
	var journal storage.Journal
	if cfg.Journal.Path != "" {
		db, err := sqlite.New(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize journal: %w", err)
		}
		defer db.Close()
		journal = db
		logger.Info("Command journal enabled", "path", cfg.Journal.Path)
	}

	debouncer := thermostat.NewDebouncer(thermostat.Config{
		HomeID:      cfg.Netatmo.HomeID,
		RoomID:      cfg.Netatmo.RoomID,
		QuietPeriod: cfg.Netatmo.QuietPeriod(),
	}, logging.NewRoomStateLogger(client, logger), logger,
		thermostat.WithRecorder(&commandRecorder{
			journal: journal,
			metrics: m,
			homeID:  cfg.Netatmo.HomeID,
			roomID:  cfg.Netatmo.RoomID,
			logger:  logger,
		}))
	defer debouncer.Close()

	registry, err := busRegistry(cfg)
	if err != nil {
		return err
	}
	messageBus, err := registry.Open(cfg.Bus.Backend, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to %s bus: %w", cfg.Bus.Backend, err)
	}
	defer messageBus.Close()

	commands := bridge.NewCommandHandler(cfg.MQTT.SubscribeTopics, debouncer, logger)
	if err := messageBus.Subscribe(commands.Filter(), commands.Handle); err != nil {
		return err
	}

	poller := bridge.NewPoller(bridge.PollerConfig{
		HomeID:   cfg.Netatmo.HomeID,
		RoomID:   cfg.Netatmo.RoomID,
		Interval: cfg.Netatmo.PollingPeriod(),
		Topics:   cfg.MQTT.PublishTopics,
	}, client, auth, debouncer, messageBus, logger, bridge.WithRoomObserver(m))

	if cfg.StatusServer.Enabled() {
		server := newStatusServer(cfg.StatusServer, api.RouterConfig{
			Commands:   debouncer,
			Room:       poller,
			Token:      a.store,
			Flow:       auth,
			Journal:    journal,
			Metrics:    m.Handler(),
			APIKey:     cfg.StatusServer.APIKey,
			StaleAfter: 3 * cfg.Netatmo.PollingPeriod(),
			Logger:     logger,
		})
		go func() {
			logger.Info("Starting status server", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("Status server shutdown failed", "error", err)
			}
		}()
	}

	err = poller.Run(ctx)
	if errors.Is(err, netatmo.ErrAuthorizationAborted) {
		logger.Info("Authorization interrupted, exiting")
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("Bridge stopped")
	return nil
}

// busRegistry knows how to open every supported backend
func busRegistry(cfg *config.Config) (*bus.Registry, error) {
	registry := bus.NewRegistry()

	if err := registry.Register(config.BusMQTT, func(logger *slog.Logger) (bus.Bus, error) {
		return bus.NewMQTTBus(bus.MQTTConfig{
			Host:     cfg.MQTT.Broker.IPAddress,
			Port:     cfg.MQTT.Broker.Port,
			ClientID: cfg.MQTT.ClientID,
		}, logger)
	}); err != nil {
		return nil, fmt.Errorf("failed to register mqtt bus: %w", err)
	}

	if err := registry.Register(config.BusNATS, func(logger *slog.Logger) (bus.Bus, error) {
		return bus.NewNATSBus(cfg.NATS.URL, cfg.MQTT.ClientID, logger)
	}); err != nil {
		return nil, fmt.Errorf("failed to register nats bus: %w", err)
	}

	return registry, nil
}

func newStatusServer(cfg config.ServerConfig, routes api.RouterConfig) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           api.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
