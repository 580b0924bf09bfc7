package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/cli"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/config_manager"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/event_stream"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/monitor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/observability"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/predictor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/wireless_scanner"
)

const shutdownTimeout = 10 * time.Second

func loadConfig() (*config_manager.Config, string) {
	configPath := config_manager.ConfigPath()
	config, err := config_manager.EnsureDefaultConfig(configPath)
	if err != nil {
		logrus.WithError(err).WithField("config_path", configPath).Fatal("Failed to load config")
	}
	config_manager.ApplyEnvOverrides(config)
	if err := config.Validate(); err != nil {
		logrus.WithError(err).WithField("config_path", configPath).Fatal("Invalid config")
	}
	return config, configPath
}

func main() {
	config, configPath := loadConfig()
	InitializeGlobalLogger(config.LogLevel)

	logger.WithFields(logrus.Fields{
		"config_path": configPath,
		"version":     cli.Version,
	}).Info("Starting Signal Analyzer")

	var metrics *observability.Collector
	if config.Metrics.Enabled {
		var err error
		metrics, err = observability.NewCollector(nil)
		if err != nil {
			logger.WithError(err).Fatal("Failed to register metrics")
		}
	}

	scanner, err := wireless_scanner.New(config.Scanner.ScannerOptions())
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scanner")
	}
	scanner.SetRecorder(metrics)

	hub := event_stream.NewHub(event_stream.Options{AllowedOrigin: config.CORS.AllowedOrigin})
	hub.SetRecorder(metrics)

	mon := monitor.New(scanner, hub, config.Monitor.MonitorOptions())
	mon.SetRecorder(metrics)
	hub.SetController(mon)

	pred, err := predictor.LoadFile(config.Model.BundlePath)
	if err != nil {
		logger.WithError(err).Warn("Running without trained model, location predictions disabled")
	}

	cliServer := cli.NewCLIServer(config.SocketPath, mon, pred)
	if err := cliServer.Start(); err != nil {
		logger.WithError(err).Warn("CLI server unavailable")
	}

	api := newAPIServer(scanner, pred, mon, metrics)
	opts := routeOptions{
		AllowedOrigin: config.CORS.AllowedOrigin,
		Stream:        hub,
	}
	if config.Metrics.Enabled {
		opts.MetricsPath = config.Metrics.Path
	}

	server := &http.Server{
		Addr:    config.ListenAddr,
		Handler: api.routes(opts),
		// Add explicit timeouts to avoid potential deadlocks in Go 1.24
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", config.ListenAddr).Info("HTTP server listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := mon.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Monitor did not stop in time")
	}
	hub.Close()
	cliServer.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	logger.Info("Signal Analyzer stopped")
}
