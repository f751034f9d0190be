// Package main implements the entry point for the snere platform: the
// escape-room fleet core that ingests hardware telemetry, normalizes it into
// domain events, and drives per-room game sessions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/AaronLay10/snere-rewrite/config"
	"github.com/AaronLay10/snere-rewrite/eventfeed"
	"github.com/AaronLay10/snere-rewrite/gateway"
	"github.com/AaronLay10/snere-rewrite/metric"
	"github.com/AaronLay10/snere-rewrite/natsclient"
	"github.com/AaronLay10/snere-rewrite/orchestrator"
	"github.com/AaronLay10/snere-rewrite/service"
	"github.com/AaronLay10/snere-rewrite/session"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "snere"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load validates, applies env overrides, and treats a missing registry
	// token as fatal, so the process never connects anywhere misconfigured.
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "rooms", len(cfg.Rooms))
		return nil
	}

	ctx := context.Background()
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	metricsRegistry := metric.NewMetricsRegistry()

	hardwareBus, eventBus, err := connectBuses(signalCtx, cfg, metricsRegistry)
	if err != nil {
		return err
	}
	defer func() {
		_ = hardwareBus.Close(ctx)
		_ = eventBus.Close(ctx)
	}()

	manager, err := buildServices(cfg, hardwareBus, eventBus, metricsRegistry, logger)
	if err != nil {
		return err
	}

	opsServer := startOpsServer(cfg, metricsRegistry, manager)
	if opsServer != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_ = opsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := manager.StartAll(signalCtx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	slog.Info("snere started", "rooms", len(cfg.Rooms), "platform", cfg.Platform.ID)

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := manager.StopAll(cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("snere shutdown complete")
	return nil
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting snere (escape room fleet core)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// connectBuses creates and connects both NATS clients. The hardware bus
// carries raw controller telemetry; the event bus carries domain events.
func connectBuses(ctx context.Context, cfg *config.Config, metrics *metric.MetricsRegistry) (*natsclient.Client, *natsclient.Client, error) {
	hardwareBus, err := buildClient(cfg.HardwareBus, "hardware-bus", metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("create hardware bus client: %w", err)
	}

	eventBus, err := buildClient(cfg.EventBus, "event-bus", metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("create event bus client: %w", err)
	}

	for _, bus := range []*natsclient.Client{hardwareBus, eventBus} {
		if err := bus.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("connect bus: %w", err)
		}
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := bus.WaitForConnection(connCtx)
		cancel()
		if err != nil {
			return nil, nil, fmt.Errorf("bus connection timeout: %w", err)
		}
	}

	return hardwareBus, eventBus, nil
}

func buildClient(bus config.BusConfig, name string, metrics *metric.MetricsRegistry) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(name),
		natsclient.WithMetrics(metrics),
	}
	if bus.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(bus.MaxReconnects))
	}
	if bus.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(bus.ReconnectWait))
	}
	if bus.Username != "" {
		opts = append(opts, natsclient.WithCredentials(bus.Username, bus.Password))
	}
	if bus.Token != "" {
		opts = append(opts, natsclient.WithToken(bus.Token))
	}
	if bus.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(bus.TLS.CertFile, bus.TLS.KeyFile, bus.TLS.CAFile))
	}
	return natsclient.NewClient(bus.URL, opts...)
}

// buildServices wires the services into the manager. Registration order is
// start order: consumers of domain events come up before the gateway starts
// producing them.
func buildServices(
	cfg *config.Config,
	hardwareBus, eventBus *natsclient.Client,
	metrics *metric.MetricsRegistry,
	logger *slog.Logger,
) (*service.Manager, error) {
	manager := service.NewManager(logger)

	rooms, err := orchestrator.LoadRooms(cfg.Rooms)
	if err != nil {
		return nil, fmt.Errorf("load room definitions: %w", err)
	}

	orch := orchestrator.New(eventBus, eventBus, session.NewRepository(), rooms, metrics,
		service.WithNATS(eventBus), service.WithLogger(logger.With("service", "orchestrator")))
	if err := manager.Register(orch); err != nil {
		return nil, err
	}

	if cfg.Feed.Enabled {
		feed := eventfeed.New(eventBus, cfg.Feed.Addr, metrics,
			service.WithNATS(eventBus), service.WithLogger(logger.With("service", "event-feed")))
		if err := manager.Register(feed); err != nil {
			return nil, err
		}
	}

	registry := gateway.NewRegistryClient(cfg.Registry.URL, cfg.Registry.Token, cfg.Registry.Timeout, logger)
	gw := gateway.New(hardwareBus, eventBus, registry, metrics,
		service.WithNATS(hardwareBus), service.WithLogger(logger.With("service", "ingestion-gateway")))
	if err := manager.Register(gw); err != nil {
		return nil, err
	}

	return manager, nil
}

// startOpsServer serves /metrics and /health when the metrics listener is
// enabled
func startOpsServer(cfg *config.Config, metrics *metric.MetricsRegistry, manager *service.Manager) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		status := manager.Health()
		w.Header().Set("Content-Type", "application/json")
		if !status.IsHealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})

	server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("ops listener started", "addr", cfg.Metrics.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops listener failed", "error", err)
		}
	}()
	return server
}
