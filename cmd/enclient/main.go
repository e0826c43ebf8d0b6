package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pathcheck/enclient/internal/bridge"
	"github.com/pathcheck/enclient/internal/config"
	"github.com/pathcheck/enclient/internal/history"
	"github.com/pathcheck/enclient/internal/observability"
	"github.com/pathcheck/enclient/internal/permissions"
	"github.com/pathcheck/enclient/internal/publish"
	"github.com/pathcheck/enclient/internal/report"
	"github.com/pathcheck/enclient/internal/signing"
	"github.com/pathcheck/enclient/internal/storage"
	"github.com/pathcheck/enclient/internal/verification"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel)
	logger.Info("starting enclient",
		"platform", cfg.Platform,
		"log_level", cfg.Observability.LogLevel)

	_ = observability.GetMetrics()

	healthChecker := observability.NewHealthChecker(logger)
	healthChecker.RegisterComponent("config")
	healthChecker.RegisterComponent("storage")
	healthChecker.RegisterComponent("bridge")
	healthChecker.RegisterComponent("permissions")
	healthChecker.RegisterComponent("history")
	healthChecker.UpdateComponentHealth("config", observability.StatusHealthy, "")

	obsServer := observability.NewServer(
		cfg.Observability.MetricsPort,
		cfg.Observability.HealthCheckPort,
		logger,
		healthChecker,
	)

	go func() {
		if err := obsServer.Start(ctx); err != nil {
			logger.Error("observability server error",
				"error", err.Error())
		}
	}()

	logger.Debug("initializing storage",
		"type", cfg.Storage.Type)
	var kv storage.Store
	switch cfg.Storage.Type {
	case "sqlite":
		sqliteStore, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			healthChecker.UpdateComponentHealth("storage", observability.StatusUnhealthy, err.Error())
			return fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
		kv = sqliteStore

		go healthChecker.StartPeriodicChecks(ctx, 30*time.Second, map[string]observability.HealthCheckFunc{
			"storage": sqliteStore.Ping,
		})
	case "memory":
		kv = storage.NewMemoryStore()
		healthChecker.UpdateComponentHealth("storage", observability.StatusHealthy, "")
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	defer kv.Close()
	logger.Debug("storage initialized")

	logger.Debug("connecting platform bridge",
		"network", cfg.Bridge.Network,
		"addr", cfg.Bridge.Addr)
	hub := bridge.NewHub()
	native, err := bridge.Dial(cfg.Bridge.Network, cfg.Bridge.Addr, hub, logger)
	if err != nil {
		healthChecker.UpdateComponentHealth("bridge", observability.StatusUnhealthy, err.Error())
		return fmt.Errorf("failed to connect platform bridge: %w", err)
	}
	defer native.Close()
	healthChecker.UpdateComponentHealth("bridge", observability.StatusHealthy, "")
	logger.Debug("platform bridge connected")

	platform := permissions.Platform(cfg.Platform)
	reconciler := permissions.NewReconciler(native, hub, platform, logger)
	reconciler.Start(ctx)
	defer reconciler.Close()
	healthChecker.UpdateComponentHealth("permissions", observability.StatusHealthy, "")
	logger.Debug("permission reconciler started",
		"en_status", string(reconciler.Status()))

	historyStore := history.NewStore(native, hub, kv, logger)
	historyStore.Start(ctx)
	defer historyStore.Close()
	healthChecker.UpdateComponentHealth("history", observability.StatusHealthy, "")
	logger.Debug("exposure history store started",
		"exposures", len(historyStore.Exposures()))

	verifier := verification.NewClient(
		cfg.Verification.BaseURL,
		cfg.Verification.APIKey,
		cfg.Verification.Timeout,
		logger,
	)
	publisher := publish.NewClient(cfg.Publish.URL, cfg.Publish.Timeout, logger)

	pipeline := report.NewPipeline(
		native,
		verifier,
		signing.New(),
		publisher,
		kv,
		cfg.Publish.AppPackageName,
		cfg.Publish.RegionCodes,
		logger,
	)
	logger.Debug("reporting pipeline initialized",
		"regions", cfg.Publish.RegionCodes)

	// One-shot mode: submit a verification code and exit.
	if len(os.Args) > 1 && os.Args[1] == "report" {
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: enclient report <verification-code>")
		}
		result, err := pipeline.Execute(ctx, os.Args[2])
		if err != nil {
			return fmt.Errorf("diagnosis key submission failed: %w", err)
		}
		logger.Info("diagnosis key submission settled",
			"kind", string(result.Kind),
			"newKeysInserted", result.NewKeysInserted)
		return nil
	}

	logger.Info("enclient running")
	<-ctx.Done()

	logger.Info("shutting down")
	return nil
}
