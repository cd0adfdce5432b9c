package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/holdings/internal/control"
	"github.com/vietddude/holdings/internal/core/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single reconciliation pass and exit")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; config values reference its variables via ${VAR}.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	stylelog.InitDefault(
		&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	slog.Info("Logger initialized", "level", slogLevel.String())

	app, err := control.NewService(cfg)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *once {
		if err := app.RunOnce(ctx); err != nil {
			slog.Error("Reconciliation pass failed", "error", err)
			stop(app, 1)
		}
		stop(app, 0)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	case err := <-errChan:
		if err != nil && err != context.Canceled {
			slog.Error("Service failed", "error", err)
			cancel()
			stop(app, 1)
		}
	}
	cancel()

	stop(app, 0)
}

// stop shuts the service down with a bounded grace period and exits.
func stop(app *control.Service, code int) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("Service stopped gracefully")
	os.Exit(code)
}
