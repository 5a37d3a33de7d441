// Command server serves the validation service over HTTP and, when
// configured, re-validates the staged file on a schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/csvgate/internal/config"
	"github.com/JonMunkholm/csvgate/internal/database"
	"github.com/JonMunkholm/csvgate/internal/logging"
	"github.com/JonMunkholm/csvgate/internal/runstore"
	"github.com/JonMunkholm/csvgate/internal/schedule"
	"github.com/JonMunkholm/csvgate/internal/validate"
	"github.com/JonMunkholm/csvgate/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Overload: a local .env wins over the inherited environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// serve runs until ctx is cancelled, then drains the scheduler and the HTTP
// server within the configured shutdown timeout.
func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"schema", cfg.Paths.SchemaPath,
		"staged", cfg.Paths.StagedPath,
		"run_max_concurrent", cfg.Engine.MaxConcurrentRuns,
		"database", cfg.Database.Enabled(),
	)

	opts := validate.OptionsFromConfig(cfg)
	var serverOpts []web.Option

	if cfg.Database.Enabled() {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		store := runstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate run history: %w", err)
		}
		opts.Recorder = store
		serverOpts = append(serverOpts, web.WithRunHistory(store))
	}

	service := validate.NewService(opts)
	server := web.NewServer(service, cfg, serverOpts...)

	// Scheduled runs outlive ctx so Stop can wait for one in flight.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	scheduler := schedule.New(service, schedule.Options{
		Path:     cfg.Paths.StagedPath,
		Cron:     cfg.Schedule.Cron,
		Watch:    cfg.Schedule.WatchStaged,
		Debounce: cfg.Schedule.Debounce,
		Save:     true,
	})
	if err := scheduler.Start(jobCtx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		scheduler.Stop(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		slog.Warn("scheduled validation did not complete in time", "error", err)
	}
	cancelJobs()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
