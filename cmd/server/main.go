package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ldxinsight/catalog/internal/application"
	"github.com/ldxinsight/catalog/internal/config"
	"github.com/ldxinsight/catalog/internal/logging"
	"github.com/ldxinsight/catalog/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"data_dir", cfg.Export.DataDir,
		"export_max_concurrent", cfg.Export.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	app, err := application.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start catalog", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := web.NewServer(app.Store, app.Exporter, app.Limiter, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running exports finish before closing connections.
		if st := app.Limiter.Status(); st.Active > 0 {
			slog.Info("waiting for exports to complete", "active", st.Active)
			if err := app.Limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("exports did not complete in time", "error", err)
			} else {
				slog.Info("all exports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		app.Close()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
