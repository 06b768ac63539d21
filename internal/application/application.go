// Package application assembles the catalog from its configuration: the
// metadata store selected by DATABASE_DRIVER and the export pipeline on top
// of it. Both the HTTP server and the offline exporter start from here.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ldxinsight/catalog/internal/config"
	"github.com/ldxinsight/catalog/internal/dataset"
	"github.com/ldxinsight/catalog/internal/dataset/postgres"
	"github.com/ldxinsight/catalog/internal/dataset/sqlite"
	"github.com/ldxinsight/catalog/internal/export"
)

// App holds the long-lived components of the catalog.
type App struct {
	Config   *config.Config
	Store    dataset.Store
	Exporter *export.Exporter
	Limiter  *export.Limiter

	close func()
}

// New opens the configured store and wires the export pipeline.
// The caller must Close the App.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, closeStore, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	locator := export.NewLocator(store, cfg.Export.DataDir)
	fetcher := export.NewFetcher(export.FetcherConfig{
		Timeout:   cfg.Export.FetchTimeout,
		MaxBytes:  cfg.Export.MaxBytes,
		UserAgent: cfg.Export.UserAgent,
	})

	return &App{
		Config:   cfg,
		Store:    store,
		Exporter: export.NewExporter(store, locator, fetcher),
		Limiter:  export.NewLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime),
		close:    closeStore,
	}, nil
}

// Close releases the store.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

// OpenStore connects the store named by cfg.Driver and applies its schema.
// The returned func closes it.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (dataset.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("opened sqlite store", "path", cfg.URL)
		return s, func() { s.Close() }, nil

	case config.DriverPostgres, "":
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		s := postgres.New(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
