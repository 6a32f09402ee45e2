package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/config"
	"github.com/laurakrama/DAG2024/internal/db"
	"github.com/laurakrama/DAG2024/internal/eligibility"
	"github.com/laurakrama/DAG2024/internal/geometry"
	"github.com/laurakrama/DAG2024/internal/loader"
	"github.com/laurakrama/DAG2024/internal/projection"
)

// usesStore reports whether any layer is read from a PostGIS table.
func usesStore(c *config.Config) bool {
	for _, name := range config.LayerNames {
		if src, _ := c.Layers.Source(name); src.Table != "" {
			return true
		}
	}
	return false
}

// connectStore opens the PostGIS pool with the configured retry budget.
func connectStore(ctx context.Context, c *config.Config) (*pgxpool.Pool, error) {
	return db.ConnectRetry(ctx, c.Store.DatabaseURL, db.RetryConfig{MaxAttempts: c.Store.ConnectAttempts})
}

// loaderOptions connects the PostGIS pool when a table source needs it.
// The returned func releases it.
func loaderOptions(ctx context.Context, c *config.Config) (loader.Options, func(), error) {
	if !usesStore(c) {
		return loader.Options{}, func() {}, nil
	}
	pool, err := connectStore(ctx, c)
	if err != nil {
		return loader.Options{}, nil, eris.Wrap(err, "connect layer store")
	}
	return loader.Options{Pool: pool}, pool.Close, nil
}

// openWorkspace validates the config and loads layers and events.
func openWorkspace(ctx context.Context) (*loader.Workspace, error) {
	if err := cfg.Validate("query"); err != nil {
		return nil, err
	}
	opts, release, err := loaderOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer release()

	ws, err := loader.Open(ctx, cfg, opts)
	if err != nil {
		return nil, eris.Wrap(err, "open workspace")
	}
	zap.L().Debug("workspace ready",
		zap.Int("properties", ws.Layers.Properties.Len()),
		zap.Int("events", ws.Events.Len()),
	)
	return ws, nil
}

// newService builds the eligibility service for the configured frames.
func newService(c *config.Config) (*eligibility.Service, error) {
	p, err := projection.New(projection.NewRegistry())
	if err != nil {
		return nil, eris.Wrap(err, "init projector")
	}
	engine, err := eligibility.NewEngine(p, geometry.Frame(c.Projection.Projected))
	if err != nil {
		return nil, err
	}
	return eligibility.NewService(engine, geometry.Frame(c.Projection.Geographic)), nil
}
