// Package db holds the PostGIS connection pool and bulk copy helpers used
// by the layer store.
package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool the layer store uses. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// Connect opens a pool and checks the connection, retrying transient
// failures with the default policy.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	return ConnectRetry(ctx, connString, DefaultRetryConfig())
}

// ConnectRetry is Connect with an explicit retry policy.
func ConnectRetry(ctx context.Context, connString string, rc RetryConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "db: parse config")
	}
	cfg.MaxConns = 5
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	return retry(ctx, rc, "connect", func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, eris.Wrap(err, "db: create pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "db: ping")
		}
		return pool, nil
	})
}

// Identifier splits an optionally schema-qualified table name.
func Identifier(table string) (pgx.Identifier, error) {
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return nil, eris.Errorf("db: invalid table name %q", table)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, eris.Errorf("db: invalid table name %q", table)
		}
	}
	return pgx.Identifier(parts), nil
}
