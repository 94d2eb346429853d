// Package db provides the PostgreSQL connection pool and shared bulk-load helpers.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoload/internal/resilience"
)

// Pool is the subset of pgx behaviour the loader needs. *pgxpool.Pool,
// pgx.Tx and pgxmock pools all satisfy it, so a transaction can be handed to
// anything that accepts a Pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Pinger is implemented by anything that can check server reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolOptions configures Connect.
type PoolOptions struct {
	MaxConns int32
	Retry    resilience.RetryConfig
}

// Connect creates a connection pool for dsn and blocks until the server
// accepts connections or the retry budget is spent.
func Connect(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "db: parse connection string")
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "db: create connection pool")
	}

	if err := WaitForReady(ctx, pool, opts.Retry); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// WaitForReady pings until the server answers. Transient failures (server
// still starting, connection refused) are retried with backoff; anything else
// fails immediately.
func WaitForReady(ctx context.Context, p Pinger, cfg resilience.RetryConfig) error {
	log := zap.L().With(zap.String("component", "db.wait"))

	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error) {
			log.Info("database unavailable, sleeping", zap.Int("attempt", attempt), zap.Error(err))
		}
	}

	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return p.Ping(ctx)
	})
	if err != nil {
		return eris.Wrap(err, "db: wait for database")
	}

	log.Info("database is up")
	return nil
}
