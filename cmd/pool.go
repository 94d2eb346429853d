package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geoload/internal/config"
	"github.com/sells-group/geoload/internal/db"
	"github.com/sells-group/geoload/internal/loader"
	"github.com/sells-group/geoload/internal/resilience"
)

// openPool validates the configuration and connects to the application
// database, waiting for it to accept connections.
func openPool(ctx context.Context, c *config.Config) (*pgxpool.Pool, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return connect(ctx, c, c.DSN())
}

func connect(ctx context.Context, c *config.Config, dsn string) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, dsn, db.PoolOptions{
		MaxConns: int32(c.Database.MaxConns),
		Retry:    waitRetry(c.Wait),
	})
	if err != nil {
		return nil, eris.Wrap(err, "connect to database")
	}
	return pool, nil
}

func waitRetry(w config.WaitConfig) resilience.RetryConfig {
	rc := resilience.FromWaitConfig(w.MaxAttempts, w.InitialBackoffMs, w.MaxBackoffMs)
	rc.OnRetry = resilience.RetryLogger("postgis", "connect")
	return rc
}

func newLoader(c *config.Config) *loader.Loader {
	return loader.New(loader.Options{
		Strategy:  loader.Strategy(c.Load.Strategy),
		Schema:    c.Load.Schema,
		Table:     c.Load.Table,
		BatchSize: c.Load.BatchSize,
	})
}
