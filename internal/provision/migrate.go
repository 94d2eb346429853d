// Package provision prepares a PostGIS server for the loader: the login
// role and database, the postgis extension and the geo_features table.
package provision

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoload/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID keys the transaction-scoped advisory lock taken while
// migrating.
const migrationLockID = 4326_0001

// Migrate applies pending SQL migrations in filename order and records each
// one in geoload.schema_migrations. The whole pass runs in one transaction
// holding pg_advisory_xact_lock, so the lock lives on the same session as
// the migrations and is released by commit or rollback.
func Migrate(ctx context.Context, pool db.Pool) error {
	log := zap.L().With(zap.String("component", "provision.migrate"))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "provision: begin migration transaction")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Warn("provision: rollback migration transaction", zap.Error(err))
		}
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "provision: acquire migration advisory lock")
	}

	count, total, err := applyPending(ctx, tx, log)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "provision: commit migrations")
	}
	committed = true

	log.Info("migrations complete", zap.Int("applied", count), zap.Int("total", total))
	return nil
}

func applyPending(ctx context.Context, conn db.Pool, log *zap.Logger) (int, int, error) {
	if err := ensureMigrationTable(ctx, conn); err != nil {
		return 0, 0, err
	}

	names, err := migrationNames()
	if err != nil {
		return 0, 0, err
	}

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return 0, 0, err
	}

	var count int
	for _, name := range names {
		if applied[name] {
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return count, len(names), eris.Wrapf(err, "provision: read migration %s", name)
		}

		log.Info("applying migration", zap.String("file", name))

		if _, err := conn.Exec(ctx, string(data)); err != nil {
			return count, len(names), eris.Wrapf(err, "provision: apply migration %s", name)
		}

		if _, err := conn.Exec(ctx,
			"INSERT INTO geoload.schema_migrations (filename, applied_at) VALUES ($1, now())",
			name,
		); err != nil {
			return count, len(names), eris.Wrapf(err, "provision: record migration %s", name)
		}
		count++
	}
	return count, len(names), nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, eris.Wrap(err, "provision: read migration dir")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func ensureMigrationTable(ctx context.Context, conn db.Pool) error {
	sql := `
		CREATE SCHEMA IF NOT EXISTS geoload;
		CREATE TABLE IF NOT EXISTS geoload.schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := conn.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "provision: ensure migration table")
	}
	return nil
}

func appliedMigrations(ctx context.Context, conn db.Pool) (map[string]bool, error) {
	rows, err := conn.Query(ctx, "SELECT filename FROM geoload.schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "provision: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "provision: scan migration row")
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
