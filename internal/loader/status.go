package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geoload/internal/db"
)

// StatusRow summarises the rows loaded from one source file.
type StatusRow struct {
	Name       string    `json:"name" yaml:"name"`
	Features   int64     `json:"features" yaml:"features"`
	LastLoaded time.Time `json:"last_loaded" yaml:"last_loaded"`
}

// Status returns per-file row counts, ordered by file name. Files loaded
// more than once count every copy.
func (l *Loader) Status(ctx context.Context, pool db.Pool) ([]StatusRow, error) {
	sql := fmt.Sprintf(
		`SELECT name, count(*), max(loaded_at) FROM %s GROUP BY name ORDER BY name`,
		pgx.Identifier{l.opts.Schema, l.opts.Table}.Sanitize(),
	)

	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "loader: query status")
	}
	defer rows.Close()

	var out []StatusRow
	for rows.Next() {
		var r StatusRow
		if err := rows.Scan(&r.Name, &r.Features, &r.LastLoaded); err != nil {
			return nil, eris.Wrap(err, "loader: scan status row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "loader: iterate status rows")
	}
	return out, nil
}
