// Package loader writes validated features to the geo_features table.
package loader

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoload/internal/db"
	"github.com/sells-group/geoload/internal/geojson"
	"github.com/sells-group/geoload/internal/validate"
)

// Strategy selects how rows are written.
type Strategy string

// Write strategies.
const (
	// StrategyInsert issues one INSERT per feature and lets PostGIS parse
	// the GeoJSON text.
	StrategyInsert Strategy = "insert"
	// StrategyCopy encodes EWKB client side and streams rows with COPY.
	StrategyCopy Strategy = "copy"
)

const (
	defaultSchema    = "public"
	defaultTable     = "geo_features"
	defaultBatchSize = 5000
)

// Columns written for every feature, in order.
var Columns = []string{"name", "properties", "geometry"}

// Options configures a Loader.
type Options struct {
	Strategy  Strategy
	Schema    string
	Table     string
	BatchSize int // rows per COPY batch
}

// Loader persists features. It holds no per-file state and is safe for
// concurrent use with different connections.
type Loader struct {
	opts      Options
	insertSQL string
}

// New creates a Loader, filling unset options with defaults.
func New(opts Options) *Loader {
	if opts.Strategy == "" {
		opts.Strategy = StrategyInsert
	}
	if opts.Schema == "" {
		opts.Schema = defaultSchema
	}
	if opts.Table == "" {
		opts.Table = defaultTable
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &Loader{
		opts: opts,
		insertSQL: fmt.Sprintf(
			`INSERT INTO %s (name, properties, geometry) VALUES ($1, $2::jsonb, ST_SetSRID(ST_GeomFromGeoJSON($3), %d))`,
			pgx.Identifier{opts.Schema, opts.Table}.Sanitize(), geojson.SRID,
		),
	}
}

// Options returns the effective options.
func (l *Loader) Options() Options { return l.opts }

// Load writes one row per feature with name as the source file name and
// returns the number of rows written. The first failure stops the file:
// remaining features are not attempted and the caller is expected to roll
// back what was written. Store errors come back as
// *validate.PersistenceFault, geometry encoding errors as
// *validate.InvalidGeometryShape.
func (l *Loader) Load(ctx context.Context, conn db.Pool, name string, features []geojson.Feature) (int64, error) {
	if len(features) == 0 {
		return 0, nil
	}

	log := zap.L().With(
		zap.String("component", "loader"),
		zap.String("file", name),
		zap.String("strategy", string(l.opts.Strategy)),
	)

	var (
		n   int64
		err error
	)
	switch l.opts.Strategy {
	case StrategyCopy:
		n, err = l.copyFeatures(ctx, conn, name, features, log)
	default:
		n, err = l.insertFeatures(ctx, conn, name, features)
	}
	if err != nil {
		return n, err
	}

	log.Debug("features written", zap.Int64("rows", n))
	return n, nil
}

func (l *Loader) insertFeatures(ctx context.Context, conn db.Pool, name string, features []geojson.Feature) (int64, error) {
	var n int64
	for i, f := range features {
		props, geomText, err := encodeFeature(name, f)
		if err != nil {
			return n, err
		}
		if _, err := conn.Exec(ctx, l.insertSQL, name, props, geomText); err != nil {
			return n, &validate.PersistenceFault{
				Filename: name,
				Err:      eris.Wrapf(err, "loader: insert feature %d", i),
			}
		}
		n++
	}
	return n, nil
}

func (l *Loader) copyFeatures(ctx context.Context, conn db.Pool, name string, features []geojson.Feature, log *zap.Logger) (int64, error) {
	rows := make([][]any, 0, len(features))
	for _, f := range features {
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return 0, &validate.PersistenceFault{Filename: name, Err: eris.Wrap(err, "loader: encode properties")}
		}
		wkb, err := geojson.EncodeEWKB(f.Geometry)
		if err != nil {
			return 0, shapeFault(name, f.Geometry, err)
		}
		rows = append(rows, []any{name, string(props), wkb})
	}

	var total int64
	for i := 0; i < len(rows); i += l.opts.BatchSize {
		end := min(i+l.opts.BatchSize, len(rows))

		n, err := db.CopyFromSchema(ctx, conn, l.opts.Schema, l.opts.Table, Columns, rows[i:end])
		if err != nil {
			return total, &validate.PersistenceFault{
				Filename: name,
				Err:      eris.Wrapf(err, "loader: batch %d-%d", i, end),
			}
		}
		total += n

		log.Debug("batch loaded",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int64("batch_rows", n),
		)
	}
	return total, nil
}

func encodeFeature(name string, f geojson.Feature) (string, string, error) {
	props, err := json.Marshal(f.Properties)
	if err != nil {
		return "", "", &validate.PersistenceFault{Filename: name, Err: eris.Wrap(err, "loader: encode properties")}
	}
	geomText, err := geojson.EncodeGeoJSON(f.Geometry)
	if err != nil {
		return "", "", shapeFault(name, f.Geometry, err)
	}
	return string(props), geomText, nil
}

func shapeFault(name string, g geojson.Geometry, err error) error {
	return &validate.InvalidGeometryShape{Filename: name, Type: string(g.Type), Reason: err.Error()}
}
