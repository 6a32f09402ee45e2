package loader

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/db"
	"github.com/laurakrama/DAG2024/internal/geometry"
	"github.com/laurakrama/DAG2024/internal/layer"
)

// GeomColumn is the geometry column name of layer tables.
const GeomColumn = "geom"

// ReadTable reads a PostGIS table. Every non-geometry column becomes a
// feature attribute; a jsonb "properties" column written by ImportLayer is
// flattened into the attributes.
func ReadTable(ctx context.Context, pool db.Pool, table, keyField string) (*layer.Layer, error) {
	ident, err := db.Identifier(table)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(
		`SELECT ST_AsEWKB(t.%[1]s), (to_jsonb(t) - '%[1]s')::text FROM %[2]s t`,
		GeomColumn, ident.Sanitize(),
	)
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: query table %s", table)
	}
	defer rows.Close()

	l := &layer.Layer{}
	for n := 0; rows.Next(); n++ {
		var (
			blob  []byte
			attrs string
		)
		if err := rows.Scan(&blob, &attrs); err != nil {
			return nil, eris.Wrapf(err, "loader: scan %s row %d", table, n)
		}

		g, err := ewkb.Unmarshal(blob)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: decode %s row %d", table, n)
		}
		mp, err := layer.AsMultiPolygon(g)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: %s row %d", table, n)
		}
		if l.Frame == "" && mp.SRID() != 0 {
			l.Frame = geometry.FrameFromSRID(mp.SRID())
		}

		props := map[string]any{}
		if err := json.Unmarshal([]byte(attrs), &props); err != nil {
			return nil, eris.Wrapf(err, "loader: decode attributes of %s row %d", table, n)
		}
		if nested, ok := props["properties"].(map[string]any); ok {
			delete(props, "properties")
			for k, v := range nested {
				if _, exists := props[k]; !exists {
					props[k] = v
				}
			}
		}

		l.Features = append(l.Features, layer.Feature{Key: keyOf(props, keyField), Geometry: mp, Properties: props})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "loader: iterate %s", table)
	}
	return l, nil
}

// ImportLayer replaces the contents of a PostGIS table with the features
// of l, creating the table when missing. It returns the number of rows
// copied.
func ImportLayer(ctx context.Context, pool db.Pool, table, keyField string, l *layer.Layer) (int64, error) {
	ident, err := db.Identifier(table)
	if err != nil {
		return 0, err
	}
	if keyField == "" || keyField == GeomColumn || keyField == "properties" {
		return 0, eris.Errorf("loader: invalid key field %q", keyField)
	}
	srid := l.Frame.SRID()

	log := zap.L().With(zap.String("component", "loader.import"), zap.String("table", table))

	create := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s TEXT, properties JSONB, %s geometry(MultiPolygon, %d))`,
		ident.Sanitize(), pgx.Identifier{keyField}.Sanitize(), GeomColumn, srid,
	)
	if _, err := pool.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "loader: create table %s", table)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, ident.Sanitize())); err != nil {
		return 0, eris.Wrapf(err, "loader: truncate %s", table)
	}

	rows := make([][]any, 0, l.Len())
	for i, f := range l.Features {
		g := f.Geometry.Clone()
		if srid != 0 {
			g.SetSRID(srid)
		}
		blob, err := ewkb.Marshal(g, ewkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "loader: encode feature %d", i)
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return 0, eris.Wrapf(err, "loader: encode attributes of feature %d", i)
		}
		rows = append(rows, []any{f.Key, string(props), blob})
	}

	n, err := db.CopyFrom(ctx, pool, ident, []string{keyField, "properties", GeomColumn}, rows, 0)
	if err != nil {
		return n, err
	}
	log.Info("layer imported", zap.Int64("rows", n), zap.Int("srid", srid))
	return n, nil
}
