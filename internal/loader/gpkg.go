package loader

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/laurakrama/DAG2024/internal/geometry"
	"github.com/laurakrama/DAG2024/internal/layer"
)

// ReadGeoPackage reads one feature table of a GeoPackage. An empty table
// name selects the first feature table listed in gpkg_contents.
func ReadGeoPackage(ctx context.Context, path, table, keyField string) (*layer.Layer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "loader: stat geopackage %s", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open geopackage %s", path)
	}
	defer func() { _ = db.Close() }()

	if table == "" {
		err := db.QueryRowContext(ctx,
			`SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name LIMIT 1`,
		).Scan(&table)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: find feature table in %s", path)
		}
	}

	var geomCol string
	var srsID int
	err = db.QueryRowContext(ctx,
		`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`, table,
	).Scan(&geomCol, &srsID)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: geometry column of %s", table)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q`, table))
	if err != nil {
		return nil, eris.Wrapf(err, "loader: query %s", table)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "loader: columns")
	}

	l := &layer.Layer{}
	if srsID > 0 {
		l.Frame = geometry.FrameFromSRID(srsID)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for n := 0; rows.Next(); n++ {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "loader: scan %s row %d", table, n)
		}

		var mp *geom.MultiPolygon
		props := make(map[string]any, len(cols)-1)
		for i, col := range cols {
			if col == geomCol {
				blob, ok := values[i].([]byte)
				if !ok {
					return nil, eris.Errorf("loader: %s row %d: geometry is %T", table, n, values[i])
				}
				g, err := DecodeGeoPackageBinary(blob)
				if err != nil {
					return nil, eris.Wrapf(err, "loader: %s row %d", table, n)
				}
				if mp, err = layer.AsMultiPolygon(g); err != nil {
					return nil, eris.Wrapf(err, "loader: %s row %d", table, n)
				}
				continue
			}
			switch v := values[i].(type) {
			case []byte:
				props[col] = string(v)
			default:
				props[col] = v
			}
		}
		l.Features = append(l.Features, layer.Feature{Key: keyOf(props, keyField), Geometry: mp, Properties: props})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "loader: iterate %s", table)
	}
	return l, nil
}

// envelopeSizes maps the GeoPackage envelope indicator to its byte length.
var envelopeSizes = [...]int{0, 32, 48, 48, 64}

// DecodeGeoPackageBinary strips the GeoPackage binary header and decodes
// the WKB payload. The header SRID, when set, is copied onto the geometry.
func DecodeGeoPackageBinary(b []byte) (geom.T, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, eris.New("loader: not a geopackage geometry")
	}
	flags := b[3]
	if flags&0x20 != 0 {
		return nil, eris.New("loader: extended geopackage geometry not supported")
	}
	indicator := int(flags>>1) & 0x07
	if indicator >= len(envelopeSizes) {
		return nil, eris.Errorf("loader: invalid envelope indicator %d", indicator)
	}
	var order binary.ByteOrder = binary.BigEndian
	if flags&0x01 != 0 {
		order = binary.LittleEndian
	}
	srid := int32(order.Uint32(b[4:8]))

	offset := 8 + envelopeSizes[indicator]
	if len(b) < offset {
		return nil, eris.New("loader: truncated geopackage geometry")
	}
	g, err := wkb.Unmarshal(b[offset:])
	if err != nil {
		return nil, eris.Wrap(err, "loader: decode wkb")
	}
	if srid > 0 {
		switch t := g.(type) {
		case *geom.Polygon:
			t.SetSRID(int(srid))
		case *geom.MultiPolygon:
			t.SetSRID(int(srid))
		}
	}
	return g, nil
}
