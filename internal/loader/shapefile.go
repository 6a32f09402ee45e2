package loader

import (
	"context"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/laurakrama/DAG2024/internal/layer"
)

// ReadShapefile reads a polygon shapefile. Attribute text is decoded with
// the encoding named in the sibling .cpg file, falling back to Latin-1 for
// values that are not valid UTF-8 (the usual case for SICAR exports).
func ReadShapefile(ctx context.Context, path, keyField string) (*layer.Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	dec := attributeDecoder(path)
	fields := reader.Fields()

	l := &layer.Layer{}
	var skipped int
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, shape := reader.Shape()

		props := make(map[string]any, len(fields))
		for i, f := range fields {
			name := strings.TrimRight(f.String(), "\x00")
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			props[name] = attributeValue(raw, f.Fieldtype, dec)
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}
		l.Features = append(l.Features, layer.Feature{
			Key:        keyOf(props, keyField),
			Geometry:   mp,
			Properties: props,
		})
	}

	if skipped > 0 {
		zap.L().Debug("loader: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return l, nil
}

// attributeValue converts numeric dBASE fields to float64 and decodes text.
func attributeValue(raw string, fieldType byte, dec *encoding.Decoder) any {
	if raw == "" {
		return nil
	}
	switch fieldType {
	case 'N', 'F':
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	if dec == nil {
		if utf8.ValidString(raw) {
			return raw
		}
		dec = charmap.ISO8859_1.NewDecoder()
	}
	if s, err := dec.String(raw); err == nil {
		return s
	}
	return raw
}

// attributeDecoder returns the decoder named by the .cpg file, or nil.
func attributeDecoder(shpPath string) *encoding.Decoder {
	cpg := strings.TrimSuffix(shpPath, ".shp") + ".cpg"
	data, err := os.ReadFile(cpg)
	if err != nil {
		return nil
	}
	name := strings.ToLower(strings.TrimSpace(string(data)))
	if name == "" || name == "utf-8" || name == "utf8" {
		return nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		zap.L().Debug("loader: unknown .cpg encoding", zap.String("encoding", name))
		return nil
	}
	return enc.NewDecoder()
}

// polygonToMultiPolygon groups shapefile rings into polygons. Outer rings
// are clockwise; each counter-clockwise ring is a hole of the preceding
// outer ring.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys [][][]geom.Coord
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		var twiceArea float64
		for j := start; j < end; j++ {
			a := p.Points[j]
			ring = append(ring, geom.Coord{a.X, a.Y})
			if j+1 < end {
				b := p.Points[j+1]
				twiceArea += a.X*b.Y - b.X*a.Y
			}
		}

		hole := twiceArea > 0
		if hole && len(polys) > 0 {
			last := len(polys) - 1
			polys[last] = append(polys[last], ring)
			continue
		}
		polys = append(polys, [][]geom.Coord{ring})
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, rings := range polys {
		poly, err := geom.NewPolygon(geom.XY).SetCoords(rings)
		if err != nil {
			zap.L().Debug("loader: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("loader: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
