package loader

import (
	"encoding/json"
	"os"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/laurakrama/DAG2024/internal/geometry"
	"github.com/laurakrama/DAG2024/internal/layer"
)

var epsgCode = regexp.MustCompile(`EPSG:{1,2}(\d+)$`)

// crsMember is the legacy "crs" member written by GDAL and geopandas for
// non-WGS84 data.
type crsMember struct {
	CRS *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// ReadGeoJSON reads a FeatureCollection. Polygon and MultiPolygon features
// are kept; features of other types are rejected. The frame comes from the
// crs member when present.
func ReadGeoJSON(path, keyField string) (*layer.Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}
	return DecodeGeoJSON(data, keyField)
}

// DecodeGeoJSON decodes FeatureCollection bytes into a layer.
func DecodeGeoJSON(data []byte, keyField string) (*layer.Layer, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "loader: decode feature collection")
	}

	l := &layer.Layer{Features: make([]layer.Feature, 0, len(fc.Features))}

	var crs crsMember
	if err := json.Unmarshal(data, &crs); err == nil && crs.CRS != nil {
		if m := epsgCode.FindStringSubmatch(crs.CRS.Properties.Name); m != nil {
			if srid, err := strconv.Atoi(m[1]); err == nil {
				l.Frame = geometry.FrameFromSRID(srid)
			}
		}
	}

	for i, f := range fc.Features {
		mp, err := layer.AsMultiPolygon(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: feature %d", i)
		}
		key := keyOf(f.Properties, keyField)
		if key == "" {
			key = f.ID
		}
		l.Features = append(l.Features, layer.Feature{Key: key, Geometry: mp, Properties: f.Properties})
	}
	return l, nil
}
