package eligibility

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/laurakrama/DAG2024/internal/geometry"
	"github.com/laurakrama/DAG2024/internal/layer"
)

func rectMP(t *testing.T, minLon, minLat, maxLon, maxLat float64) *geom.MultiPolygon {
	t.Helper()
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}})
	require.NoError(t, err)
	mp, err := layer.AsMultiPolygon(poly)
	require.NoError(t, err)
	return mp
}

func fixtureSet(t *testing.T) *layer.Set {
	t.Helper()
	lyr := func(name string, features ...layer.Feature) *layer.Layer {
		return &layer.Layer{Name: name, Frame: geometry.SIRGAS2000, Features: features}
	}
	return &layer.Set{
		Properties: lyr(layer.PropertyBoundary,
			layer.Feature{Key: "PA-1", Geometry: rectMP(t, -51.00, -4.00, -50.95, -3.98)},
			layer.Feature{Key: "PA-2", Geometry: rectMP(t, -50.90, -4.00, -50.88, -3.98)},
		),
		LegalReserve: lyr(layer.LegalReserve,
			layer.Feature{Key: "PA-1", Geometry: rectMP(t, -51.00, -4.00, -50.98, -3.98)},
		),
		NativeVegetation: lyr(layer.NativeVegetation,
			layer.Feature{Key: "PA-1", Geometry: rectMP(t, -51.00, -4.00, -50.97, -3.98)},
			layer.Feature{Key: "PA-2", Geometry: rectMP(t, -50.90, -4.00, -50.89, -3.98)},
		),
	}
}

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(newEngine(t), geometry.SIRGAS2000)
}

func TestService_ForProperty(t *testing.T) {
	s := newService(t)

	res, err := s.ForProperty(context.Background(), fixtureSet(t), "PA-1")
	require.NoError(t, err)

	assert.NotEmpty(t, res.QueryID)
	assert.Equal(t, "PA-1", res.PropertyKey)
	assert.False(t, res.NoData)
	assert.Nil(t, res.Missing)
	assert.Equal(t, geometry.UTM22S, res.Frame)
	assert.Greater(t, res.APDKm2, 0.0)
	assert.Greater(t, res.AUDKm2, 0.0)
	assert.InEpsilon(t, res.TotalKm2, res.APDKm2+res.AUDKm2+res.IneligibleKm2, 1e-6)
	assert.InDelta(t, 100.0, res.Shares.APD+res.Shares.AUD+res.Shares.Ineligible, 1e-6)
}

func TestService_ForProperty_MissingReserve(t *testing.T) {
	s := newService(t)

	res, err := s.ForProperty(context.Background(), fixtureSet(t), "PA-2")
	require.NoError(t, err)

	require.NotNil(t, res.Missing)
	assert.Equal(t, []string{layer.LegalReserve}, res.Missing.Layers)
	assert.False(t, res.NoData)
	assert.True(t, res.AUD.IsEmpty())
	assert.Equal(t, 0.0, res.AUDKm2)
	assert.Greater(t, res.APDKm2, 0.0)
}

func TestService_ForProperty_NoData(t *testing.T) {
	s := newService(t)

	res, err := s.ForProperty(context.Background(), fixtureSet(t), "PA-404")
	require.NoError(t, err)

	assert.True(t, res.NoData)
	assert.Equal(t, 0.0, res.TotalKm2)
	assert.True(t, res.APD.IsEmpty())
	assert.True(t, res.AUD.IsEmpty())

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"no_data":true`)
	assert.NotContains(t, string(raw), `"APD"`)
}

func TestService_Display(t *testing.T) {
	s := newService(t)

	res, err := s.ForProperty(context.Background(), fixtureSet(t), "PA-1")
	require.NoError(t, err)

	shown, err := s.Display(res.APD)
	require.NoError(t, err)
	assert.Equal(t, geometry.SIRGAS2000, shown.Frame)

	b := shown.Bounds()
	assert.InDelta(t, -50.98, b.Min.X, 1e-6)
	assert.InDelta(t, -50.97, b.Max.X, 1e-6)

	empty, err := s.Display(geometry.Empty(geometry.UTM22S))
	require.NoError(t, err)
	assert.Equal(t, geometry.SIRGAS2000, empty.Frame)
	assert.True(t, empty.IsEmpty())
}

func TestService_Centroid(t *testing.T) {
	s := newService(t)

	pt, ok, err := s.Centroid(fixtureSet(t), "PA-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, -50.975, pt.X, 1e-4)
	assert.InDelta(t, -3.99, pt.Y, 1e-4)

	_, ok, err = s.Centroid(fixtureSet(t), "PA-404")
	require.NoError(t, err)
	assert.False(t, ok)
}
