package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/area"
	"github.com/laurakrama/DAG2024/internal/config"
	"github.com/laurakrama/DAG2024/internal/eligibility"
	"github.com/laurakrama/DAG2024/internal/events"
	"github.com/laurakrama/DAG2024/internal/layer"
	"github.com/laurakrama/DAG2024/internal/report"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const carGeoJSON = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::4674"}},
  "features": [
    {"type": "Feature", "properties": {"cod_imovel": "PA-1"},
     "geometry": {"type": "Polygon", "coordinates": [[[-51,-4],[-50.95,-4],[-50.95,-3.98],[-51,-3.98],[-51,-4]]]}},
    {"type": "Feature", "properties": {"cod_imovel": "PA-2"},
     "geometry": {"type": "Polygon", "coordinates": [[[-50.9,-4],[-50.88,-4],[-50.88,-3.98],[-50.9,-3.98],[-50.9,-4]]]}}
  ]
}`

const rlGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"cod_imovel": "PA-1"},
     "geometry": {"type": "Polygon", "coordinates": [[[-51,-4],[-50.98,-4],[-50.98,-3.98],[-51,-3.98],[-51,-4]]]}}
  ]
}`

const vegGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"cod_imovel": "PA-1"},
     "geometry": {"type": "Polygon", "coordinates": [[[-51,-4],[-50.97,-4],[-50.97,-3.98],[-51,-3.98],[-51,-4]]]}},
    {"type": "Feature", "properties": {"cod_imovel": "PA-2"},
     "geometry": {"type": "Polygon", "coordinates": [[[-50.9,-4],[-50.89,-4],[-50.89,-3.98],[-50.9,-3.98],[-50.9,-4]]]}}
  ]
}`

const desmGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "a", "properties": {"image_date": "2020-01-01", "area_km": 0.5, "sub_class": "corte raso com solo exposto", "municipio": "Rurópolis"},
     "geometry": {"type": "Polygon", "coordinates": [[[-51,-4],[-50.99,-4],[-50.99,-3.99],[-51,-3.99],[-51,-4]]]}},
    {"type": "Feature", "id": "b", "properties": {"image_date": "2020-06-15", "area_km": 2.0, "sub_class": "xyz", "municipio": "Rurópolis"},
     "geometry": {"type": "Polygon", "coordinates": [[[-50.9,-4],[-50.89,-4],[-50.89,-3.99],[-50.9,-3.99],[-50.9,-4]]]}},
    {"type": "Feature", "id": "c", "properties": {"image_date": "2021-01-01", "area_km": 5.0, "sub_class": "corte raso com vegetação", "municipio": "Rurópolis"},
     "geometry": {"type": "Polygon", "coordinates": [[[-50.8,-4],[-50.79,-4],[-50.79,-3.99],[-50.8,-3.99],[-50.8,-4]]]}}
  ]
}`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// testConfig writes the layer fixtures to dir and returns a config that
// points at them.
func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Log = config.LogConfig{Level: "error", Format: "json"}
	c.Layers = config.LayersConfig{
		Frame:            "EPSG:4674",
		KeyField:         "cod_imovel",
		Concurrency:      3,
		Properties:       config.SourceConfig{Path: writeFixture(t, dir, "car.geojson", carGeoJSON)},
		LegalReserve:     config.SourceConfig{Path: writeFixture(t, dir, "rl.geojson", rlGeoJSON)},
		NativeVegetation: config.SourceConfig{Path: writeFixture(t, dir, "veg.geojson", vegGeoJSON)},
		Deforestation:    config.SourceConfig{Path: writeFixture(t, dir, "desm.geojson", desmGeoJSON)},
	}
	c.Projection = config.ProjectionConfig{Geographic: "EPSG:4674", Projected: "EPSG:32722"}
	c.Events = config.EventsConfig{
		Categories:        events.DefaultCategories,
		DateField:         "image_date",
		AreaField:         "area_km",
		ClassField:        "sub_class",
		MunicipalityField: "municipio",
	}
	return c
}

// runCLI executes the root command from a directory holding config.yaml.
func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	c := testConfig(t, dir)
	yaml := "log:\n  level: error\nlayers:\n"
	for _, name := range []string{"area_imovel", "reserva_legal", "vegetacao_nativa", "desmatamento"} {
		src, _ := c.Layers.Source(name)
		yaml += "  " + name + ":\n    path: " + src.Path + "\n"
	}
	yaml += "  municipio:\n    path: \"\"\n"
	writeFixture(t, dir, "config.yaml", yaml)
	t.Chdir(dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		zap.ReplaceGlobals(zap.NewNop())
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestOpenWorkspace(t *testing.T) {
	cfg = testConfig(t, t.TempDir())
	ws, err := openWorkspace(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"PA-1", "PA-2"}, ws.Layers.PropertyKeys())
	assert.Equal(t, 3, ws.Events.Len())
}

func TestOpenWorkspace_Invalid(t *testing.T) {
	cfg = testConfig(t, t.TempDir())
	cfg.Layers.Properties = config.SourceConfig{}
	_, err := openWorkspace(t.Context())
	assert.ErrorContains(t, err, "layers.area_imovel.path or table is required")
}

func TestUsesStore(t *testing.T) {
	c := testConfig(t, t.TempDir())
	assert.False(t, usesStore(c))
	c.Layers.Municipality.Table = "ibge.municipio"
	assert.True(t, usesStore(c))
}

func TestNewService_BadFrame(t *testing.T) {
	c := testConfig(t, t.TempDir())
	c.Projection.Projected = "EPSG:4674"
	_, err := newService(c)
	assert.Error(t, err)
}

func TestEventCriteria(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	cat := events.NewCatalog([]events.Event{
		{ID: "a", Date: day(2020, 1, 1), AreaKm2: 0.5, RawSubClass: "corte raso com solo exposto"},
		{ID: "c", Date: day(2021, 1, 1), AreaKm2: 5.0, RawSubClass: "xyz"},
	}, events.DefaultCategories)

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cr events.Criteria)
	}{
		{"defaults", nil, func(t *testing.T, cr events.Criteria) {
			assert.Equal(t, cat.DefaultCriteria(), cr)
		}},
		{"dates", []string{"--from", "2020-03-01", "--to", "2020-12-31"}, func(t *testing.T, cr events.Criteria) {
			assert.Equal(t, day(2020, 3, 1), cr.From)
			assert.Equal(t, day(2020, 12, 31), cr.To)
			assert.Equal(t, 0.5, cr.SizeMin)
		}},
		{"sizes", []string{"--min", "1", "--max", "2"}, func(t *testing.T, cr events.Criteria) {
			assert.Equal(t, 1.0, cr.SizeMin)
			assert.Equal(t, 2.0, cr.SizeMax)
		}},
		{"categories", []string{"--category", events.Uncategorized}, func(t *testing.T, cr events.Criteria) {
			assert.Equal(t, []string{events.Uncategorized}, cr.Categories)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("events", pflag.ContinueOnError)
			addEventFlags(fs)
			require.NoError(t, fs.Parse(tt.args))
			cr, err := eventCriteria(fs, cat)
			require.NoError(t, err)
			tt.check(t, cr)
		})
	}

	fs := pflag.NewFlagSet("events", pflag.ContinueOnError)
	addEventFlags(fs)
	require.NoError(t, fs.Parse([]string{"--from", "01/03/2020"}))
	_, err := eventCriteria(fs, cat)
	assert.ErrorContains(t, err, "invalid --from")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &eligibility.Result{
		PropertyKey:   "PA-1",
		TotalKm2:      10,
		APDKm2:        2,
		AUDKm2:        4,
		IneligibleKm2: 4,
		Shares:        area.ShareOf(2, 4, 4),
		Missing:       &layer.SelectionNotFoundError{Key: "PA-1", Layers: []string{layer.NativeVegetation}},
	})
	out := buf.String()
	assert.Contains(t, out, "Imóvel: PA-1")
	assert.Contains(t, out, "10.00 km²")
	assert.Contains(t, out, "(20.00%)")
	assert.Contains(t, out, "Inviabilidade para REDD")
	assert.Contains(t, out, "camadas ausentes: vegetacao_nativa")

	buf.Reset()
	printResult(&buf, &eligibility.Result{PropertyKey: "PA-404", NoData: true})
	assert.Contains(t, buf.String(), "sem dados")
	assert.NotContains(t, buf.String(), "APD")
}

func TestWriteEventsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEventsTable(&buf, []events.Event{
		{ID: "a", Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), AreaKm2: 0.5, Category: "corte raso com solo exposto"},
		{ID: "b", AreaKm2: 1.25, Category: events.Uncategorized},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "2020-01-01")
	assert.Contains(t, lines[2], "-")
	assert.Equal(t, "2 eventos, 1.75 km²", lines[3])
}

func TestCLI_Properties(t *testing.T) {
	out := runCLI(t, "properties")
	assert.Equal(t, "PA-1\nPA-2\n", out)
}

func TestCLI_EligibilityJSON(t *testing.T) {
	out := runCLI(t, "eligibility", "--property", "PA-1", "--property", "PA-404", "--json")

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)

	total := results[0]["total_area_km2"].(float64)
	assert.InDelta(t, total/5, results[0]["apd_area_km2"].(float64), total*0.01)
	assert.InDelta(t, total*2/5, results[0]["aud_area_km2"].(float64), total*0.01)
	assert.Equal(t, true, results[1]["no_data"])
}

func TestCLI_Events(t *testing.T) {
	out := runCLI(t, "events", "--from", "2020-01-01", "--to", "2020-12-31", "--max", "3", "--json")

	var evs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &evs))
	require.Len(t, evs, 2)
	assert.Equal(t, "a", evs[0]["id"])
	assert.Equal(t, events.Uncategorized, evs[1]["sub_class"])
	assert.Equal(t, "2020-06-15", evs[1]["image_date"])
}

func TestCLI_EventsSummary(t *testing.T) {
	out := runCLI(t, "events", "summary")
	assert.Contains(t, out, "Eventos:      3")
	assert.Contains(t, out, "2020-01-01 a 2021-01-01")
	assert.Contains(t, out, events.Uncategorized)
}

func TestCLI_Report(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	runCLI(t, "report", "--out", path, "--category", events.Uncategorized)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Sheet[report.EligibilitySheet].Rows, 3, "header plus every property")
	ev := f.Sheet[report.EventsSheet]
	require.Len(t, ev.Rows, 2)
	assert.Equal(t, "b", ev.Rows[1].Cells[0].Value)
}
