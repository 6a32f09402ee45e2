package events

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/laurakrama/DAG2024/internal/layer"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func threeEvents() []Event {
	return []Event{
		{ID: "a", Date: day(2020, 1, 1), AreaKm2: 0.5, RawSubClass: "corte raso com solo exposto"},
		{ID: "b", Date: day(2020, 6, 15), AreaKm2: 2.0, RawSubClass: "xyz"},
		{ID: "c", Date: day(2021, 1, 1), AreaKm2: 5.0, RawSubClass: "corte raso com vegetação"},
	}
}

func TestFilter_CatalogScenario(t *testing.T) {
	c := NewCatalog(threeEvents(), DefaultCategories)

	got, err := c.Filter(Criteria{
		From:       day(2020, 1, 1),
		To:         day(2020, 12, 31),
		SizeMin:    0,
		SizeMax:    3,
		Categories: AllCategories(DefaultCategories),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "corte raso com solo exposto", got[0].Category)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, Uncategorized, got[1].Category)
	assert.Equal(t, "xyz", got[1].RawSubClass)
	assert.Equal(t, "2020-06-15", got[1].DateISO())
}

func TestNormalizeCategory(t *testing.T) {
	decomposed := norm.NFD.String("corte raso com vegetação")
	require.NotEqual(t, "corte raso com vegetação", decomposed)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"specific", "corte raso com solo exposto", "corte raso com solo exposto"},
		{"decomposed accents", decomposed, "corte raso com vegetação"},
		{"unknown", "xyz", Uncategorized},
		{"empty", "", Uncategorized},
		{"case differs", "Corte raso com solo exposto", Uncategorized},
		{"already uncategorized", Uncategorized, Uncategorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCategory(tt.raw, DefaultCategories)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeCategory(got, DefaultCategories), "idempotent")
		})
	}
}

func TestFilter_FullRangeReturnsCatalog(t *testing.T) {
	c := NewCatalog(threeEvents(), DefaultCategories)

	got, err := c.Filter(Criteria{SizeMin: 0.5, SizeMax: 5.0, Categories: c.Categories()})
	require.NoError(t, err)
	assert.Equal(t, c.Events(), got)

	got, err = c.Filter(c.DefaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, c.Events(), got)
}

func TestFilter_BoundaryDay(t *testing.T) {
	events := []Event{
		{ID: "late", Date: time.Date(2020, 12, 31, 23, 59, 59, 0, time.UTC), AreaKm2: 1, RawSubClass: "xyz"},
		{ID: "early", Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), AreaKm2: 1, RawSubClass: "xyz"},
		{ID: "next", Date: day(2021, 1, 1), AreaKm2: 1, RawSubClass: "xyz"},
	}
	c := NewCatalog(events, DefaultCategories)

	got, err := c.Filter(Criteria{
		From:       time.Date(2020, 1, 1, 15, 0, 0, 0, time.UTC),
		To:         time.Date(2020, 12, 31, 8, 0, 0, 0, time.UTC),
		SizeMin:    0,
		SizeMax:    10,
		Categories: []string{Uncategorized},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "late", got[0].ID)
	assert.Equal(t, "early", got[1].ID)
}

func TestFilter_Predicates(t *testing.T) {
	c := NewCatalog(threeEvents(), DefaultCategories)
	all := AllCategories(DefaultCategories)

	tests := []struct {
		name string
		cr   Criteria
		want []string
	}{
		{"size inclusive", Criteria{SizeMin: 2, SizeMax: 5, Categories: all}, []string{"b", "c"}},
		{"single category", Criteria{SizeMin: 0, SizeMax: 10, Categories: []string{"corte raso com vegetação"}}, []string{"c"}},
		{"no categories", Criteria{SizeMin: 0, SizeMax: 10}, []string{}},
		{"open start", Criteria{To: day(2020, 6, 15), SizeMin: 0, SizeMax: 10, Categories: all}, []string{"a", "b"}},
		{"open end", Criteria{From: day(2020, 6, 15), SizeMin: 0, SizeMax: 10, Categories: all}, []string{"b", "c"}},
		{"all predicates", Criteria{From: day(2020, 2, 1), To: day(2021, 2, 1), SizeMin: 1, SizeMax: 3, Categories: all}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Filter(tt.cr)
			require.NoError(t, err)
			ids := []string{}
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
	assert.Equal(t, 3, c.Len(), "catalog untouched")
}

func TestFilter_RangeErrors(t *testing.T) {
	c := NewCatalog(threeEvents(), DefaultCategories)

	_, err := c.Filter(Criteria{From: day(2021, 1, 2), To: day(2021, 1, 1), SizeMax: 1, Categories: c.Categories()})
	var fre *FilterRangeError
	require.True(t, errors.As(err, &fre))
	assert.Equal(t, "date", fre.Field)

	_, err = c.Filter(Criteria{SizeMin: 3, SizeMax: 1, Categories: c.Categories()})
	require.True(t, errors.As(err, &fre))
	assert.Equal(t, "size", fre.Field)

	// Same day with From later in the day than To is still a valid range.
	_, err = c.Filter(Criteria{
		From:       time.Date(2021, 1, 1, 18, 0, 0, 0, time.UTC),
		To:         time.Date(2021, 1, 1, 6, 0, 0, 0, time.UTC),
		SizeMax:    10,
		Categories: c.Categories(),
	})
	assert.NoError(t, err)
}

func TestCatalog_Summary(t *testing.T) {
	c := NewCatalog(threeEvents(), DefaultCategories)

	s := c.Summary()
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 7.5, s.TotalKm2, 1e-12)
	assert.Equal(t, day(2020, 1, 1), s.FirstDate)
	assert.Equal(t, day(2021, 1, 1), s.LastDate)
	assert.Equal(t, 0.5, s.MinKm2)
	assert.Equal(t, 5.0, s.MaxKm2)

	assert.Equal(t, Summary{}, NewCatalog(nil, DefaultCategories).Summary())
}

func TestNewCatalog_CopiesInput(t *testing.T) {
	in := threeEvents()
	c := NewCatalog(in, DefaultCategories)
	in[0].AreaKm2 = 99

	assert.Equal(t, 0.5, c.Events()[0].AreaKm2)
	assert.Equal(t, "", in[1].Category)
}

func TestFromLayer(t *testing.T) {
	l := &layer.Layer{Name: layer.Deforestation, Features: []layer.Feature{
		{Properties: map[string]any{"image_date": "2020-01-01", "area_km": 0.5, "sub_class": "xyz"}},
		{Key: "ev-2", Properties: map[string]any{"image_date": "2020-06-15T10:30:00", "area_km": "2,0"}},
		{Properties: map[string]any{"image_date": float64(1609459200000), "area_km": 5}},
	}}

	events, skipped := FromLayer(l, DefaultFields)
	assert.Zero(t, skipped)
	require.Len(t, events, 3)

	assert.Equal(t, "0", events[0].ID)
	assert.Equal(t, day(2020, 1, 1), events[0].Date)
	assert.Equal(t, "xyz", events[0].RawSubClass)

	assert.Equal(t, "ev-2", events[1].ID)
	assert.Equal(t, time.Date(2020, 6, 15, 10, 30, 0, 0, time.UTC), events[1].Date)
	assert.Equal(t, 2.0, events[1].AreaKm2)

	assert.Equal(t, day(2021, 1, 1), events[2].Date)
	assert.Equal(t, 5.0, events[2].AreaKm2)
}

func TestFromLayer_BadAttributes(t *testing.T) {
	l := &layer.Layer{Features: []layer.Feature{
		{Key: "undated", Properties: map[string]any{"image_date": nil, "area_km": 1.0}},
		{Key: "garbled", Properties: map[string]any{"image_date": "yesterday", "area_km": 2.0}},
		{Key: "no-area", Properties: map[string]any{"image_date": "2020-01-01"}},
		{Key: "nan", Properties: map[string]any{"image_date": "2020-01-01", "area_km": "NaN"}},
		{Key: "inf", Properties: map[string]any{"image_date": "2020-01-01", "area_km": math.Inf(1)}},
		{Key: "ok", Properties: map[string]any{"image_date": "2020-03-01", "area_km": 3.0}},
	}}

	events, skipped := FromLayer(l, DefaultFields)
	assert.Equal(t, 3, skipped)
	require.Len(t, events, 3)
	assert.Equal(t, "undated", events[0].ID)
	assert.True(t, events[0].Date.IsZero())
	assert.Equal(t, "garbled", events[1].ID)
	assert.True(t, events[1].Date.IsZero())
	assert.Equal(t, "ok", events[2].ID)
}

func TestParseFloat_RejectsNonFinite(t *testing.T) {
	for _, v := range []any{"NaN", "nan", "Inf", "-inf", math.NaN(), math.Inf(-1)} {
		_, err := ParseFloat(v)
		assert.Error(t, err, "%v", v)
	}
	f, err := ParseFloat("1,25")
	require.NoError(t, err)
	assert.Equal(t, 1.25, f)
}

func TestFilter_NonFiniteArea(t *testing.T) {
	c := NewCatalog([]Event{
		{ID: "a", Date: day(2020, 1, 1), AreaKm2: 1.0, RawSubClass: "xyz"},
		{ID: "nan", Date: day(2020, 2, 1), AreaKm2: math.NaN(), RawSubClass: "xyz"},
	}, DefaultCategories)

	cr := c.DefaultCriteria()
	assert.Equal(t, 1.0, cr.SizeMin)
	assert.Equal(t, 1.0, cr.SizeMax)

	got, err := c.Filter(cr)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got, err = c.Filter(Criteria{SizeMin: 0, SizeMax: 2, Categories: c.Categories()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	s := c.Summary()
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 1.0, s.TotalKm2)
}

func TestFilter_UndatedEvents(t *testing.T) {
	c := NewCatalog([]Event{
		{ID: "a", Date: day(2020, 1, 1), AreaKm2: 1.0, RawSubClass: "xyz"},
		{ID: "undated", AreaKm2: 1.5, RawSubClass: "xyz"},
	}, DefaultCategories)
	all := c.Categories()

	s := c.Summary()
	assert.Equal(t, day(2020, 1, 1), s.FirstDate)
	assert.Equal(t, day(2020, 1, 1), s.LastDate)

	tests := []struct {
		name string
		cr   Criteria
		want []string
	}{
		{"no date bounds", Criteria{SizeMin: 0, SizeMax: 2, Categories: all}, []string{"a", "undated"}},
		{"upper bound only", Criteria{To: day(2021, 1, 1), SizeMin: 0, SizeMax: 2, Categories: all}, []string{"a"}},
		{"lower bound only", Criteria{From: day(2019, 1, 1), SizeMin: 0, SizeMax: 2, Categories: all}, []string{"a"}},
		{"defaults", c.DefaultCriteria(), []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Filter(tt.cr)
			require.NoError(t, err)
			ids := []string{}
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
