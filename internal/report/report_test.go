package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/laurakrama/DAG2024/internal/area"
	"github.com/laurakrama/DAG2024/internal/eligibility"
	"github.com/laurakrama/DAG2024/internal/events"
	"github.com/laurakrama/DAG2024/internal/layer"
)

func sampleReport() Report {
	return Report{
		Results: []*eligibility.Result{
			{
				QueryID:       "q-1",
				PropertyKey:   "PA-1",
				TotalKm2:      10,
				APDKm2:        2,
				AUDKm2:        4,
				IneligibleKm2: 4,
				Shares:        area.ShareOf(2, 4, 4),
				Missing:       &layer.SelectionNotFoundError{Key: "PA-1", Layers: []string{layer.LegalReserve}},
				Anomalies:     []area.Anomaly{{Kind: area.AnomalyNegativeIneligible, Detail: "over"}},
			},
			nil,
			{QueryID: "q-2", PropertyKey: "PA-404", NoData: true},
		},
		Events: []events.Event{
			{ID: "7", Date: time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC), AreaKm2: 0.25, RawSubClass: "corte raso", Category: "corte raso", Municipality: "Altamira"},
			{ID: "8", AreaKm2: 1.5, RawSubClass: "x", Category: events.Uncategorized},
		},
	}
}

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.Value
	}
	return out
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, sampleReport().Save(path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	elig := f.Sheet[EligibilitySheet]
	require.NotNil(t, elig)
	require.Len(t, elig.Rows, 3, "header plus two non-nil results")
	assert.Equal(t, eligibilityHeader, cellStrings(elig.Rows[0]))

	row := elig.Rows[1].Cells
	assert.Equal(t, "PA-1", row[0].Value)
	total, err := row[2].Float()
	require.NoError(t, err)
	assert.InDelta(t, 10.0, total, 1e-9)
	apdPct, err := row[6].Float()
	require.NoError(t, err)
	assert.InDelta(t, 20.0, apdPct, 1e-9)
	assert.Equal(t, layer.LegalReserve, row[10].Value)
	assert.Contains(t, row[11].Value, area.AnomalyNegativeIneligible)

	assert.Equal(t, "PA-404", elig.Rows[2].Cells[0].Value)
	assert.True(t, elig.Rows[2].Cells[9].Bool())

	ev := f.Sheet[EventsSheet]
	require.NotNil(t, ev)
	require.Len(t, ev.Rows, 3)
	assert.Equal(t, eventsHeader, cellStrings(ev.Rows[0]))
	assert.Equal(t, "2023-05-02", ev.Rows[1].Cells[1].Value)
	assert.Equal(t, "Altamira", ev.Rows[1].Cells[5].Value)
	assert.Equal(t, "", ev.Rows[2].Cells[1].Value)
	assert.Equal(t, events.Uncategorized, ev.Rows[2].Cells[3].Value)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Report{}.Write(&buf))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Len(t, f.Sheet[EligibilitySheet].Rows, 1)
	assert.Len(t, f.Sheet[EventsSheet].Rows, 1)
}

func TestSave_BadPath(t *testing.T) {
	err := sampleReport().Save(filepath.Join(t.TempDir(), "missing", "dir", "report.xlsx"))
	assert.Error(t, err)
}
