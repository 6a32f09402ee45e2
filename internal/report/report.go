// Package report writes eligibility results and filtered deforestation
// events to an XLSX workbook.
package report

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/laurakrama/DAG2024/internal/eligibility"
	"github.com/laurakrama/DAG2024/internal/events"
)

// Sheet names.
const (
	EligibilitySheet = "Elegibilidade"
	EventsSheet      = "Desmatamento"
)

const areaFormat = "0.00"

var (
	eligibilityHeader = []string{
		"cod_imovel", "query_id", "area_total_km2", "apd_km2", "aud_km2",
		"inviabilidade_km2", "apd_pct", "aud_pct", "inviabilidade_pct",
		"sem_dados", "camadas_ausentes", "anomalias",
	}
	eventsHeader = []string{"id", "image_date", "area_km2", "categoria", "sub_class", "municipio"}
)

// Report is the content of one workbook.
type Report struct {
	Results []*eligibility.Result
	Events  []events.Event
}

// Build lays the report out as a workbook with one sheet per section.
func (r Report) Build() (*xlsx.File, error) {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(EligibilitySheet)
	if err != nil {
		return nil, eris.Wrap(err, "report: add eligibility sheet")
	}
	addHeader(sheet, eligibilityHeader)
	for _, res := range r.Results {
		if res == nil {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(res.PropertyKey)
		row.AddCell().SetString(res.QueryID)
		for _, v := range []float64{
			res.TotalKm2, res.APDKm2, res.AUDKm2, res.IneligibleKm2,
			res.Shares.APD, res.Shares.AUD, res.Shares.Ineligible,
		} {
			row.AddCell().SetFloatWithFormat(v, areaFormat)
		}
		row.AddCell().SetBool(res.NoData)
		var missing []string
		if res.Missing != nil {
			missing = res.Missing.Layers
		}
		row.AddCell().SetString(strings.Join(missing, ", "))
		anomalies := make([]string, 0, len(res.Anomalies))
		for _, a := range res.Anomalies {
			anomalies = append(anomalies, a.Kind+": "+a.Detail)
		}
		row.AddCell().SetString(strings.Join(anomalies, "; "))
	}

	sheet, err = f.AddSheet(EventsSheet)
	if err != nil {
		return nil, eris.Wrap(err, "report: add events sheet")
	}
	addHeader(sheet, eventsHeader)
	for _, e := range r.Events {
		row := sheet.AddRow()
		row.AddCell().SetString(e.ID)
		if e.Date.IsZero() {
			row.AddCell().SetString("")
		} else {
			row.AddCell().SetString(e.DateISO())
		}
		row.AddCell().SetFloatWithFormat(e.AreaKm2, areaFormat)
		row.AddCell().SetString(e.Category)
		row.AddCell().SetString(e.RawSubClass)
		row.AddCell().SetString(e.Municipality)
	}

	return f, nil
}

// Write encodes the workbook to w.
func (r Report) Write(w io.Writer) error {
	f, err := r.Build()
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// Save writes the workbook to path.
func (r Report) Save(path string) error {
	f, err := r.Build()
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, names []string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}
