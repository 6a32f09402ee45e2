package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/laurakrama/DAG2024/internal/events"
)

var (
	eventsFrom       string
	eventsTo         string
	eventsMin        float64
	eventsMax        float64
	eventsCategories []string
	eventsJSON       bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Filter the deforestation catalog by date, size and category",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		cr, err := eventCriteria(cmd.Flags(), ws.Events)
		if err != nil {
			return err
		}
		evs, err := ws.Events.Filter(cr)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if eventsJSON {
			return writeEventsJSON(out, evs)
		}
		return writeEventsTable(out, evs)
	},
}

var eventsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the catalog extents used as default filter bounds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), ws.Events)
		return nil
	},
}

// eventCriteria starts from the full catalog range and applies the flags
// the user set.
func eventCriteria(flags *pflag.FlagSet, cat *events.Catalog) (events.Criteria, error) {
	cr := cat.DefaultCriteria()
	for _, d := range []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"from", eventsFrom, &cr.From},
		{"to", eventsTo, &cr.To},
	} {
		if !flags.Changed(d.name) {
			continue
		}
		t, err := time.Parse(events.ISODate, d.value)
		if err != nil {
			return cr, eris.Wrapf(err, "invalid --%s %q (want YYYY-MM-DD)", d.name, d.value)
		}
		*d.dst = t
	}
	if flags.Changed("min") {
		cr.SizeMin = eventsMin
	}
	if flags.Changed("max") {
		cr.SizeMax = eventsMax
	}
	if flags.Changed("category") {
		cr.Categories = eventsCategories
	}
	return cr, nil
}

func writeEventsTable(w io.Writer, evs []events.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATA\tÁREA (km²)\tCATEGORIA\tMUNICÍPIO")
	var total float64
	for _, e := range evs {
		date := "-"
		if !e.Date.IsZero() {
			date = e.DateISO()
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", e.ID, date, e.AreaKm2, e.Category, e.Municipality)
		total += e.AreaKm2
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "write events")
	}
	fmt.Fprintf(w, "%d eventos, %.2f km²\n", len(evs), total)
	return nil
}

type eventJSON struct {
	ID           string  `json:"id"`
	ImageDate    string  `json:"image_date,omitempty"`
	AreaKm2      float64 `json:"area_km"`
	SubClass     string  `json:"sub_class"`
	SubClassRaw  string  `json:"sub_class_raw"`
	Municipality string  `json:"municipio,omitempty"`
}

func writeEventsJSON(w io.Writer, evs []events.Event) error {
	out := make([]eventJSON, 0, len(evs))
	for _, e := range evs {
		ej := eventJSON{
			ID:           e.ID,
			AreaKm2:      e.AreaKm2,
			SubClass:     e.Category,
			SubClassRaw:  e.RawSubClass,
			Municipality: e.Municipality,
		}
		if !e.Date.IsZero() {
			ej.ImageDate = e.DateISO()
		}
		out = append(out, ej)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printSummary(w io.Writer, cat *events.Catalog) {
	s := cat.Summary()
	fmt.Fprintf(w, "Eventos:      %d\n", s.Count)
	fmt.Fprintf(w, "Área total:   %.2f km²\n", s.TotalKm2)
	if !s.FirstDate.IsZero() {
		fmt.Fprintf(w, "Período:      %s a %s\n", s.FirstDate.Format(events.ISODate), s.LastDate.Format(events.ISODate))
	}
	if s.Count > 0 {
		fmt.Fprintf(w, "Tamanho:      %.2f a %.2f km²\n", s.MinKm2, s.MaxKm2)
	}
	fmt.Fprintln(w, "Categorias:")
	for _, c := range cat.Categories() {
		fmt.Fprintf(w, "  - %s\n", c)
	}
}

// addEventFlags registers the filter flags on a command.
func addEventFlags(f *pflag.FlagSet) {
	f.StringVar(&eventsFrom, "from", "", "first image date, YYYY-MM-DD (default: catalog start)")
	f.StringVar(&eventsTo, "to", "", "last image date, YYYY-MM-DD (default: catalog end)")
	f.Float64Var(&eventsMin, "min", 0, "minimum area in km² (default: catalog minimum)")
	f.Float64Var(&eventsMax, "max", 0, "maximum area in km² (default: catalog maximum)")
	f.StringSliceVar(&eventsCategories, "category", nil, "category to keep; repeatable (default: all)")
}

func init() {
	addEventFlags(eventsCmd.Flags())
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "print events as JSON")
	eventsCmd.AddCommand(eventsSummaryCmd)
	rootCmd.AddCommand(eventsCmd)
}
