package events

import (
	"fmt"
	"math"
	"time"

	"github.com/twpayne/go-geom"
	"golang.org/x/text/unicode/norm"
)

// ISODate is the layout of event dates in filter output.
const ISODate = "2006-01-02"

// Event is one detected clearing.
type Event struct {
	ID           string
	Geometry     *geom.MultiPolygon
	Date         time.Time
	AreaKm2      float64
	RawSubClass  string
	Category     string
	Municipality string
	Properties   map[string]any
}

// DateISO returns the event date as YYYY-MM-DD.
func (e Event) DateISO() string { return e.Date.Format(ISODate) }

// Criteria selects events. Zero From or To leaves that side of the date
// range open. Size bounds are always applied; both are inclusive.
type Criteria struct {
	From       time.Time
	To         time.Time
	SizeMin    float64
	SizeMax    float64
	Categories []string
}

// FilterRangeError reports criteria whose lower bound exceeds the upper one.
type FilterRangeError struct {
	Field string `json:"field"`
	Lower string `json:"lower"`
	Upper string `json:"upper"`
}

func (e *FilterRangeError) Error() string {
	return fmt.Sprintf("events: invalid %s range: %s > %s", e.Field, e.Lower, e.Upper)
}

// Catalog is an immutable, normalized event list.
type Catalog struct {
	events   []Event
	specific []string
}

// NewCatalog copies events and normalizes every category once.
func NewCatalog(events []Event, specific []string) *Catalog {
	c := &Catalog{
		events:   make([]Event, len(events)),
		specific: append([]string(nil), specific...),
	}
	for i, e := range events {
		if e.RawSubClass == "" && e.Category != "" {
			e.RawSubClass = e.Category
		}
		e.Category = NormalizeCategory(e.RawSubClass, specific)
		c.events[i] = e
	}
	return c
}

// Len returns the number of events.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.events)
}

// Events returns a copy of the catalog in its original order.
func (c *Catalog) Events() []Event {
	if c == nil {
		return nil
	}
	return append([]Event(nil), c.events...)
}

// Categories returns every category a filter can select.
func (c *Catalog) Categories() []string {
	if c == nil {
		return AllCategories(DefaultCategories)
	}
	return AllCategories(c.specific)
}

// Filter returns the events matching every predicate of cr, in catalog
// order. An empty category set matches nothing. Undated events are dropped
// once either date bound is set, and a non-finite area never matches.
func (c *Catalog) Filter(cr Criteria) ([]Event, error) {
	from, to := startOfDay(cr.From), endOfDay(cr.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, &FilterRangeError{Field: "date", Lower: cr.From.Format(ISODate), Upper: cr.To.Format(ISODate)}
	}
	if math.IsNaN(cr.SizeMin) || math.IsNaN(cr.SizeMax) || cr.SizeMin > cr.SizeMax {
		return nil, &FilterRangeError{
			Field: "size",
			Lower: fmt.Sprintf("%g", cr.SizeMin),
			Upper: fmt.Sprintf("%g", cr.SizeMax),
		}
	}

	out := []Event{}
	if c == nil || len(cr.Categories) == 0 {
		return out, nil
	}
	wanted := make(map[string]bool, len(cr.Categories))
	for _, cat := range cr.Categories {
		wanted[norm.NFC.String(cat)] = true
	}

	dated := !from.IsZero() || !to.IsZero()
	for _, e := range c.events {
		if dated && e.Date.IsZero() {
			continue
		}
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		if !(e.AreaKm2 >= cr.SizeMin && e.AreaKm2 <= cr.SizeMax) {
			continue
		}
		if !wanted[e.Category] {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Summary describes the whole catalog: total cleared area and the date and
// size extents used as default filter bounds.
type Summary struct {
	Count     int       `json:"count"`
	TotalKm2  float64   `json:"total_area_km2"`
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
	MinKm2    float64   `json:"min_area_km2"`
	MaxKm2    float64   `json:"max_area_km2"`
}

// Summary computes the catalog summary. Events without a date do not move
// the date extents, and non-finite areas do not move the size extents.
func (c *Catalog) Summary() Summary {
	var s Summary
	if c.Len() == 0 {
		return s
	}
	s.Count = len(c.events)
	sized := false
	for _, e := range c.events {
		if finite(e.AreaKm2) {
			s.TotalKm2 += e.AreaKm2
			if !sized || e.AreaKm2 < s.MinKm2 {
				s.MinKm2 = e.AreaKm2
			}
			if !sized || e.AreaKm2 > s.MaxKm2 {
				s.MaxKm2 = e.AreaKm2
			}
			sized = true
		}
		if e.Date.IsZero() {
			continue
		}
		if s.FirstDate.IsZero() || e.Date.Before(s.FirstDate) {
			s.FirstDate = e.Date
		}
		if s.LastDate.IsZero() || e.Date.After(s.LastDate) {
			s.LastDate = e.Date
		}
	}
	return s
}

// DefaultCriteria spans the whole catalog: full date and size range and
// every category.
func (c *Catalog) DefaultCriteria() Criteria {
	s := c.Summary()
	return Criteria{
		From:       s.FirstDate,
		To:         s.LastDate,
		SizeMin:    s.MinKm2,
		SizeMax:    s.MaxKm2,
		Categories: c.Categories(),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func startOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}
