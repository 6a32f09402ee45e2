package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/layer"
)

// Fields names the catalog attributes read from the deforestation layer.
type Fields struct {
	Date         string
	Area         string
	Class        string
	Municipality string
}

// DefaultFields are the attribute names of the MapBiomas-style catalog.
var DefaultFields = Fields{
	Date:         "image_date",
	Area:         "area_km",
	Class:        "sub_class",
	Municipality: "municipio",
}

// dateLayouts are tried in order; the catalog mixes date-only and
// timestamp values.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"20060102",
}

// FromLayer builds events from the features of a deforestation layer.
// A feature whose date cannot be parsed is kept undated. A feature without
// a finite area is skipped and counted in the second return value. Both are
// logged.
func FromLayer(l *layer.Layer, f Fields) ([]Event, int) {
	if l == nil {
		return nil, 0
	}
	log := zap.L().With(zap.String("component", "events"))

	out := make([]Event, 0, len(l.Features))
	skipped := 0
	for i, feat := range l.Features {
		id := feat.Key
		if id == "" {
			id = strconv.Itoa(i)
		}
		km2, err := ParseFloat(feat.Properties[f.Area])
		if err != nil {
			log.Warn("skipping event without area",
				zap.String("id", id), zap.String("field", f.Area), zap.Error(err))
			skipped++
			continue
		}
		date, err := ParseDate(feat.Properties[f.Date])
		if err != nil {
			log.Warn("event has no usable date",
				zap.String("id", id), zap.String("field", f.Date), zap.Error(err))
			date = time.Time{}
		}
		out = append(out, Event{
			ID:           id,
			Geometry:     feat.Geometry,
			Date:         date,
			AreaKm2:      km2,
			RawSubClass:  stringValue(feat.Properties[f.Class]),
			Municipality: stringValue(feat.Properties[f.Municipality]),
			Properties:   feat.Properties,
		})
	}
	return out, skipped
}

// ParseDate accepts timestamps, dates in the layouts above, and epoch
// milliseconds as written by some GeoJSON exporters. Results are in UTC
// unless the value carries its own offset.
func ParseDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, eris.New("events: empty date")
		}
		for _, layout := range dateLayouts {
			if d, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return d, nil
			}
		}
		return time.Time{}, eris.Errorf("events: unrecognised date %q", s)
	case nil:
		return time.Time{}, eris.New("events: missing date")
	default:
		ms, err := ParseFloat(v)
		if err != nil {
			return time.Time{}, eris.Errorf("events: unsupported date value %v (%T)", v, v)
		}
		return time.UnixMilli(int64(ms)).UTC(), nil
	}
}

// ParseFloat accepts numeric attribute values and numeric strings, with
// either '.' or ',' as decimal separator. NaN and infinities are rejected.
func ParseFloat(v any) (float64, error) {
	f, err := parseNumber(v)
	if err != nil {
		return 0, err
	}
	if !finite(f) {
		return 0, eris.Errorf("events: number %v is not finite", f)
	}
	return f, nil
}

func parseNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Wrapf(err, "events: parse number %q", n)
		}
		return f, nil
	case nil:
		return 0, eris.New("events: missing number")
	default:
		return 0, eris.Errorf("events: unsupported number value %v (%T)", v, v)
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
