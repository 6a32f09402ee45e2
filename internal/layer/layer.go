// Package layer models the parsed polygon layers of a query (property
// boundaries, Legal Reserves, native vegetation, deforestation catalog and
// municipality boundary) and selects their features by property key.
package layer

import (
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/laurakrama/DAG2024/internal/geometry"
)

// Layer names.
const (
	PropertyBoundary = "area_imovel"
	LegalReserve     = "reserva_legal"
	NativeVegetation = "vegetacao_nativa"
	Deforestation    = "desmatamento"
	Municipality     = "municipio"
)

// Feature is one geometry with its attribute record.
type Feature struct {
	// Key is the value of the layer's key attribute (cod_imovel for property layers).
	Key        string
	Geometry   *geom.MultiPolygon
	Properties map[string]any
}

// Layer is an immutable, frame-tagged collection of features.
type Layer struct {
	Name     string
	Frame    geometry.Frame
	Features []Feature
}

// Len returns the number of features; a nil layer has none.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// Keys returns the distinct feature keys in first-seen order.
func (l *Layer) Keys() []string {
	if l == nil {
		return nil
	}
	seen := make(map[string]bool, len(l.Features))
	var keys []string
	for _, f := range l.Features {
		if f.Key == "" || seen[f.Key] {
			continue
		}
		seen[f.Key] = true
		keys = append(keys, f.Key)
	}
	return keys
}

// Select returns a layer holding only the features with the given key.
// The features are shared with l, which must not be mutated.
func (l *Layer) Select(key string) *Layer {
	if l == nil {
		return nil
	}
	out := &Layer{Name: l.Name, Frame: l.Frame}
	for _, f := range l.Features {
		if f.Key == key {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// Collection converts the layer's geometries into an overlay collection,
// one polygon per go-geom polygon. A nil layer yields an empty collection in
// the given fallback frame.
func (l *Layer) Collection(fallback geometry.Frame) geometry.Collection {
	if l == nil {
		return geometry.Empty(fallback)
	}
	c := geometry.Empty(l.Frame)
	for _, f := range l.Features {
		c.Polygons = append(c.Polygons, FromMultiPolygon(f.Geometry)...)
	}
	return c
}

// Set is the immutable layer set a query runs against.
type Set struct {
	Properties       *Layer
	LegalReserve     *Layer
	NativeVegetation *Layer
	Deforestation    *Layer
	Municipality     *Layer
}

// Layer returns the layer with the given name, or nil.
func (s *Set) Layer(name string) *Layer {
	switch name {
	case PropertyBoundary:
		return s.Properties
	case LegalReserve:
		return s.LegalReserve
	case NativeVegetation:
		return s.NativeVegetation
	case Deforestation:
		return s.Deforestation
	case Municipality:
		return s.Municipality
	default:
		return nil
	}
}

// PropertyKeys returns the property keys of the boundary layer.
func (s *Set) PropertyKeys() []string {
	return s.Properties.Keys()
}

// Selection holds the three property layers filtered to one key.
type Selection struct {
	Key       string
	Limite    *Layer
	Reserva   *Layer
	Vegetacao *Layer
}

// SelectionNotFoundError lists the layers that have no feature for a key.
// It signals missing data, not a failed computation.
type SelectionNotFoundError struct {
	Key    string   `json:"key"`
	Layers []string `json:"layers"`
}

func (e *SelectionNotFoundError) Error() string {
	return fmt.Sprintf("layer: property %q not found in %s", e.Key, strings.Join(e.Layers, ", "))
}

// SelectProperty filters the boundary, Legal Reserve and native vegetation
// layers to key. The returned error is non-nil when any of the three layers
// has no feature for key; the selection is still usable and holds empty
// layers for the missing ones.
func (s *Set) SelectProperty(key string) (Selection, *SelectionNotFoundError) {
	sel := Selection{
		Key:       key,
		Limite:    s.Properties.Select(key),
		Reserva:   s.LegalReserve.Select(key),
		Vegetacao: s.NativeVegetation.Select(key),
	}

	var missing []string
	for _, l := range []struct {
		name  string
		layer *Layer
	}{
		{PropertyBoundary, sel.Limite},
		{LegalReserve, sel.Reserva},
		{NativeVegetation, sel.Vegetacao},
	} {
		if l.layer.Len() == 0 {
			missing = append(missing, l.name)
		}
	}
	if len(missing) > 0 {
		return sel, &SelectionNotFoundError{Key: key, Layers: missing}
	}
	return sel, nil
}
