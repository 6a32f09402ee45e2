// Package projection converts polygon collections between the geographic
// frame used for storage and display and the projected frame used for area
// arithmetic.
package projection

import (
	"sort"

	"github.com/laurakrama/DAG2024/internal/geometry"
)

// Kind distinguishes angular frames from distance-preserving ones.
type Kind int

// Frame kinds.
const (
	Geographic Kind = iota
	Projected
)

func (k Kind) String() string {
	if k == Projected {
		return "projected"
	}
	return "geographic"
}

// Domain is a longitude/latitude box, in degrees, inside which a frame's
// transform is considered valid.
type Domain struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Contains reports whether the lon/lat pair falls inside the domain.
func (d Domain) Contains(lon, lat float64) bool {
	return lon >= d.MinLon && lon <= d.MaxLon && lat >= d.MinLat && lat <= d.MaxLat
}

// World covers every valid longitude/latitude.
var World = Domain{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: 90}

// Definition describes one registered frame.
type Definition struct {
	Frame  geometry.Frame
	Proj4  string
	Kind   Kind
	Domain Domain
}

// UTM zones are accepted up to 9 degrees either side of the central
// meridian (-51 for zone 22), which covers the western Pará municipalities
// the 22S frame is applied to.
var builtins = []Definition{
	{
		Frame:  geometry.SIRGAS2000,
		Proj4:  "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
		Kind:   Geographic,
		Domain: Domain{MinLon: -122.19, MinLat: -59.87, MaxLon: -25.28, MaxLat: 32.72},
	},
	{
		Frame:  geometry.WGS84,
		Proj4:  "+proj=longlat +datum=WGS84 +no_defs",
		Kind:   Geographic,
		Domain: World,
	},
	{
		Frame:  geometry.UTM22S,
		Proj4:  "+proj=utm +zone=22 +south +datum=WGS84 +units=m +no_defs",
		Kind:   Projected,
		Domain: Domain{MinLon: -60, MinLat: -80, MaxLon: -42, MaxLat: 10},
	},
	{
		Frame:  geometry.SIRGAS2000UTM22S,
		Proj4:  "+proj=utm +zone=22 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
		Kind:   Projected,
		Domain: Domain{MinLon: -60, MinLat: -80, MaxLon: -42, MaxLat: 10},
	},
}

// Registry maps frames to their definitions.
type Registry struct {
	defs map[geometry.Frame]Definition
}

// NewRegistry returns a registry holding the built-in frames plus any extra
// definitions. Extra definitions replace built-ins with the same frame.
func NewRegistry(extra ...Definition) *Registry {
	r := &Registry{defs: make(map[geometry.Frame]Definition, len(builtins)+len(extra))}
	for _, d := range builtins {
		r.defs[d.Frame] = d
	}
	for _, d := range extra {
		r.defs[d.Frame] = d
	}
	return r
}

// Lookup returns the definition registered for f.
func (r *Registry) Lookup(f geometry.Frame) (Definition, bool) {
	d, ok := r.defs[f]
	return d, ok
}

// IsProjected reports whether f is a registered, distance-preserving frame.
func (r *Registry) IsProjected(f geometry.Frame) bool {
	d, ok := r.defs[f]
	return ok && d.Kind == Projected
}

// Frames returns every registered frame, sorted.
func (r *Registry) Frames() []geometry.Frame {
	out := make([]geometry.Frame, 0, len(r.defs))
	for f := range r.defs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
