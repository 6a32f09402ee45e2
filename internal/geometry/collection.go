// Package geometry holds the frame-tagged polygon collections shared by the
// projection, overlay, area and eligibility packages.
package geometry

import (
	"strconv"
	"strings"

	"github.com/ctessum/geom"
)

// Frame identifies a coordinate reference frame by its EPSG code.
type Frame string

// Frames used by the property and deforestation layers.
const (
	SIRGAS2000       Frame = "EPSG:4674"
	WGS84            Frame = "EPSG:4326"
	UTM22S           Frame = "EPSG:32722"
	SIRGAS2000UTM22S Frame = "EPSG:31982"
)

func (f Frame) String() string { return string(f) }

// Collection is a set of polygons sharing one reference frame.
// A polygon may hold several outer rings and holes, as produced by overlay.
type Collection struct {
	Frame    Frame
	Polygons []geom.Polygon
}

// Empty returns a collection with no polygons in the given frame.
func Empty(frame Frame) Collection {
	return Collection{Frame: frame}
}

// New returns a collection over the given polygons.
func New(frame Frame, polygons ...geom.Polygon) Collection {
	return Collection{Frame: frame, Polygons: polygons}
}

// Len returns the number of polygons in the collection.
func (c Collection) Len() int { return len(c.Polygons) }

// IsEmpty reports whether the collection has no ring with at least three vertices.
func (c Collection) IsEmpty() bool {
	for _, p := range c.Polygons {
		for _, r := range p {
			if len(r) >= 3 {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	out := Collection{Frame: c.Frame, Polygons: make([]geom.Polygon, len(c.Polygons))}
	for i, p := range c.Polygons {
		out.Polygons[i] = ClonePolygon(p)
	}
	return out
}

// Bounds returns the bounding box of every polygon in the collection.
func (c Collection) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, p := range c.Polygons {
		if len(p) == 0 {
			continue
		}
		b.Extend(p.Bounds())
	}
	return b
}

// ClonePolygon returns a deep copy of p.
func ClonePolygon(p geom.Polygon) geom.Polygon {
	out := make(geom.Polygon, len(p))
	for i, r := range p {
		ring := make([]geom.Point, len(r))
		copy(ring, r)
		out[i] = ring
	}
	return out
}

// Rect returns the axis-aligned rectangle polygon spanning the two corners.
func Rect(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}}
}

// SRID returns the numeric EPSG code of f, or 0 when f is not an EPSG code.
func (f Frame) SRID() int {
	code, ok := strings.CutPrefix(string(f), "EPSG:")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0
	}
	return n
}

// FrameFromSRID returns the EPSG frame for a numeric SRID.
func FrameFromSRID(srid int) Frame {
	return Frame("EPSG:" + strconv.Itoa(srid))
}
