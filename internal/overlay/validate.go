package overlay

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"

	"github.com/laurakrama/DAG2024/internal/geometry"
)

// Validate checks that every ring of p has at least three distinct vertices,
// finite coordinates, a non-zero area, and no self-intersection. Rings may be
// given open or closed.
func Validate(p geom.Polygon) error {
	for i, r := range p {
		ring := openRing(r)
		if len(ring) < 3 {
			return eris.Errorf("ring %d has %d distinct vertices", i, len(ring))
		}
		if !allFinite(ring) {
			return eris.Errorf("ring %d has non-finite coordinates", i)
		}
		if ringArea(ring) == 0 {
			return eris.Errorf("ring %d has zero area", i)
		}
		if a, b, ok := selfIntersection(ring); ok {
			return eris.Errorf("ring %d self-intersects at edges %d and %d", i, a, b)
		}
	}
	return nil
}

// Repair makes a best-effort attempt to turn p into a valid polygon: it drops
// repeated vertices and degenerate rings, then re-clips the remainder against
// its own bounding box so the clipper splits crossing edges. It is a
// fallback, not a guarantee; callers must treat an error as irreparable.
func Repair(p geom.Polygon) (geom.Polygon, error) {
	cleaned := make(geom.Polygon, 0, len(p))
	for i, r := range p {
		ring := openRing(r)
		if !allFinite(ring) {
			return nil, eris.Errorf("ring %d has non-finite coordinates", i)
		}
		if len(ring) < 3 || ringArea(ring) == 0 {
			continue
		}
		cleaned = append(cleaned, ring)
	}
	if len(cleaned) == 0 {
		return geom.Polygon{}, nil
	}
	if Validate(cleaned) == nil {
		return cleaned, nil
	}

	b := cleaned.Bounds()
	frame := geometry.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	fixed, err := clip("repair", func() geom.Polygonal { return cleaned.Intersection(frame) })
	if err != nil {
		return nil, err
	}
	fixed = dropDegenerate(fixed)
	if err := Validate(fixed); err != nil {
		return nil, eris.Wrap(err, "repair")
	}
	return fixed, nil
}

// openRing removes consecutive duplicate vertices and the closing vertex.
func openRing(r []geom.Point) []geom.Point {
	out := make([]geom.Point, 0, len(r))
	for _, pt := range r {
		if n := len(out); n > 0 && out[n-1] == pt {
			continue
		}
		out = append(out, pt)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// spikeTolerance bounds |sin| of the turn angle at a vertex treated as a
// back-tracking spike.
const spikeTolerance = 1e-8

// dropDegenerate removes spike vertices from clipper output rings, then
// drops rings left with fewer than three vertices.
func dropDegenerate(p geom.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p))
	for _, r := range p {
		if ring := removeSpikes(openRing(r)); len(ring) >= 3 {
			out = append(out, ring)
		}
	}
	return out
}

// removeSpikes drops vertices where the ring turns back along the line it
// arrived on, and repeated vertices, until none are left.
func removeSpikes(ring []geom.Point) []geom.Point {
	out := append([]geom.Point(nil), ring...)
	for changed := true; changed && len(out) >= 3; {
		changed = false
		for i := 0; i < len(out) && len(out) >= 3; i++ {
			n := len(out)
			if isSpike(out[(i+n-1)%n], out[i], out[(i+1)%n]) {
				out = append(out[:i], out[i+1:]...)
				changed = true
				i--
			}
		}
	}
	return out
}

// isSpike reports whether b is a repeated vertex or the tip of a zero-width
// excursion a -> b -> c.
func isSpike(a, b, c geom.Point) bool {
	abx, aby := b.X-a.X, b.Y-a.Y
	bcx, bcy := c.X-b.X, c.Y-b.Y
	l1, l2 := math.Hypot(abx, aby), math.Hypot(bcx, bcy)
	if l1 == 0 || l2 == 0 {
		return true
	}
	cross := abx*bcy - aby*bcx
	dot := abx*bcx + aby*bcy
	return dot < 0 && math.Abs(cross) <= spikeTolerance*l1*l2
}

func allFinite(ring []geom.Point) bool {
	for _, pt := range ring {
		if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
			return false
		}
	}
	return true
}

func ringArea(ring []geom.Point) float64 {
	return geom.Polygon{ring}.Area()
}

// selfIntersection returns the first pair of edges of the open ring that
// cross or touch, other than adjacent edges meeting at their shared vertex.
func selfIntersection(ring []geom.Point) (int, int, bool) {
	n := len(ring)
	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			b1, b2 := ring[j], ring[(j+1)%n]
			switch {
			case j == i+1:
				// a2 == b1; the edges fold back onto each other only if b2 lies on a1-a2.
				if orientation(a1, a2, b2) == 0 && onSegment(a1, b2, a2) {
					return i, j, true
				}
			case i == 0 && j == n-1:
				// b2 == a1
				if orientation(b1, b2, a2) == 0 && onSegment(b1, a2, b2) {
					return i, j, true
				}
			default:
				if segmentsIntersect(a1, a2, b1, b2) {
					return i, j, true
				}
			}
		}
	}
	return 0, 0, false
}

func orientation(p, q, r geom.Point) int {
	v := (q.Y-p.Y)*(r.X-q.X) - (q.X-p.X)*(r.Y-q.Y)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return 2
	default:
		return 0
	}
}

// onSegment reports whether q lies on segment p-r, given the three are collinear.
func onSegment(p, q, r geom.Point) bool {
	return q.X <= math.Max(p.X, r.X) && q.X >= math.Min(p.X, r.X) &&
		q.Y <= math.Max(p.Y, r.Y) && q.Y >= math.Min(p.Y, r.Y)
}

func segmentsIntersect(p1, q1, p2, q2 geom.Point) bool {
	if math.Max(p1.X, q1.X) < math.Min(p2.X, q2.X) || math.Max(p2.X, q2.X) < math.Min(p1.X, q1.X) ||
		math.Max(p1.Y, q1.Y) < math.Min(p2.Y, q2.Y) || math.Max(p2.Y, q2.Y) < math.Min(p1.Y, q1.Y) {
		return false
	}
	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)
	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(p1, p2, q1)) ||
		(o2 == 0 && onSegment(p1, q2, q1)) ||
		(o3 == 0 && onSegment(p2, p1, q2)) ||
		(o4 == 0 && onSegment(p2, q1, q2))
}
