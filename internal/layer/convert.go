package layer

import (
	cgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/laurakrama/DAG2024/internal/geometry"
)

// FromMultiPolygon converts a go-geom multipolygon into overlay polygons,
// one per part, keeping the ring order (shell first, then holes).
func FromMultiPolygon(mp *geom.MultiPolygon) []cgeom.Polygon {
	if mp == nil || mp.NumPolygons() == 0 {
		return nil
	}
	stride := mp.Stride()
	out := make([]cgeom.Polygon, 0, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		p := make(cgeom.Polygon, 0, poly.NumLinearRings())
		for j := 0; j < poly.NumLinearRings(); j++ {
			flat := poly.LinearRing(j).FlatCoords()
			ring := make([]cgeom.Point, 0, len(flat)/stride)
			for k := 0; k+1 < len(flat); k += stride {
				ring = append(ring, cgeom.Point{X: flat[k], Y: flat[k+1]})
			}
			p = append(p, ring)
		}
		out = append(out, p)
	}
	return out
}

// ToMultiPolygon converts an overlay collection back into a go-geom
// multipolygon tagged with the collection's SRID. Overlay output does not
// mark which rings are holes, so rings are classified by nesting depth:
// even depth is a shell, odd depth a hole of the innermost enclosing shell.
// Shells are wound counter-clockwise, holes clockwise, and every ring is closed.
func ToMultiPolygon(c geometry.Collection) (*geom.MultiPolygon, error) {
	mp := geom.NewMultiPolygon(geom.XY)
	for i, p := range c.Polygons {
		for _, rings := range nestRings(p) {
			poly, err := geom.NewPolygon(geom.XY).SetCoords(rings)
			if err != nil {
				return nil, eris.Wrapf(err, "layer: build polygon %d", i)
			}
			if err := mp.Push(poly); err != nil {
				return nil, eris.Wrapf(err, "layer: push polygon %d", i)
			}
		}
	}
	if srid := c.Frame.SRID(); srid != 0 {
		mp.SetSRID(srid)
	}
	return mp, nil
}

// nestRings groups the rings of p into shell+holes coordinate lists.
func nestRings(p cgeom.Polygon) [][][]geom.Coord {
	var rings [][]cgeom.Point
	for _, r := range p {
		if len(r) >= 3 {
			rings = append(rings, r)
		}
	}

	depth := make([]int, len(rings))
	parent := make([]int, len(rings))
	for i := range rings {
		parent[i] = -1
		probe := rings[i][0]
		smallest := 0.0
		for j := range rings {
			if i == j || !pointInRing(probe, rings[j]) {
				continue
			}
			depth[i]++
			a := absArea(rings[j])
			if parent[i] < 0 || a < smallest {
				parent[i], smallest = j, a
			}
		}
	}

	shellIndex := make(map[int]int)
	var out [][][]geom.Coord
	for i, r := range rings {
		if depth[i]%2 == 0 {
			shellIndex[i] = len(out)
			out = append(out, [][]geom.Coord{closedCoords(r, true)})
		}
	}
	for i, r := range rings {
		if depth[i]%2 == 1 && parent[i] >= 0 {
			if idx, ok := shellIndex[parent[i]]; ok {
				out[idx] = append(out[idx], closedCoords(r, false))
			}
		}
	}
	return out
}

// closedCoords returns the ring as a closed coordinate list wound
// counter-clockwise when ccw is set, clockwise otherwise.
func closedCoords(r []cgeom.Point, ccw bool) []geom.Coord {
	coords := make([]geom.Coord, 0, len(r)+1)
	for _, pt := range r {
		coords = append(coords, geom.Coord{pt.X, pt.Y})
	}
	if first, last := r[0], r[len(r)-1]; first != last {
		coords = append(coords, geom.Coord{first.X, first.Y})
	}
	if (signedArea(r) > 0) != ccw {
		for i, j := 0, len(coords)-1; i < j; i, j = i+1, j-1 {
			coords[i], coords[j] = coords[j], coords[i]
		}
	}
	return coords
}

// pointInRing is an even-odd ray cast.
func pointInRing(pt cgeom.Point, ring []cgeom.Point) bool {
	in := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

func signedArea(r []cgeom.Point) float64 {
	var s float64
	n := len(r)
	for i := 0; i < n; i++ {
		a, b := r[i], r[(i+1)%n]
		s += a.X*b.Y - b.X*a.Y
	}
	return s / 2
}

func absArea(r []cgeom.Point) float64 {
	a := signedArea(r)
	if a < 0 {
		return -a
	}
	return a
}

// AsMultiPolygon normalises a decoded geometry to a multipolygon. Polygons
// are wrapped; any other geometry type is rejected.
func AsMultiPolygon(g geom.T) (*geom.MultiPolygon, error) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout()).SetSRID(t.SRID())
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrap(err, "layer: wrap polygon")
		}
		return mp, nil
	case nil:
		return nil, eris.New("layer: missing geometry")
	default:
		return nil, eris.Errorf("layer: unsupported geometry type %T", g)
	}
}
