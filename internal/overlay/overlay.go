// Package overlay implements polygonal set operations over frame-tagged
// collections: intersection, difference and multi-way intersection.
//
// Operands are validated first. Invalid polygons go through Repair and are
// rejected with a *geometry.GeometryError when the repair does not produce a
// valid polygon. Results are always polygonal; zero-area slivers left by the
// clipper are kept and contribute negligible area, but vertices where a ring
// doubles back on itself along a line are removed.
//
// Features are intersected pairwise, so two overlapping features of the same
// layer each contribute their overlap and that area is counted twice.
// Downstream area checks report this as a negative ineligible area.
package overlay

import (
	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/geometry"
)

// Intersect returns the region common to a and b, as the pairwise
// intersection of their polygons.
func Intersect(a, b geometry.Collection) (geometry.Collection, error) {
	const op = "intersect"
	if err := sameFrame(op, a, b); err != nil {
		return geometry.Collection{}, err
	}
	out := geometry.Empty(a.Frame)
	if a.IsEmpty() || b.IsEmpty() {
		return out, nil
	}

	as, err := prepare(op, a)
	if err != nil {
		return geometry.Collection{}, err
	}
	bs, err := prepare(op, b)
	if err != nil {
		return geometry.Collection{}, err
	}

	for i, pa := range as {
		ba := pa.Bounds()
		for _, pb := range bs {
			if !ba.Overlaps(pb.Bounds()) {
				continue
			}
			r, err := clip(op, func() geom.Polygonal { return pa.Intersection(pb) })
			if err != nil {
				return geometry.Collection{}, geometry.NewGeometryError(op, i, err)
			}
			if r = dropDegenerate(r); len(r) > 0 {
				out.Polygons = append(out.Polygons, r)
			}
		}
	}
	return out, nil
}

// Difference returns the region of a not covered by any polygon of b.
func Difference(a, b geometry.Collection) (geometry.Collection, error) {
	const op = "difference"
	if err := sameFrame(op, a, b); err != nil {
		return geometry.Collection{}, err
	}
	out := geometry.Empty(a.Frame)
	if a.IsEmpty() {
		return out, nil
	}

	as, err := prepare(op, a)
	if err != nil {
		return geometry.Collection{}, err
	}
	if b.IsEmpty() {
		out.Polygons = as
		return out, nil
	}
	bs, err := prepare(op, b)
	if err != nil {
		return geometry.Collection{}, err
	}

	for i, pa := range as {
		rest := pa
		for _, pb := range bs {
			if len(rest) == 0 {
				break
			}
			if !rest.Bounds().Overlaps(pb.Bounds()) {
				continue
			}
			cur := rest
			rest, err = clip(op, func() geom.Polygonal { return cur.Difference(pb) })
			if err != nil {
				return geometry.Collection{}, geometry.NewGeometryError(op, i, err)
			}
			rest = dropDegenerate(rest)
		}
		if len(rest) > 0 {
			out.Polygons = append(out.Polygons, rest)
		}
	}
	return out, nil
}

// IntersectAll returns the region common to every operand, computed as
// repeated pairwise intersection from left to right.
func IntersectAll(cs ...geometry.Collection) (geometry.Collection, error) {
	if len(cs) == 0 {
		return geometry.Collection{}, nil
	}
	if len(cs) == 1 {
		polys, err := prepare("intersect_all", cs[0])
		if err != nil {
			return geometry.Collection{}, err
		}
		return geometry.New(cs[0].Frame, polys...), nil
	}

	acc := cs[0]
	for _, c := range cs[1:] {
		next, err := Intersect(acc, c)
		if err != nil {
			return geometry.Collection{}, err
		}
		acc = next
		if acc.IsEmpty() {
			return geometry.Empty(cs[0].Frame), nil
		}
	}
	return acc, nil
}

func sameFrame(op string, a, b geometry.Collection) error {
	if a.Frame != b.Frame {
		return geometry.NewGeometryError(op, -1, eris.Errorf("operands in different frames: %s and %s", a.Frame, b.Frame))
	}
	return nil
}

// prepare validates every polygon in c, repairing the invalid ones.
// Polygons with no ring left after repair are skipped.
func prepare(op string, c geometry.Collection) ([]geom.Polygon, error) {
	out := make([]geom.Polygon, 0, len(c.Polygons))
	for i, p := range c.Polygons {
		if len(p) == 0 {
			continue
		}
		verr := Validate(p)
		if verr == nil {
			out = append(out, p)
			continue
		}
		zap.L().Debug("overlay: repairing invalid polygon",
			zap.String("op", op),
			zap.Int("index", i),
			zap.Error(verr),
		)
		fixed, err := Repair(p)
		if err != nil {
			return nil, geometry.NewGeometryError(op, i, err)
		}
		if len(fixed) > 0 {
			out = append(out, fixed)
		}
	}
	return out, nil
}

// clip runs a clipper operation, flattens its result into one polygon and
// converts a panic inside the clipper into an error.
func clip(op string, fn func() geom.Polygonal) (p geom.Polygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = eris.Errorf("%s: clipper failed: %v", op, r)
		}
	}()
	return flatten(fn()), nil
}

// flatten merges the rings of every polygon in pg into a single polygon.
func flatten(pg geom.Polygonal) geom.Polygon {
	switch v := pg.(type) {
	case nil:
		return nil
	case geom.Polygon:
		return v
	}
	var out geom.Polygon
	for _, p := range pg.Polygons() {
		out = append(out, p...)
	}
	return out
}
