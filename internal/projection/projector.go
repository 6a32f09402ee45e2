package projection

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"

	"github.com/laurakrama/DAG2024/internal/geometry"
)

// Projector reprojects collections between registered frames. It holds only
// parsed spatial references and is safe for concurrent use.
type Projector struct {
	registry *Registry
	srs      map[geometry.Frame]*proj.SR
}

// New parses every frame in the registry.
func New(registry *Registry) (*Projector, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	p := &Projector{registry: registry, srs: make(map[geometry.Frame]*proj.SR)}
	for _, f := range registry.Frames() {
		def, _ := registry.Lookup(f)
		sr, err := proj.Parse(def.Proj4)
		if err != nil {
			return nil, eris.Wrapf(err, "projection: parse %s", f)
		}
		p.srs[f] = sr
	}
	return p, nil
}

// Registry returns the frame registry backing the projector.
func (p *Projector) Registry() *Registry { return p.registry }

// Reproject returns c transformed into the target frame. Reprojecting into
// the collection's own frame returns a copy.
func (p *Projector) Reproject(c geometry.Collection, target geometry.Frame) (geometry.Collection, error) {
	srcDef, ok := p.registry.Lookup(c.Frame)
	if !ok {
		return geometry.Collection{}, &geometry.ProjectionError{
			Op: "reproject", Frame: c.Frame, Err: eris.Errorf("unknown source frame %q", c.Frame),
		}
	}
	dstDef, ok := p.registry.Lookup(target)
	if !ok {
		return geometry.Collection{}, &geometry.ProjectionError{
			Op: "reproject", Frame: target, Err: eris.Errorf("unknown target frame %q", target),
		}
	}
	if c.Frame == target {
		return c.Clone(), nil
	}

	transform, err := p.srs[c.Frame].NewTransform(p.srs[target])
	if err != nil {
		return geometry.Collection{}, &geometry.ProjectionError{
			Op: "reproject", Frame: target, Err: eris.Wrapf(err, "build transform %s -> %s", c.Frame, target),
		}
	}
	checked := domainChecked(transform, srcDef, dstDef)

	out := geometry.Collection{Frame: target, Polygons: make([]geom.Polygon, len(c.Polygons))}
	for i, poly := range c.Polygons {
		tp, err := transformPolygon(poly, checked)
		if err != nil {
			return geometry.Collection{}, &geometry.ProjectionError{
				Op: "reproject", Frame: target, Err: eris.Wrapf(err, "polygon %d", i),
			}
		}
		out.Polygons[i] = tp
	}
	return out, nil
}

// domainChecked wraps t so that lon/lat coordinates on the geographic side of
// the transform are checked against both frames' domains, and non-finite
// output is rejected.
func domainChecked(t proj.Transformer, src, dst Definition) proj.Transformer {
	return func(x, y float64) (float64, float64, error) {
		if src.Kind == Geographic && !(src.Domain.Contains(x, y) && dst.Domain.Contains(x, y)) {
			return 0, 0, eris.Errorf("coordinate (%g, %g) outside the domain of %s", x, y, dst.Frame)
		}
		ox, oy, err := t(x, y)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "transform (%g, %g)", x, y)
		}
		if !finite(ox) || !finite(oy) {
			return 0, 0, eris.Errorf("transform of (%g, %g) is not finite", x, y)
		}
		if dst.Kind == Geographic && !(dst.Domain.Contains(ox, oy) && src.Domain.Contains(ox, oy)) {
			return 0, 0, eris.Errorf("coordinate (%g, %g) outside the domain of %s", ox, oy, src.Frame)
		}
		return ox, oy, nil
	}
}

func transformPolygon(p geom.Polygon, t proj.Transformer) (geom.Polygon, error) {
	out := make(geom.Polygon, len(p))
	for i, r := range p {
		ring := make([]geom.Point, len(r))
		for j, pt := range r {
			x, y, err := t(pt.X, pt.Y)
			if err != nil {
				return nil, err
			}
			ring[j] = geom.Point{X: x, Y: y}
		}
		out[i] = ring
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
