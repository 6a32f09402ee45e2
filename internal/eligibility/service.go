package eligibility

import (
	"context"

	cgeom "github.com/ctessum/geom"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/area"
	"github.com/laurakrama/DAG2024/internal/geometry"
	"github.com/laurakrama/DAG2024/internal/layer"
	"github.com/laurakrama/DAG2024/internal/projection"
)

// Result is the eligibility of one property. APD and AUD are in the
// engine's projected frame so their areas can be summed directly.
type Result struct {
	QueryID       string                        `json:"query_id"`
	PropertyKey   string                        `json:"property_key"`
	Frame         geometry.Frame                `json:"frame"`
	APD           geometry.Collection           `json:"-"`
	AUD           geometry.Collection           `json:"-"`
	TotalKm2      float64                       `json:"total_area_km2"`
	APDKm2        float64                       `json:"apd_area_km2"`
	AUDKm2        float64                       `json:"aud_area_km2"`
	IneligibleKm2 float64                       `json:"ineligible_area_km2"`
	Shares        area.Shares                   `json:"shares"`
	Anomalies     []area.Anomaly                `json:"anomalies,omitempty"`
	NoData        bool                          `json:"no_data"`
	Missing       *layer.SelectionNotFoundError `json:"missing,omitempty"`
}

// Service selects a property from a layer set and runs the engine on it.
type Service struct {
	engine    *Engine
	projector *projection.Projector
	display   geometry.Frame
}

// NewService returns a service that computes with engine and converts
// results back to the display frame on request.
func NewService(engine *Engine, display geometry.Frame) *Service {
	return &Service{engine: engine, projector: engine.projector, display: display}
}

// DisplayFrame returns the geographic frame used for rendering.
func (s *Service) DisplayFrame() geometry.Frame { return s.display }

// ForProperty computes the eligibility of the property with the given key.
// A key missing from the boundary layer yields a NoData result with zero
// areas; keys missing from the other layers are recorded in Missing and
// computed with empty layers.
func (s *Service) ForProperty(ctx context.Context, set *layer.Set, key string) (*Result, error) {
	log := zap.L().With(zap.String("component", "eligibility"), zap.String("property", key))

	res := &Result{
		QueryID:     uuid.NewString(),
		PropertyKey: key,
		Frame:       s.engine.Frame(),
		APD:         geometry.Empty(s.engine.Frame()),
		AUD:         geometry.Empty(s.engine.Frame()),
	}
	log = log.With(zap.String("query_id", res.QueryID))

	sel, missing := set.SelectProperty(key)
	res.Missing = missing
	if sel.Limite.Len() == 0 {
		res.NoData = true
		log.Info("property not found", zap.Strings("layers", missing.Layers))
		return res, nil
	}

	out, err := s.engine.Compute(ctx, Inputs{
		Limite:    sel.Limite.Collection(s.display),
		Reserva:   sel.Reserva.Collection(s.display),
		Vegetacao: sel.Vegetacao.Collection(s.display),
	})
	if err != nil {
		log.Error("eligibility computation failed", zap.Error(err))
		return nil, err
	}

	res.APD, res.AUD = out.APD, out.AUD
	res.TotalKm2, res.APDKm2, res.AUDKm2 = out.TotalKm2, out.APDKm2, out.AUDKm2
	res.IneligibleKm2 = out.IneligibleKm2
	res.Anomalies = out.Anomalies
	res.Shares = area.ShareOf(res.APDKm2, res.AUDKm2, res.IneligibleKm2)

	for _, a := range res.Anomalies {
		log.Warn("eligibility anomaly",
			zap.String("kind", a.Kind),
			zap.String("detail", a.Detail),
			zap.Float64("value", a.Value),
		)
	}
	log.Info("eligibility computed",
		zap.Float64("total_km2", res.TotalKm2),
		zap.Float64("apd_km2", res.APDKm2),
		zap.Float64("aud_km2", res.AUDKm2),
		zap.Float64("ineligible_km2", res.IneligibleKm2),
	)
	return res, nil
}

// Display reprojects a result collection into the display frame.
func (s *Service) Display(c geometry.Collection) (geometry.Collection, error) {
	if c.IsEmpty() {
		return geometry.Empty(s.display), nil
	}
	return s.projector.Reproject(c, s.display)
}

// Centroid returns the area-weighted centroid of the property boundary in
// the display frame. ok is false when the property has no boundary.
func (s *Service) Centroid(set *layer.Set, key string) (pt cgeom.Point, ok bool, err error) {
	limite := set.Properties.Select(key)
	if limite.Len() == 0 {
		return cgeom.Point{}, false, nil
	}
	projected, err := s.projector.Reproject(limite.Collection(s.display), s.engine.Frame())
	if err != nil {
		return cgeom.Point{}, false, geometry.WithLayer(err, LayerLimite)
	}

	var sx, sy, total float64
	for _, p := range projected.Polygons {
		a := p.Area()
		if a == 0 {
			continue
		}
		c := p.Centroid()
		sx += c.X * a
		sy += c.Y * a
		total += a
	}
	if total == 0 {
		return cgeom.Point{}, false, geometry.NewGeometryError("centroid", -1, eris.New("property boundary has zero area"))
	}

	back, err := s.projector.Reproject(
		geometry.New(projected.Frame, cgeom.Polygon{{{X: sx / total, Y: sy / total}}}),
		s.display,
	)
	if err != nil {
		return cgeom.Point{}, false, geometry.WithLayer(err, LayerLimite)
	}
	return back.Polygons[0][0][0], true, nil
}
