// Package eligibility computes the APD and AUD areas of a rural property:
// native vegetation inside the property and outside its Legal Reserve (APD),
// and native vegetation inside both (AUD).
package eligibility

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/laurakrama/DAG2024/internal/area"
	"github.com/laurakrama/DAG2024/internal/geometry"
	"github.com/laurakrama/DAG2024/internal/overlay"
	"github.com/laurakrama/DAG2024/internal/projection"
)

// Layer labels used in error context.
const (
	LayerLimite    = "limite"
	LayerReserva   = "reserva"
	LayerVegetacao = "vegetacao"
)

// Inputs are the three property layers, already filtered to one property key.
type Inputs struct {
	Limite    geometry.Collection
	Reserva   geometry.Collection
	Vegetacao geometry.Collection
}

// Outcome is the overlay result for one property, in the projected frame.
type Outcome struct {
	APD           geometry.Collection
	AUD           geometry.Collection
	TotalKm2      float64
	APDKm2        float64
	AUDKm2        float64
	IneligibleKm2 float64
	Anomalies     []area.Anomaly
}

// Engine runs the overlay in a fixed projected frame.
type Engine struct {
	projector *projection.Projector
	calc      *area.Calculator
	target    geometry.Frame
}

// NewEngine returns an engine computing in target, which must be a
// projected frame known to the projector.
func NewEngine(projector *projection.Projector, target geometry.Frame) (*Engine, error) {
	if !projector.Registry().IsProjected(target) {
		return nil, eris.Errorf("eligibility: frame %q is not a registered projected frame", target)
	}
	return &Engine{
		projector: projector,
		calc:      area.NewCalculator(projector.Registry()),
		target:    target,
	}, nil
}

// Frame returns the projected frame results are expressed in.
func (e *Engine) Frame() geometry.Frame { return e.target }

// Compute reprojects the inputs and derives:
//
//	vegetationInProperty = vegetacao ∩ limite
//	APD = vegetationInProperty − reserva
//	AUD = limite ∩ reserva ∩ vegetationInProperty
//
// The extra intersection with limite in AUD is kept as is.
func (e *Engine) Compute(ctx context.Context, in Inputs) (*Outcome, error) {
	limite, err := e.reproject(in.Limite, LayerLimite)
	if err != nil {
		return nil, err
	}
	reserva, err := e.reproject(in.Reserva, LayerReserva)
	if err != nil {
		return nil, err
	}
	vegetacao, err := e.reproject(in.Vegetacao, LayerVegetacao)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "eligibility: reproject")
	}

	vegetationInProperty, err := overlay.Intersect(vegetacao, limite)
	if err != nil {
		return nil, geometry.WithLayer(err, LayerVegetacao)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "eligibility: vegetation in property")
	}

	apd, err := overlay.Difference(vegetationInProperty, reserva)
	if err != nil {
		return nil, geometry.WithLayer(err, "apd")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "eligibility: apd")
	}

	aud, err := overlay.IntersectAll(limite, reserva, vegetationInProperty)
	if err != nil {
		return nil, geometry.WithLayer(err, "aud")
	}

	out := &Outcome{APD: apd, AUD: aud}
	if out.TotalKm2, err = e.calc.TotalKm2(limite); err != nil {
		return nil, geometry.WithLayer(err, LayerLimite)
	}
	if out.APDKm2, err = e.calc.TotalKm2(apd); err != nil {
		return nil, geometry.WithLayer(err, "apd")
	}
	if out.AUDKm2, err = e.calc.TotalKm2(aud); err != nil {
		return nil, geometry.WithLayer(err, "aud")
	}

	var anomaly *area.Anomaly
	out.IneligibleKm2, anomaly = area.Ineligible(out.TotalKm2, out.APDKm2, out.AUDKm2)
	if anomaly != nil {
		out.Anomalies = append(out.Anomalies, *anomaly)
	}
	return out, nil
}

func (e *Engine) reproject(c geometry.Collection, layer string) (geometry.Collection, error) {
	if c.IsEmpty() {
		return geometry.Empty(e.target), nil
	}
	out, err := e.projector.Reproject(c, e.target)
	if err != nil {
		return geometry.Collection{}, geometry.WithLayer(err, layer)
	}
	return out, nil
}
