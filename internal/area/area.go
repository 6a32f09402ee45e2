// Package area sums polygon areas in a projected frame and derives the
// ineligible remainder of a property.
package area

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/laurakrama/DAG2024/internal/geometry"
)

// SquareMetersPerKm2 converts square meters to square kilometers.
const SquareMetersPerKm2 = 1e6

// RelativeTolerance bounds the floating-point drift accepted between the
// property area and the sum of its parts.
const RelativeTolerance = 1e-6

// FrameChecker reports whether a frame is distance-preserving.
type FrameChecker interface {
	IsProjected(geometry.Frame) bool
}

// Calculator sums areas of collections already in a projected frame.
type Calculator struct {
	frames FrameChecker
}

// NewCalculator returns a calculator that trusts frames to tell projected
// frames apart.
func NewCalculator(frames FrameChecker) *Calculator {
	return &Calculator{frames: frames}
}

// TotalKm2 returns the summed area of c in square kilometers. It never
// reprojects: a collection outside a projected frame is a ProjectionError.
// A negative or NaN sum is a GeometryError.
func (c *Calculator) TotalKm2(col geometry.Collection) (float64, error) {
	if !c.frames.IsProjected(col.Frame) {
		return 0, &geometry.ProjectionError{
			Op:    "area",
			Frame: col.Frame,
			Err:   eris.Errorf("area requires a projected frame, got %q", col.Frame),
		}
	}

	var sum float64
	for i, p := range col.Polygons {
		if len(p) == 0 {
			continue
		}
		a := p.Area()
		if math.IsNaN(a) || a < 0 {
			return 0, geometry.NewGeometryError("area", i, eris.Errorf("polygon area is %v", a))
		}
		sum += a
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) || sum < 0 {
		return 0, geometry.NewGeometryError("area", -1, eris.Errorf("area sum is %v", sum))
	}
	return sum / SquareMetersPerKm2, nil
}

// Anomaly records a computation inconsistency that did not abort the query.
type Anomaly struct {
	Kind   string  `json:"kind"`
	Detail string  `json:"detail"`
	Value  float64 `json:"value"`
}

// AnomalyNegativeIneligible marks a property whose APD and AUD areas exceed
// its total area by more than the tolerance.
const AnomalyNegativeIneligible = "negative_ineligible_area"

// Ineligible returns total - apd - aud clamped to zero. A raw value below
// -RelativeTolerance*total is reported as an anomaly alongside the clamp.
func Ineligible(totalKm2, apdKm2, audKm2 float64) (float64, *Anomaly) {
	raw := totalKm2 - apdKm2 - audKm2
	if raw >= 0 {
		return raw, nil
	}
	if -raw <= RelativeTolerance*math.Abs(totalKm2) {
		return 0, nil
	}
	return 0, &Anomaly{
		Kind:   AnomalyNegativeIneligible,
		Detail: fmt.Sprintf("APD (%.6f km²) + AUD (%.6f km²) exceed property area (%.6f km²)", apdKm2, audKm2, totalKm2),
		Value:  raw,
	}
}

// Shares holds the percentage of the property taken by each class.
type Shares struct {
	APD        float64 `json:"apd_pct"`
	AUD        float64 `json:"aud_pct"`
	Ineligible float64 `json:"ineligible_pct"`
}

// ShareOf splits the three areas into percentages of their sum. All zero
// when the sum is zero.
func ShareOf(apdKm2, audKm2, ineligibleKm2 float64) Shares {
	total := apdKm2 + audKm2 + ineligibleKm2
	if total <= 0 {
		return Shares{}
	}
	return Shares{
		APD:        apdKm2 / total * 100,
		AUD:        audKm2 / total * 100,
		Ineligible: ineligibleKm2 / total * 100,
	}
}
