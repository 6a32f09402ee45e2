package geometry

import (
	"errors"
	"fmt"
)

// ProjectionError reports an unsupported frame or a coordinate outside the
// valid domain of a transform.
type ProjectionError struct {
	Layer string
	Op    string
	Frame Frame
	Err   error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection: %s %s (%s): %v", e.Op, layerOrDash(e.Layer), e.Frame, e.Err)
}

func (e *ProjectionError) Unwrap() error {
	return e.Err
}

// GeometryError reports invalid input geometry that could not be repaired,
// or an area sum that came out negative or NaN.
type GeometryError struct {
	Layer string
	Op    string
	// Index is the position of the offending polygon in its collection, or -1.
	Index int
	Err   error
}

func (e *GeometryError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("geometry: %s %s[%d]: %v", e.Op, layerOrDash(e.Layer), e.Index, e.Err)
	}
	return fmt.Sprintf("geometry: %s %s: %v", e.Op, layerOrDash(e.Layer), e.Err)
}

func (e *GeometryError) Unwrap() error {
	return e.Err
}

// NewGeometryError builds a GeometryError with no layer attached yet.
func NewGeometryError(op string, index int, err error) *GeometryError {
	return &GeometryError{Op: op, Index: index, Err: err}
}

// IsProjectionError reports whether err (or any error in its chain) is a ProjectionError.
func IsProjectionError(err error) bool {
	var pe *ProjectionError
	return errors.As(err, &pe)
}

// IsGeometryError reports whether err (or any error in its chain) is a GeometryError.
func IsGeometryError(err error) bool {
	var ge *GeometryError
	return errors.As(err, &ge)
}

// WithLayer names the layer on a ProjectionError or GeometryError that does
// not carry one yet. Other errors are returned unchanged.
func WithLayer(err error, layer string) error {
	var pe *ProjectionError
	if errors.As(err, &pe) && pe.Layer == "" {
		pe.Layer = layer
		return err
	}
	var ge *GeometryError
	if errors.As(err, &ge) && ge.Layer == "" {
		ge.Layer = layer
	}
	return err
}

func layerOrDash(layer string) string {
	if layer == "" {
		return "-"
	}
	return layer
}
