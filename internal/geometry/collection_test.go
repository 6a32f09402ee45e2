package geometry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_IsEmpty(t *testing.T) {
	assert.True(t, Empty(UTM22S).IsEmpty())
	assert.True(t, New(UTM22S, geom.Polygon{}).IsEmpty())
	assert.True(t, New(UTM22S, geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 1}}}).IsEmpty())
	assert.False(t, New(UTM22S, Rect(0, 0, 1, 1)).IsEmpty())
}

func TestCollection_CloneIsDeep(t *testing.T) {
	c := New(UTM22S, Rect(0, 0, 1, 1))
	clone := c.Clone()
	clone.Polygons[0][0][0].X = 99

	assert.Equal(t, 0.0, c.Polygons[0][0][0].X)
	assert.Equal(t, UTM22S, clone.Frame)
}

func TestCollection_Bounds(t *testing.T) {
	c := New(UTM22S, Rect(0, 0, 1, 1), Rect(5, -2, 6, 3))
	b := c.Bounds()

	assert.Equal(t, 0.0, b.Min.X)
	assert.Equal(t, -2.0, b.Min.Y)
	assert.Equal(t, 6.0, b.Max.X)
	assert.Equal(t, 3.0, b.Max.Y)
}

func TestWithLayer(t *testing.T) {
	pe := &ProjectionError{Op: "reproject", Frame: UTM22S, Err: errors.New("out of domain")}
	err := WithLayer(fmt.Errorf("wrapped: %w", pe), "reserva")

	require.True(t, IsProjectionError(err))
	assert.Equal(t, "reserva", pe.Layer)
	assert.Contains(t, pe.Error(), "reserva")

	ge := NewGeometryError("intersect", 2, errors.New("self-intersection"))
	ge.Layer = "limite"
	_ = WithLayer(ge, "vegetacao")
	assert.Equal(t, "limite", ge.Layer, "existing layer is kept")
	assert.True(t, IsGeometryError(ge))
	assert.Contains(t, ge.Error(), "limite[2]")

	plain := errors.New("plain")
	assert.Equal(t, plain, WithLayer(plain, "x"))
	assert.False(t, IsGeometryError(plain))
}

func TestFrame_SRID(t *testing.T) {
	assert.Equal(t, 4674, SIRGAS2000.SRID())
	assert.Equal(t, 32722, UTM22S.SRID())
	assert.Equal(t, 0, Frame("local").SRID())
	assert.Equal(t, SIRGAS2000, FrameFromSRID(4674))
}
