// SPDX-License-Identifier: MIT

package raster

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

func TestIsGlobal(t *testing.T) {
	// 1-degree grid with cell centers 0.5 .. 359.5 spans 360-dx
	x := linspace(0.5, 359.5, 360)
	assert.True(t, IsGlobal(x, true))
	assert.False(t, IsGlobal(x, false))

	regional := linspace(10, 40, 31)
	assert.False(t, IsGlobal(regional, true))
}

func TestExtendX(t *testing.T) {
	x := []float64{0.5, 1.5, 2.5}
	y := []float64{10, 11}
	g := NewGrid(x, y)
	for k := range g.Data {
		g.Data[k] = float64(k)
	}
	g.Mask[0] = true

	e := g.ExtendX()
	require.Equal(t, 5, e.Nx())
	assert.InDelta(t, -0.5, e.X[0], 1e-12)
	assert.InDelta(t, 3.5, e.X[4], 1e-12)
	// wrapped columns copy the opposite edge
	assert.Equal(t, g.At(0, 2), e.At(0, 0))
	assert.Equal(t, g.At(0, 0), e.At(0, 1))
	assert.Equal(t, g.At(0, 0), e.At(0, 4))
	assert.False(t, e.Valid(0, 1))
	assert.False(t, e.Valid(0, 4))
}

func TestCropSimple(t *testing.T) {
	x := linspace(0, 9, 10)
	y := linspace(0, 4, 5)
	g := NewGrid(x, y)
	for k := range g.Data {
		g.Data[k] = float64(k)
	}

	c, err := g.Crop(Bounds{XMin: 2, XMax: 5, YMin: 1, YMax: 3}, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4, 5}, c.X)
	assert.Equal(t, []float64{1, 2, 3}, c.Y)
	assert.Equal(t, g.At(1, 2), c.At(0, 0))
	assert.Equal(t, g.At(3, 5), c.At(2, 3))
}

func TestCropBuffer(t *testing.T) {
	x := linspace(0, 9, 10)
	y := linspace(0, 4, 5)
	g := NewGrid(x, y)

	c, err := g.Crop(Bounds{XMin: 3, XMax: 4, YMin: 2, YMax: 2}, 1, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4, 5}, c.X)
	assert.Equal(t, []float64{1, 2, 3}, c.Y)
}

func TestCropNoOverlap(t *testing.T) {
	g := NewGrid(linspace(0, 9, 10), linspace(0, 4, 5))
	_, err := g.Crop(Bounds{XMin: 100, XMax: 110, YMin: 0, YMax: 1}, 0, true)
	require.ErrorIs(t, err, ErrNoOverlap)
}

func TestCropShiftsConvention(t *testing.T) {
	// global 0:360 grid, bounds in -180:180
	x := linspace(0.5, 359.5, 360)
	y := linspace(-89.5, 89.5, 180)
	g := NewGrid(x, y)
	for k := range g.Data {
		g.Data[k] = float64(k % 360) // column index as value
	}

	c, err := g.Crop(Bounds{XMin: -10, XMax: -5, YMin: 0, YMax: 1}, 0, true)
	require.NoError(t, err)
	require.NotEmpty(t, c.X)
	for _, v := range c.X {
		assert.GreaterOrEqual(t, v, -10.5)
		assert.LessOrEqual(t, v, -4.5)
	}
	// value column must match the unshifted source column (lon+360)
	wantCol := c.X[0] + 360.0 - 0.5
	assert.InDelta(t, wantCol, c.At(0, 0), 1e-9)
}

func TestUVMasksRegional(t *testing.T) {
	// 3x3 bathymetry, land in the center
	x := []float64{0, 1, 2}
	y := []float64{0, 1, 2}
	hz := NewGrid(x, y)
	for k := range hz.Data {
		hz.Data[k] = 100
	}
	hz.Data[4] = 0 // (1,1) dry

	mu, mv := UVMasks(hz, false)
	// u node at (1,1) pairs centers (1,1) and (1,0): dry
	assert.False(t, mu[4])
	// u node at (1,2) pairs (1,2) and (1,1): dry
	assert.False(t, mu[5])
	// u node at (0,1) pairs two wet centers
	assert.True(t, mu[1])
	// v node at (1,1) pairs (1,1) and (0,1): dry
	assert.False(t, mv[4])
	// v node at (2,1) pairs (2,1) and (1,1): dry
	assert.False(t, mv[7])
	assert.True(t, mv[3])
}

func TestUVNodesWrap(t *testing.T) {
	x := []float64{0.5, 1.5, 2.5}
	y := []float64{0, 1}
	hz := NewGrid(x, y)
	vals := []float64{10, 20, 30, 40, 50, 60}
	copy(hz.Data, vals)

	hu, _ := UVNodes(hz, true)
	// global: u node 0 pairs column 0 with wrapped column 2
	assert.InDelta(t, 0.5*(10+30), hu.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5*(20+10), hu.At(0, 1), 1e-12)

	huEdge, _ := UVNodes(hz, false)
	// regional: u node 0 pairs column 0 with itself
	assert.InDelta(t, 10, huEdge.At(0, 0), 1e-12)
}

func TestCropRoundTripMatrixLayout(t *testing.T) {
	x := linspace(0, 4, 5)
	y := linspace(0, 3, 4)
	g := NewComplexGrid(x, y)
	for k := range g.Data {
		g.Data[k] = complex(float64(k), -float64(k))
	}
	c, err := g.Crop(Bounds{XMin: 0, XMax: 4, YMin: 0, YMax: 3}, 0, true)
	require.NoError(t, err)
	if diff := cmp.Diff(g.Data, c.Data); diff != "" {
		t.Fatalf("full-bounds crop changed data (-want +got):\n%s", diff)
	}
}
