// SPDX-License-Identifier: MIT

package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// planeGrid builds data[j*nx+i] = a*x + b*y + c on the given axes.
func planeGrid(x, y []float64, a, b, c float64) ([]float64, []bool) {
	data := make([]float64, len(x)*len(y))
	mask := make([]bool, len(data))
	for j, yv := range y {
		for i, xv := range x {
			data[j*len(x)+i] = a*xv + b*yv + c
		}
	}
	return data, mask
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodSpline, m)

	for _, s := range []string{"bilinear", "spline", "linear", "nearest"} {
		m, err := ParseMethod(s)
		require.NoError(t, err)
		assert.Equal(t, Method(s), m)
	}

	_, err = ParseMethod("cubic")
	require.ErrorIs(t, err, ErrMethod)
}

func TestBilinearExactOnPlane(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 2, 4}
	data, mask := planeGrid(x, y, 2, -3, 1)

	px := []float64{0.5, 1.75, 3, 0}
	py := []float64{1, 3.2, 4, 0}
	got, invalid := Bilinear(x, y, data, mask, px, py)
	for k := range px {
		require.False(t, invalid[k], "point %d", k)
		assert.InDelta(t, 2*px[k]-3*py[k]+1, got[k], 1e-12, "point %d", k)
	}
}

func TestBilinearMaskedCornerPoisons(t *testing.T) {
	x := []float64{0, 1}
	y := []float64{0, 1}
	data := []float64{1, 2, 3, 4}
	mask := []bool{false, false, false, true}

	_, invalid := Bilinear(x, y, data, mask, []float64{0.5}, []float64{0.5})
	assert.True(t, invalid[0])
}

func TestBilinearOutOfRange(t *testing.T) {
	x := []float64{0, 1}
	y := []float64{0, 1}
	data := []float64{1, 2, 3, 4}
	mask := make([]bool, 4)

	_, invalid := Bilinear(x, y, data, mask, []float64{-0.1, 0.5}, []float64{0.5, 1.5})
	assert.True(t, invalid[0])
	assert.True(t, invalid[1])
}

func TestSplineClampsEdges(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{0, 1, 2}
	data, mask := planeGrid(x, y, 1, 1, 0)

	got, invalid := Spline(x, y, data, mask, []float64{-0.5, 2.5}, []float64{1, 1})
	require.False(t, invalid[0])
	require.False(t, invalid[1])
	// linear extension beyond the edge
	assert.InDelta(t, 0.5, got[0], 1e-12)
	assert.InDelta(t, 3.5, got[1], 1e-12)
}

func TestLinearZeroWeightCornerIgnored(t *testing.T) {
	x := []float64{0, 1}
	y := []float64{0, 1}
	data := []float64{1, 2, 3, 4}
	// corner (1,1) masked but queried point sits on the opposite corner
	mask := []bool{false, false, false, true}

	got, invalid := Linear(x, y, data, mask, []float64{0}, []float64{0})
	require.False(t, invalid[0])
	assert.InDelta(t, 1, got[0], 1e-12)
}

func TestNearest(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{0, 1}
	data := []float64{10, 20, 30, 40, 50, 60}
	mask := make([]bool, 6)
	mask[1] = true

	got, invalid := Nearest(x, y, data, mask, []float64{0.1, 1.2, 0.9}, []float64{0.1, 0.9, 0.2})
	require.False(t, invalid[0])
	assert.Equal(t, 10.0, got[0])
	require.False(t, invalid[1])
	assert.Equal(t, 50.0, got[1])
	// nearest cell is the masked one
	assert.True(t, invalid[2])
}

func TestComplexKernels(t *testing.T) {
	x := []float64{0, 1}
	y := []float64{0, 1}
	data := []complex128{1 + 1i, 3 + 1i, 1 + 3i, 3 + 3i}
	mask := make([]bool, 4)

	got, invalid := Bilinear(x, y, data, mask, []float64{0.5}, []float64{0.5})
	require.False(t, invalid[0])
	assert.InDelta(t, 2, real(got[0]), 1e-12)
	assert.InDelta(t, 2, imag(got[0]), 1e-12)
}

func TestExtrapolateWithinCutoff(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{0, 1}
	data := []float64{10, 20, 30, 40, 50, 60}
	mask := []bool{false, true, true, true, true, true}

	// ~157 km away from the single valid cell at (0,0)
	got, invalid := Extrapolate(x, y, data, mask, []float64{1.0}, []float64{1.0}, 200.0, true)
	require.False(t, invalid[0])
	assert.Equal(t, 10.0, got[0])

	_, invalid = Extrapolate(x, y, data, mask, []float64{1.0}, []float64{1.0}, 100.0, true)
	assert.True(t, invalid[0])
}

func TestExtrapolateInfiniteCutoff(t *testing.T) {
	x := []float64{0, 100}
	y := []float64{0, 100}
	data := []float64{7, 0, 0, 0}
	mask := []bool{false, true, true, true}

	got, invalid := Extrapolate(x, y, data, mask, []float64{9000}, []float64{9000}, math.Inf(1), false)
	require.False(t, invalid[0])
	assert.Equal(t, 7.0, got[0])
}

func TestExtrapolateNoValidSource(t *testing.T) {
	x := []float64{0, 1}
	y := []float64{0, 1}
	data := []float64{1, 2, 3, 4}
	mask := []bool{true, true, true, true}

	_, invalid := Extrapolate(x, y, data, mask, []float64{0.5}, []float64{0.5}, math.Inf(1), false)
	assert.True(t, invalid[0])
}

func TestInterpolateDispatch(t *testing.T) {
	x := []float64{0, 1}
	y := []float64{0, 1}
	data, mask := planeGrid(x, y, 1, 0, 0)

	for _, m := range []Method{MethodBilinear, MethodSpline, MethodLinear, MethodNearest} {
		_, _, err := Interpolate(m, x, y, data, mask, []float64{0.5}, []float64{0.5})
		require.NoError(t, err, string(m))
	}
	_, _, err := Interpolate(Method("bogus"), x, y, data, mask, nil, nil)
	require.ErrorIs(t, err, ErrMethod)
}
