// SPDX-License-Identifier: MIT

package constituents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidecast/tidecast/internal/raster"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	x := []float64{0.5, 1.5}
	y := []float64{10.5, 11.5}
	bath := raster.NewGrid(x, y)
	for k := range bath.Data {
		bath.Data[k] = float64(50 + k)
	}
	s := New(x, y, bath)

	m2 := raster.NewComplexGrid(x, y)
	m2.Data = []complex128{1 + 2i, 3 - 4i, 0, 5i}
	m2.Mask[2] = true
	s.Append("m2", m2)

	s2 := raster.NewComplexGrid(x, y)
	s2.Data = []complex128{-1, -2, -3, -4}
	s.Append("s2", s2)
	return s
}

func TestAppendAndGet(t *testing.T) {
	s := testSet(t)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"m2", "s2"}, s.Fields())

	hc, err := s.Get("m2")
	require.NoError(t, err)
	assert.Equal(t, 3-4i, hc.Data[1])

	_, err = s.Get("k1")
	require.ErrorIs(t, err, ErrUnknown)
}

func TestAppendReplacesKeepingOrder(t *testing.T) {
	s := testSet(t)
	repl := raster.NewComplexGrid(s.X, s.Y)
	repl.Data = []complex128{9, 9, 9, 9}
	s.Append("m2", repl)

	assert.Equal(t, []string{"m2", "s2"}, s.Fields())
	hc, err := s.Get("m2")
	require.NoError(t, err)
	assert.Equal(t, complex128(9), hc.Data[0])
}

func TestJSONRoundTrip(t *testing.T) {
	s := testSet(t)
	s.Projection = "EPSG:4326"
	s.Longitude = []float64{0.5, 1.5, 0.5, 1.5}
	s.Latitude = []float64{10.5, 10.5, 11.5, 11.5}

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var got Set
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, s.Fields(), got.Fields())
	assert.Equal(t, s.X, got.X)
	assert.Equal(t, s.Projection, got.Projection)
	assert.Equal(t, s.Latitude, got.Latitude)

	want, _ := s.Get("m2")
	hc, err := got.Get("m2")
	require.NoError(t, err)
	assert.Equal(t, want.Data, hc.Data)
	assert.Equal(t, want.Mask, hc.Mask)
	assert.InDeltaSlice(t, s.Bathymetry.Data, got.Bathymetry.Data, 0)
}

func TestUnmarshalRejectsMissingField(t *testing.T) {
	var got Set
	err := json.Unmarshal([]byte(`{"x":[0],"y":[0],"order":["m2"],"fields":{}}`), &got)
	require.Error(t, err)
}
