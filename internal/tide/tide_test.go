// SPDX-License-Identifier: MIT

package tide

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tidecast/tidecast/internal/interp"
	"github.com/tidecast/tidecast/internal/model"
	"github.com/tidecast/tidecast/internal/otis"
	"github.com/tidecast/tidecast/internal/raster"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeTestModel writes a small geographic OTIS model: 10x5 cells over
// 0..10E, 50..55N. Columns west of landEdge are land; wet cells carry a
// uniform depth of 100 m and a uniform m2 elevation of 1-1i.
func writeTestModel(t *testing.T, dir string, landEdge int) model.Model {
	t.Helper()
	x := make([]float64, 10)
	for i := range x {
		x[i] = 0.5 + float64(i)
	}
	y := make([]float64, 5)
	for j := range y {
		y[j] = 50.5 + float64(j)
	}

	bath := raster.NewGrid(x, y)
	wet := make([]bool, len(bath.Data))
	for j := 0; j < 5; j++ {
		for i := 0; i < 10; i++ {
			k := j*10 + i
			if i >= landEdge {
				bath.Data[k] = 100.0
				wet[k] = true
			}
		}
	}
	g := &otis.Grid{Bathymetry: bath, WetMask: wet, TimeStep: 12.0}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "test"), 0o755))
	require.NoError(t, otis.WriteGrid(filepath.Join(dir, "test", "grid"), g))

	h := raster.NewComplexGrid(x, y)
	u := raster.NewComplexGrid(x, y)
	v := raster.NewComplexGrid(x, y)
	for k := range h.Data {
		if wet[k] {
			h.Data[k] = 1 - 1i
			u.Data[k] = 100
			v.Data[k] = 50i
		}
	}
	require.NoError(t, otis.WriteElevation(filepath.Join(dir, "test", "h"),
		[]string{"m2"}, []*raster.ComplexGrid{h}))
	require.NoError(t, otis.WriteTransport(filepath.Join(dir, "test", "uv"),
		[]string{"m2"}, []*raster.ComplexGrid{u}, []*raster.ComplexGrid{v}))

	return model.Model{
		Name:      "test",
		Format:    model.FormatOTIS,
		GridFile:  "test/grid",
		Elevation: []string{"test/h"},
		Transport: []string{"test/uv"},
	}
}

func TestExtractConstantsHeights(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 0)

	lon := []float64{3.0, 7.25}
	lat := []float64{52.0, 53.5}
	c, err := ExtractConstants(context.Background(), m, dir, lon, lat, Options{})
	require.NoError(t, err)

	require.Equal(t, []string{"m2"}, c.Constituents)
	require.Len(t, c.Amplitude, 1)
	for p := range lon {
		assert.False(t, c.Mask[0][p])
		assert.InDelta(t, math.Sqrt2, c.Amplitude[0][p], 1e-5)
		assert.InDelta(t, 45.0, c.Phase[0][p], 1e-4)
		assert.InDelta(t, 100.0, c.Depth[p], 1e-4)
	}
}

func TestExtractConstantsOutsideDomainMasked(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 0)

	c, err := ExtractConstants(context.Background(), m, dir,
		[]float64{5.0}, []float64{80.0}, Options{})
	require.NoError(t, err)
	assert.True(t, c.Mask[0][0])
	assert.True(t, math.IsNaN(c.Amplitude[0][0]))
	assert.True(t, math.IsNaN(c.Phase[0][0]))
}

func TestExtractConstantsCurrents(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 0)

	c, err := ExtractConstants(context.Background(), m, dir,
		[]float64{5.0}, []float64{52.5}, Options{Type: CurrentU})
	require.NoError(t, err)
	require.False(t, c.Mask[0][0])
	// 100 m^2/s over 100 m of water is 100 cm/s
	assert.InDelta(t, 100.0, c.Amplitude[0][0], 1e-4)
	assert.InDelta(t, 0.0, c.Phase[0][0], 1e-6)

	c, err = ExtractConstants(context.Background(), m, dir,
		[]float64{5.0}, []float64{52.5}, Options{Type: CurrentV})
	require.NoError(t, err)
	require.False(t, c.Mask[0][0])
	assert.InDelta(t, 50.0, c.Amplitude[0][0], 1e-4)
	// 50i has phase atan2(-50, 0)
	assert.InDelta(t, 270.0, c.Phase[0][0], 1e-4)
}

func TestExtractConstantsExtrapolate(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 5) // western half is land

	// over land, inside the domain extent
	lon := []float64{2.0}
	lat := []float64{52.5}

	c, err := ExtractConstants(context.Background(), m, dir, lon, lat, Options{})
	require.NoError(t, err)
	assert.True(t, c.Mask[0][0])

	c, err = ExtractConstants(context.Background(), m, dir, lon, lat,
		Options{Extrapolate: true, CutoffKm: math.Inf(1)})
	require.NoError(t, err)
	require.False(t, c.Mask[0][0])
	assert.InDelta(t, math.Sqrt2, c.Amplitude[0][0], 1e-5)
	assert.InDelta(t, 45.0, c.Phase[0][0], 1e-4)

	// nearest wet cell is ~240 km away, beyond the default 10 km cutoff
	c, err = ExtractConstants(context.Background(), m, dir, lon, lat,
		Options{Extrapolate: true})
	require.NoError(t, err)
	assert.True(t, c.Mask[0][0])
}

func TestExtractConstantsCrop(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 0)

	c, err := ExtractConstants(context.Background(), m, dir,
		[]float64{5.0}, []float64{52.5},
		Options{Crop: true, Bounds: &raster.Bounds{XMin: 4, XMax: 6, YMin: 51, YMax: 54}})
	require.NoError(t, err)
	require.False(t, c.Mask[0][0])
	assert.InDelta(t, math.Sqrt2, c.Amplitude[0][0], 1e-5)
}

func TestExtractConstantsBilinear(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 0)

	c, err := ExtractConstants(context.Background(), m, dir,
		[]float64{3.0}, []float64{52.0}, Options{Method: interp.MethodBilinear})
	require.NoError(t, err)
	require.False(t, c.Mask[0][0])
	assert.InDelta(t, math.Sqrt2, c.Amplitude[0][0], 1e-5)
}

func TestExtractConstantsPointLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 0)
	_, err := ExtractConstants(context.Background(), m, dir,
		[]float64{1, 2}, []float64{50}, Options{})
	require.ErrorIs(t, err, ErrPoints)
}

func TestReadAndInterpolateConstants(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 0)

	set, err := ReadConstants(context.Background(), m, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, set.Fields())
	assert.Len(t, set.Longitude, len(set.X)*len(set.Y))

	lon := []float64{3.0, 7.25}
	lat := []float64{52.0, 53.5}
	got, err := InterpolateConstants(lon, lat, set, Options{})
	require.NoError(t, err)

	want, err := ExtractConstants(context.Background(), m, dir, lon, lat, Options{})
	require.NoError(t, err)
	for p := range lon {
		assert.InDelta(t, want.Amplitude[0][p], got.Amplitude[0][p], 1e-9)
		assert.InDelta(t, want.Phase[0][p], got.Phase[0][p], 1e-9)
		assert.InDelta(t, want.Depth[p], got.Depth[p], 1e-9)
	}
}

func TestExtractConstantsNoPoints(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 0)

	c, err := ExtractConstants(context.Background(), m, dir, nil, nil, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"m2"}, c.Constituents)
	assert.Empty(t, c.Amplitude[0])
	assert.Empty(t, c.Phase[0])
	assert.Empty(t, c.Mask[0])
	assert.Empty(t, c.Depth)

	// cropping to the point extent degrades the same way
	c, err = ExtractConstants(context.Background(), m, dir, nil, nil, Options{Crop: true})
	require.NoError(t, err)
	assert.Empty(t, c.Amplitude[0])
}

func TestInterpolateConstantsNoPoints(t *testing.T) {
	dir := t.TempDir()
	m := writeTestModel(t, dir, 0)

	set, err := ReadConstants(context.Background(), m, dir, Options{})
	require.NoError(t, err)

	c, err := InterpolateConstants(nil, nil, set, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"m2"}, c.Constituents)
	assert.Empty(t, c.Amplitude[0])
	assert.Empty(t, c.Depth)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("")
	require.NoError(t, err)
	assert.Equal(t, Heights, typ)

	for _, s := range []string{"z", "u", "U", "v", "V"} {
		_, err := ParseType(s)
		require.NoError(t, err)
	}
	_, err = ParseType("w")
	require.ErrorIs(t, err, ErrType)
}
