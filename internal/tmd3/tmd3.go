// SPDX-License-Identifier: MIT

// Package tmd3 reads the TMD3 netCDF tide model format: a single file
// per model holding coordinates, water column thickness, masks, ice
// flexure scaling and the complex harmonic constants for every
// constituent. Fields are stored north-up and are flipped to the
// south-up row order the rest of the code uses; imaginary components
// are stored with the opposite sign convention and are negated on read.
package tmd3

import (
	"errors"
	"fmt"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/tidecast/tidecast/internal/raster"
)

// ErrFormat is returned when a file lacks the expected TMD3 variables.
var ErrFormat = errors.New("tmd3: malformed file")

// Grid holds the grid variables of a TMD3 file.
type Grid struct {
	Bathymetry *raster.Grid // water column thickness, masked where zero
	WetMask    []bool
	Flexure    *raster.Grid // ice flexure scale factor, masked where zero
}

// Variable selects which harmonic field to read from a TMD3 file.
type Variable string

const (
	Elevation  Variable = "z"
	TransportU Variable = "U"
	TransportV Variable = "V"
)

// ReadGrid reads coordinates, bathymetry, mask and flexure scaling.
func ReadGrid(path string) (*Grid, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tmd3: open %s: %w", path, err)
	}
	defer g.Close()

	x, err := axis(g, "x")
	if err != nil {
		return nil, err
	}
	y, err := axis(g, "y")
	if err != nil {
		return nil, err
	}
	reverse(y)

	wct, err := matrix(g, "wct", len(x), len(y))
	if err != nil {
		return nil, err
	}
	mask, err := matrix(g, "mask", len(x), len(y))
	if err != nil {
		return nil, err
	}
	flex, err := matrix(g, "flexure", len(x), len(y))
	if err != nil {
		return nil, err
	}

	bath := raster.NewGrid(x, y)
	sf := raster.NewGrid(x, y)
	wet := make([]bool, len(wct))
	for k := range wct {
		bath.Data[k] = wct[k]
		bath.Mask[k] = wct[k] == 0
		sf.Data[k] = flex[k] / 100.0
		sf.Mask[k] = flex[k] == 0
		wet[k] = mask[k] != 0
	}
	return &Grid{Bathymetry: bath, WetMask: wet, Flexure: sf}, nil
}

// ReadConstituents reads the ordered constituent ids from the
// constituent_order attribute.
func ReadConstituents(path string) ([]string, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tmd3: open %s: %w", path, err)
	}
	defer g.Close()

	v, err := g.GetVariable("constituents")
	if err != nil {
		return nil, fmt.Errorf("tmd3: constituents variable: %w", ErrFormat)
	}
	attr, ok := v.Attributes.Get("constituent_order")
	if !ok {
		return nil, fmt.Errorf("tmd3: constituent_order attribute: %w", ErrFormat)
	}
	order, ok := attr.(string)
	if !ok {
		return nil, fmt.Errorf("tmd3: constituent_order attribute type %T: %w", attr, ErrFormat)
	}
	ids := strings.Fields(order)
	if len(ids) == 0 {
		return nil, fmt.Errorf("tmd3: empty constituent_order: %w", ErrFormat)
	}
	return ids, nil
}

// ReadConstituent reads the complex harmonic field of the ic-th
// constituent for the selected variable.
func ReadConstituent(path string, ic int, variable Variable) (*raster.ComplexGrid, error) {
	var reName, imName string
	switch variable {
	case Elevation:
		reName, imName = "hRe", "hIm"
	case TransportU:
		reName, imName = "URe", "UIm"
	case TransportV:
		reName, imName = "VRe", "VIm"
	default:
		return nil, fmt.Errorf("tmd3: variable %q: %w", variable, ErrFormat)
	}

	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tmd3: open %s: %w", path, err)
	}
	defer g.Close()

	re, nx, ny, err := slab(g, reName, ic)
	if err != nil {
		return nil, err
	}
	im, nx2, ny2, err := slab(g, imName, ic)
	if err != nil {
		return nil, err
	}
	if nx != nx2 || ny != ny2 {
		return nil, fmt.Errorf("tmd3: %s/%s dimensions differ: %w", reName, imName, ErrFormat)
	}

	hc := &raster.ComplexGrid{
		Data: make([]complex128, nx*ny),
		Mask: make([]bool, nx*ny),
	}
	for k := range hc.Data {
		hc.Data[k] = complex(re[k], -im[k])
	}
	return hc, nil
}

// axis reads a one-dimensional coordinate variable.
func axis(g api.Group, name string) ([]float64, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("tmd3: variable %s: %w", name, ErrFormat)
	}
	switch vals := v.Values.(type) {
	case []float64:
		out := make([]float64, len(vals))
		copy(out, vals)
		return out, nil
	case []float32:
		out := make([]float64, len(vals))
		for i, f := range vals {
			out[i] = float64(f)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(vals))
		for i, f := range vals {
			out[i] = float64(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tmd3: variable %s type %T: %w", name, v.Values, ErrFormat)
	}
}

// matrix reads a two-dimensional variable and flips it to south-up row
// order, returning it flattened row-major.
func matrix(g api.Group, name string, nx, ny int) ([]float64, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("tmd3: variable %s: %w", name, ErrFormat)
	}
	rows, err := rows2d(v.Values)
	if err != nil {
		return nil, fmt.Errorf("tmd3: variable %s: %w", name, err)
	}
	if len(rows) != ny {
		return nil, fmt.Errorf("tmd3: variable %s has %d rows, want %d: %w", name, len(rows), ny, ErrFormat)
	}
	out := make([]float64, 0, nx*ny)
	for j := ny - 1; j >= 0; j-- {
		if len(rows[j]) != nx {
			return nil, fmt.Errorf("tmd3: variable %s row length %d, want %d: %w", name, len(rows[j]), nx, ErrFormat)
		}
		out = append(out, rows[j]...)
	}
	return out, nil
}

// slab reads the ic-th layer of a three-dimensional variable, flipped
// to south-up row order and flattened row-major.
func slab(g api.Group, name string, ic int) (vals []float64, nx, ny int, err error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("tmd3: variable %s: %w", name, ErrFormat)
	}
	layers, err := layers3d(v.Values)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("tmd3: variable %s: %w", name, err)
	}
	if ic < 0 || ic >= len(layers) {
		return nil, 0, 0, fmt.Errorf("tmd3: constituent index %d of %d: %w", ic, len(layers), ErrFormat)
	}
	rows := layers[ic]
	ny = len(rows)
	if ny == 0 {
		return nil, 0, 0, fmt.Errorf("tmd3: variable %s is empty: %w", name, ErrFormat)
	}
	nx = len(rows[0])
	vals = make([]float64, 0, nx*ny)
	for j := ny - 1; j >= 0; j-- {
		if len(rows[j]) != nx {
			return nil, 0, 0, fmt.Errorf("tmd3: variable %s is ragged: %w", name, ErrFormat)
		}
		vals = append(vals, rows[j]...)
	}
	return vals, nx, ny, nil
}

func rows2d(values any) ([][]float64, error) {
	switch m := values.(type) {
	case [][]float64:
		return m, nil
	case [][]float32:
		return promoteRows(m), nil
	case [][]int32:
		return promoteRows(m), nil
	case [][]int16:
		return promoteRows(m), nil
	case [][]int8:
		return promoteRows(m), nil
	case [][]uint8:
		return promoteRows(m), nil
	default:
		return nil, fmt.Errorf("unexpected matrix type %T: %w", values, ErrFormat)
	}
}

func layers3d(values any) ([][][]float64, error) {
	switch c := values.(type) {
	case [][][]float64:
		return c, nil
	case [][][]float32:
		out := make([][][]float64, len(c))
		for i := range c {
			out[i] = promoteRows(c[i])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected field type %T: %w", values, ErrFormat)
	}
}

func promoteRows[T int8 | uint8 | int16 | int32 | float32](rows [][]T) [][]float64 {
	out := make([][]float64, len(rows))
	for j, row := range rows {
		out[j] = make([]float64, len(row))
		for i, v := range row {
			out[j][i] = float64(v)
		}
	}
	return out
}

func reverse(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}
