// SPDX-License-Identifier: MIT

// Package raster provides masked matrices on rectilinear grids and the
// grid manipulations shared by the tide model readers: longitudinal
// extension of global grids, cropping to buffered bounds, shifting the
// longitudinal convention, and Arakawa C-grid node derivation.
package raster

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoOverlap is returned when a crop window selects no grid cells.
var ErrNoOverlap = errors.New("raster: bounds do not overlap grid")

// globalTol is the tolerance used when testing whether a longitude axis
// spans the full 360 degrees. Grid coordinates originate from float32
// file headers, so exact comparison is too strict.
const globalTol = 1e-4

// Bounds is a bounding box in grid coordinates.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Grid is a real-valued matrix on a rectilinear grid with a per-cell
// validity mask. Data is row-major: Data[j*len(X)+i] sits at (X[i], Y[j]).
// Mask is true for INVALID cells.
type Grid struct {
	X, Y []float64
	Data []float64
	Mask []bool
}

// ComplexGrid is the complex-valued counterpart of Grid, used for the
// harmonic constants.
type ComplexGrid struct {
	X, Y []float64
	Data []complex128
	Mask []bool
}

// NewGrid allocates a zero grid over the given coordinate vectors.
func NewGrid(x, y []float64) *Grid {
	return &Grid{
		X:    append([]float64(nil), x...),
		Y:    append([]float64(nil), y...),
		Data: make([]float64, len(x)*len(y)),
		Mask: make([]bool, len(x)*len(y)),
	}
}

// NewComplexGrid allocates a zero complex grid over the given coordinate
// vectors.
func NewComplexGrid(x, y []float64) *ComplexGrid {
	return &ComplexGrid{
		X:    append([]float64(nil), x...),
		Y:    append([]float64(nil), y...),
		Data: make([]complex128, len(x)*len(y)),
		Mask: make([]bool, len(x)*len(y)),
	}
}

func (g *Grid) Nx() int { return len(g.X) }
func (g *Grid) Ny() int { return len(g.Y) }

// At returns the cell value at row j, column i.
func (g *Grid) At(j, i int) float64 { return g.Data[j*len(g.X)+i] }

// Valid reports whether the cell at row j, column i carries data.
func (g *Grid) Valid(j, i int) bool { return !g.Mask[j*len(g.X)+i] }

func (g *ComplexGrid) Nx() int { return len(g.X) }
func (g *ComplexGrid) Ny() int { return len(g.Y) }

// At returns the cell value at row j, column i.
func (g *ComplexGrid) At(j, i int) complex128 { return g.Data[j*len(g.X)+i] }

// Valid reports whether the cell at row j, column i carries data.
func (g *ComplexGrid) Valid(j, i int) bool { return !g.Mask[j*len(g.X)+i] }

// Step returns the grid spacing along both axes.
func Step(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return x[1] - x[0]
}

// IsGlobal reports whether a geographic longitude axis wraps the full
// 360 degrees (span equals 360 minus one step).
func IsGlobal(x []float64, geographic bool) bool {
	if !geographic || len(x) < 2 {
		return false
	}
	dx := Step(x)
	return math.Abs((x[len(x)-1]-x[0])-(360.0-dx)) <= globalTol
}

// ExtendVector appends a wrapped sample on each side of a longitude axis:
// [x0-dx, x0, ..., xN, xN+dx].
func ExtendVector(x []float64, step float64) []float64 {
	out := make([]float64, len(x)+2)
	out[0] = x[0] - step
	copy(out[1:], x)
	out[len(out)-1] = x[len(x)-1] + step
	return out
}

func extendMatrix[T any](data []T, ny, nx int) []T {
	out := make([]T, ny*(nx+2))
	for j := 0; j < ny; j++ {
		src := data[j*nx : (j+1)*nx]
		dst := out[j*(nx+2):]
		dst[0] = src[nx-1]
		copy(dst[1:], src)
		dst[nx+1] = src[0]
	}
	return out
}

// ExtendX returns a copy of the grid with one wrapped column on each side,
// used for global grids so interpolation works across the seam.
func (g *Grid) ExtendX() *Grid {
	nx, ny := g.Nx(), g.Ny()
	dx := Step(g.X)
	return &Grid{
		X:    ExtendVector(g.X, dx),
		Y:    append([]float64(nil), g.Y...),
		Data: extendMatrix(g.Data, ny, nx),
		Mask: extendMatrix(g.Mask, ny, nx),
	}
}

// ExtendX returns a copy of the grid with one wrapped column on each side.
func (g *ComplexGrid) ExtendX() *ComplexGrid {
	nx, ny := g.Nx(), g.Ny()
	dx := Step(g.X)
	return &ComplexGrid{
		X:    ExtendVector(g.X, dx),
		Y:    append([]float64(nil), g.Y...),
		Data: extendMatrix(g.Data, ny, nx),
		Mask: extendMatrix(g.Mask, ny, nx),
	}
}

// shiftIndex computes the column rotation for moving a cyclic longitude
// axis to a new base longitude.
func shiftIndex(x []float64, x0, cyclic float64) (i0, offset int) {
	offset = 1
	if math.Abs(x[len(x)-1]-x[0]-cyclic) > 1e-4 {
		offset = 0
	}
	i0 = 0
	best := math.Inf(1)
	for i, v := range x {
		if d := math.Abs(v - x0); d < best {
			best = d
			i0 = i
		}
	}
	return i0, offset
}

func shiftVector(x []float64, x0, cyclic float64, west bool) []float64 {
	i0, offset := shiftIndex(x, x0, cyclic)
	n := len(x)
	out := make([]float64, n)
	copy(out[:n-i0], x[i0:])
	copy(out[n-i0:], x[offset:i0+offset])
	if west {
		for i := 0; i < n-i0; i++ {
			out[i] -= cyclic
		}
	} else {
		for i := n - i0; i < n; i++ {
			out[i] += cyclic
		}
	}
	return out
}

func shiftMatrix[T any](data []T, ny, nx, i0, offset int) []T {
	out := make([]T, len(data))
	for j := 0; j < ny; j++ {
		src := data[j*nx : (j+1)*nx]
		dst := out[j*nx : (j+1)*nx]
		copy(dst[:nx-i0], src[i0:])
		copy(dst[nx-i0:], src[offset:i0+offset])
	}
	return out
}

func cropIndices(v []float64, lo, hi float64) (int, int, bool) {
	first, last := -1, -1
	for i, x := range v {
		if x >= lo && x <= hi {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0, false
	}
	return first, last + 1, true
}

type cropWindow struct {
	x, y   []float64
	r0, r1 int
	c0, c1 int
	i0, of int // column shift applied before cropping; i0 < 0 means none
}

// planCrop resolves the longitudinal convention shift and the index window
// for cropping a grid to buffered bounds.
func planCrop(x, y []float64, b Bounds, buffer float64, geographic bool) (cropWindow, error) {
	w := cropWindow{i0: -1}
	xs := x
	xmin, xmax := math.Min(b.XMin, b.XMax), math.Max(b.XMin, b.XMax)
	switch {
	case geographic && xmin < 0.0 && x[len(x)-1] > 180.0:
		// bounds use -180:180, grid uses 0:360
		w.i0, w.of = shiftIndex(x, 180.0, 360.0)
		xs = shiftVector(x, 180.0, 360.0, true)
	case geographic && xmax > 180.0 && x[0] < 0.0:
		// bounds use 0:360, grid uses -180:180
		w.i0, w.of = shiftIndex(x, 0.0, 360.0)
		xs = shiftVector(x, 0.0, 360.0, false)
	}
	c0, c1, ok := cropIndices(xs, b.XMin-buffer, b.XMax+buffer)
	if !ok {
		return w, fmt.Errorf("x range [%g, %g]: %w", b.XMin, b.XMax, ErrNoOverlap)
	}
	r0, r1, ok := cropIndices(y, b.YMin-buffer, b.YMax+buffer)
	if !ok {
		return w, fmt.Errorf("y range [%g, %g]: %w", b.YMin, b.YMax, ErrNoOverlap)
	}
	w.x = xs[c0:c1]
	w.y = y[r0:r1]
	w.r0, w.r1, w.c0, w.c1 = r0, r1, c0, c1
	return w, nil
}

func cropMatrix[T any](data []T, nx int, w cropWindow) []T {
	if w.i0 >= 0 {
		data = shiftMatrix(data, len(data)/nx, nx, w.i0, w.of)
	}
	out := make([]T, (w.r1-w.r0)*(w.c1-w.c0))
	for j := w.r0; j < w.r1; j++ {
		copy(out[(j-w.r0)*(w.c1-w.c0):], data[j*nx+w.c0:j*nx+w.c1])
	}
	return out
}

// Crop returns the grid restricted to the buffered bounds, shifting the
// longitudinal convention first when the bounds and grid disagree.
func (g *Grid) Crop(b Bounds, buffer float64, geographic bool) (*Grid, error) {
	w, err := planCrop(g.X, g.Y, b, buffer, geographic)
	if err != nil {
		return nil, err
	}
	return &Grid{
		X:    append([]float64(nil), w.x...),
		Y:    append([]float64(nil), w.y...),
		Data: cropMatrix(g.Data, g.Nx(), w),
		Mask: cropMatrix(g.Mask, g.Nx(), w),
	}, nil
}

// Crop returns the grid restricted to the buffered bounds.
func (g *ComplexGrid) Crop(b Bounds, buffer float64, geographic bool) (*ComplexGrid, error) {
	w, err := planCrop(g.X, g.Y, b, buffer, geographic)
	if err != nil {
		return nil, err
	}
	return &ComplexGrid{
		X:    append([]float64(nil), w.x...),
		Y:    append([]float64(nil), w.y...),
		Data: cropMatrix(g.Data, g.Nx(), w),
		Mask: cropMatrix(g.Mask, g.Nx(), w),
	}, nil
}
