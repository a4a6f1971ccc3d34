// SPDX-License-Identifier: MIT

// Package interp provides the spatial interpolation kernels used to move
// tide model fields from their native grids to requested coordinates.
// All kernels operate on row-major matrices over ascending coordinate
// vectors and carry an explicit invalid mask instead of NaN sentinels.
package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Cell constrains the value types the kernels operate on: bathymetry
// (float64) and harmonic constants (complex128).
type Cell interface {
	float64 | complex128
}

// scale multiplies a cell value by a real weight.
func scale[T Cell](v T, w float64) T {
	switch x := any(v).(type) {
	case float64:
		return any(x * w).(T)
	case complex128:
		return any(x * complex(w, 0)).(T)
	default:
		var zero T
		return zero
	}
}

// Method selects an interpolation kernel.
type Method string

const (
	// MethodBilinear requires all four surrounding cells to be valid.
	MethodBilinear Method = "bilinear"
	// MethodSpline is a bivariate linear spline: edge-clamped bilinear.
	MethodSpline Method = "spline"
	// MethodLinear is regular-grid linear interpolation without clamping.
	MethodLinear Method = "linear"
	// MethodNearest snaps to the nearest grid cell.
	MethodNearest Method = "nearest"
)

// ErrMethod is returned for unrecognized interpolation methods.
var ErrMethod = errors.New("interp: unknown method")

// ParseMethod validates a method name ("" defaults to spline, matching the
// extraction default).
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "":
		return MethodSpline, nil
	case MethodBilinear, MethodSpline, MethodLinear, MethodNearest:
		return Method(s), nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrMethod)
	}
}

// Interpolate dispatches to the kernel selected by m.
func Interpolate[T Cell](m Method, x, y []float64, data []T, mask []bool, px, py []float64) ([]T, []bool, error) {
	switch m {
	case MethodBilinear:
		v, inv := Bilinear(x, y, data, mask, px, py)
		return v, inv, nil
	case MethodSpline:
		v, inv := Spline(x, y, data, mask, px, py)
		return v, inv, nil
	case MethodLinear:
		v, inv := Linear(x, y, data, mask, px, py)
		return v, inv, nil
	case MethodNearest:
		v, inv := Nearest(x, y, data, mask, px, py)
		return v, inv, nil
	default:
		return nil, nil, fmt.Errorf("%q: %w", m, ErrMethod)
	}
}

// cell locates the grid cell containing v: the largest i with x[i] <= v,
// clipped so that i+1 is a valid index. ok is false outside the grid.
func cell(x []float64, v float64) (i int, ok bool) {
	n := len(x)
	if n < 2 || v < x[0] || v > x[n-1] {
		return 0, false
	}
	i = sort.SearchFloat64s(x, v)
	if i > 0 && (i == n || x[i] != v) {
		i--
	}
	if i >= n-1 {
		i = n - 2
	}
	return i, true
}

// clampCell is like cell but clamps out-of-range points to the edge cell.
func clampCell(x []float64, v float64) int {
	if v <= x[0] {
		return 0
	}
	if i, ok := cell(x, v); ok {
		return i
	}
	return len(x) - 2
}

type corner struct {
	idx int
	w   float64
}

func corners(x, y []float64, i, j int, px, py float64) [4]corner {
	nx := len(x)
	x1, x2 := x[i], x[i+1]
	y1, y2 := y[j], y[j+1]
	dx := x2 - x1
	dy := y2 - y1
	tx := 0.0
	if dx != 0 {
		tx = (px - x1) / dx
	}
	ty := 0.0
	if dy != 0 {
		ty = (py - y1) / dy
	}
	return [4]corner{
		{j*nx + i, (1 - tx) * (1 - ty)},
		{j*nx + i + 1, tx * (1 - ty)},
		{(j+1)*nx + i, (1 - tx) * ty},
		{(j+1)*nx + i + 1, tx * ty},
	}
}

func weighted[T Cell](data []T, c [4]corner) T {
	var out T
	for _, cr := range c {
		out += scale(data[cr.idx], cr.w)
	}
	return out
}

// Bilinear interpolates with standard four-corner weights. A point is
// invalid when it falls outside the grid or any surrounding cell is
// invalid (masked cells poison the result, matching NaN propagation).
func Bilinear[T Cell](x, y []float64, data []T, mask []bool, px, py []float64) ([]T, []bool) {
	values := make([]T, len(px))
	invalid := make([]bool, len(px))
	for k := range px {
		i, okx := cell(x, px[k])
		j, oky := cell(y, py[k])
		if !okx || !oky {
			invalid[k] = true
			continue
		}
		c := corners(x, y, i, j, px[k], py[k])
		bad := false
		for _, cr := range c {
			if mask[cr.idx] {
				bad = true
				break
			}
		}
		if bad {
			invalid[k] = true
			continue
		}
		values[k] = weighted(data, c)
	}
	return values, invalid
}

// Spline is a bivariate linear spline: values are bilinear with points
// outside the grid clamped to the edge. Validity follows the ceiling of
// the interpolated mask: any invalid corner invalidates the point.
func Spline[T Cell](x, y []float64, data []T, mask []bool, px, py []float64) ([]T, []bool) {
	values := make([]T, len(px))
	invalid := make([]bool, len(px))
	for k := range px {
		i := clampCell(x, px[k])
		j := clampCell(y, py[k])
		c := corners(x, y, i, j, px[k], py[k])
		values[k] = weighted(data, c)
		for _, cr := range c {
			if mask[cr.idx] && cr.w > 0 {
				invalid[k] = true
				break
			}
		}
	}
	return values, invalid
}

// Linear is regular-grid linear interpolation: no edge clamping, out of
// range points are invalid, and any invalid corner with weight
// invalidates the point.
func Linear[T Cell](x, y []float64, data []T, mask []bool, px, py []float64) ([]T, []bool) {
	values := make([]T, len(px))
	invalid := make([]bool, len(px))
	for k := range px {
		i, okx := cell(x, px[k])
		j, oky := cell(y, py[k])
		if !okx || !oky {
			invalid[k] = true
			continue
		}
		c := corners(x, y, i, j, px[k], py[k])
		values[k] = weighted(data, c)
		for _, cr := range c {
			if mask[cr.idx] && cr.w > 0 {
				invalid[k] = true
				break
			}
		}
	}
	return values, invalid
}

// Nearest snaps each point to the nearest grid cell.
func Nearest[T Cell](x, y []float64, data []T, mask []bool, px, py []float64) ([]T, []bool) {
	nx := len(x)
	values := make([]T, len(px))
	invalid := make([]bool, len(px))
	for k := range px {
		i, okx := cell(x, px[k])
		j, oky := cell(y, py[k])
		if !okx || !oky {
			invalid[k] = true
			continue
		}
		if px[k]-x[i] > x[i+1]-px[k] {
			i++
		}
		if py[k]-y[j] > y[j+1]-py[k] {
			j++
		}
		idx := j*nx + i
		if mask[idx] {
			invalid[k] = true
			continue
		}
		values[k] = data[idx]
	}
	return values, invalid
}

// earthRadiusKm is the authalic Earth radius used for extrapolation
// distances on geographic grids.
const earthRadiusKm = 6371.0

func haversineKm(lon1, lat1, lon2, lat2 float64) float64 {
	const rad = math.Pi / 180.0
	dlat := (lat2 - lat1) * rad
	dlon := (lon2 - lon1) * rad
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Extrapolate fills points from the nearest valid source cell within
// cutoff kilometers. Geographic grids measure great-circle distance;
// projected grids are assumed to be in kilometers and use Euclidean
// distance. A +Inf cutoff fills every point that has any valid source.
func Extrapolate[T Cell](x, y []float64, data []T, mask []bool, px, py []float64, cutoffKm float64, geographic bool) ([]T, []bool) {
	nx := len(x)
	values := make([]T, len(px))
	invalid := make([]bool, len(px))
	for k := range px {
		best := math.Inf(1)
		bestIdx := -1
		for j := range y {
			for i := 0; i < nx; i++ {
				idx := j*nx + i
				if mask[idx] {
					continue
				}
				var d float64
				if geographic {
					d = haversineKm(px[k], py[k], x[i], y[j])
				} else {
					d = math.Hypot(px[k]-x[i], py[k]-y[j])
				}
				if d < best {
					best = d
					bestIdx = idx
				}
			}
		}
		if bestIdx < 0 || best > cutoffKm {
			invalid[k] = true
			continue
		}
		values[k] = data[bestIdx]
	}
	return values, invalid
}
