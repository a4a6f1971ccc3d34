// SPDX-License-Identifier: MIT

// Package tide extracts tidal harmonic constants from OTIS, ATLAS and
// TMD3 model files: amplitude and phase of each constituent at a set of
// geographic points, plus the model bathymetry at those points.
package tide

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidecast/tidecast/internal/interp"
	"github.com/tidecast/tidecast/internal/otis"
	"github.com/tidecast/tidecast/internal/raster"
)

var (
	// ErrPoints is returned when the input coordinate slices disagree.
	ErrPoints = errors.New("tide: longitude and latitude lengths differ")
	// ErrType is returned for an unknown tidal variable.
	ErrType = errors.New("tide: unknown tidal variable")
)

// Type selects the tidal variable to extract.
type Type string

const (
	// Heights is the tidal elevation in meters.
	Heights Type = "z"
	// CurrentU is the zonal current velocity in cm/s.
	CurrentU Type = "u"
	// TransportU is the zonal depth-integrated transport in m^2/s.
	TransportU Type = "U"
	// CurrentV is the meridional current velocity in cm/s.
	CurrentV Type = "v"
	// TransportV is the meridional depth-integrated transport in m^2/s.
	TransportV Type = "V"
)

// ParseType validates a tidal variable name.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case "":
		return Heights, nil
	case Heights, CurrentU, TransportU, CurrentV, TransportV:
		return Type(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrType)
}

// isCurrent reports whether the variable is a velocity, which is scaled
// by the water depth to cm/s.
func (t Type) isCurrent() bool { return t == CurrentU || t == CurrentV }

// isZonal reports whether the variable lives on the u nodes of the grid.
func (t Type) isZonal() bool { return t == CurrentU || t == TransportU }

// isMeridional reports whether the variable lives on the v nodes.
func (t Type) isMeridional() bool { return t == CurrentV || t == TransportV }

// Options control extraction and interpolation.
type Options struct {
	// Type is the tidal variable; empty means heights.
	Type Type
	// Method is the grid interpolation method; empty means spline.
	Method interp.Method
	// Crop restricts the model domain to Bounds (or the point extent)
	// before reading constituents.
	Crop bool
	// Bounds are the crop bounds in model coordinates.
	Bounds *raster.Bounds
	// Buffer widens the crop bounds; zero means four grid cells.
	Buffer float64
	// Extrapolate fills invalid points from the nearest wet model cell.
	Extrapolate bool
	// CutoffKm limits extrapolation distance; zero means 10 km. Use
	// math.Inf(1) to extrapolate everywhere.
	CutoffKm float64
	// ApplyFlexure scales elevations by the ice flexure factor on
	// models that provide one.
	ApplyFlexure bool
	// AtlasSpacing overrides the ATLAS resampling resolution.
	AtlasSpacing float64
	// Concurrency bounds parallel constituent reads; zero means 4.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Type == "" {
		o.Type = Heights
	}
	if o.Method == "" {
		o.Method = interp.MethodSpline
	}
	if o.CutoffKm == 0 {
		o.CutoffKm = 10.0
	}
	if o.AtlasSpacing == 0 {
		o.AtlasSpacing = otis.DefaultAtlasSpacing
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// Constants are harmonic constants evaluated at a set of points.
// Amplitude, Phase and Mask are indexed [constituent][point]; Depth is
// indexed by point. Masked entries hold NaN.
type Constants struct {
	Constituents []string
	Amplitude    [][]float64
	Phase        [][]float64
	Mask         [][]bool
	Depth        []float64
	DepthMask    []bool
}

// domain is the prepared model grid a variable is sampled on.
type domain struct {
	x, y       []float64
	bathymetry []float64 // node depth
	mask       []bool    // true where invalid
	geographic bool
}

// outside flags points that fall outside the domain extent.
func (d *domain) outside(x, y []float64) []bool {
	out := make([]bool, len(x))
	x0, x1 := d.x[0], d.x[len(d.x)-1]
	y0, y1 := d.y[0], d.y[len(d.y)-1]
	for p := range x {
		out[p] = x[p] < x0 || x[p] > x1 || y[p] < y0 || y[p] > y1
	}
	return out
}

// fitConvention adjusts the longitudinal convention of input points to
// the model grid.
func (d *domain) fitConvention(x []float64) {
	if !d.geographic || len(x) == 0 {
		return
	}
	minX, maxX := x[0], x[0]
	for _, v := range x {
		minX = math.Min(minX, v)
		maxX = math.Max(maxX, v)
	}
	if minX < d.x[0] {
		for p, v := range x {
			if v < 0 {
				x[p] += 360.0
			}
		}
		maxX = x[0]
		for _, v := range x {
			maxX = math.Max(maxX, v)
		}
	}
	if maxX > d.x[len(d.x)-1] {
		for p, v := range x {
			if v > 180 {
				x[p] -= 360.0
			}
		}
	}
}

// depthAt interpolates the node bathymetry to the points.
func (d *domain) depthAt(method interp.Method, x, y []float64) ([]float64, []bool, error) {
	depth, mask, err := interp.Interpolate(method, d.x, d.y, d.bathymetry, d.mask, x, y)
	if err != nil {
		return nil, nil, err
	}
	for p := range depth {
		if mask[p] || math.IsNaN(depth[p]) {
			mask[p] = true
			depth[p] = math.NaN()
		}
	}
	return depth, mask, nil
}

// orMask returns a∪b without touching either input. The inputs may
// have different lengths (or be nil).
func orMask(a, b []bool) []bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]bool, n)
	for k := range out {
		out[k] = (k < len(a) && a[k]) || (k < len(b) && b[k])
	}
	return out
}

// maskZeros marks exact-zero cells invalid, mirroring the land fill
// value of the binary formats.
func maskZeros(mask []bool, data []complex128) []bool {
	out := make([]bool, len(data))
	for k := range data {
		out[k] = (k < len(mask) && mask[k]) || data[k] == 0
	}
	return out
}

// constituentAt interpolates one complex field to the points and
// converts it to amplitude and phase in degrees.
func constituentAt(d *domain, hc *raster.ComplexGrid, o Options,
	x, y []float64, depth []float64, depthMask, outside []bool) (amp, phase []float64, mask []bool, err error) {

	hcMask := orMask(hc.Mask, d.mask)
	if o.Method == interp.MethodBilinear || o.Method == interp.MethodLinear || o.Method == interp.MethodNearest {
		hcMask = maskZeros(hcMask, hc.Data)
	}
	vals, invalid, err := interp.Interpolate(o.Method, d.x, d.y, hc.Data, hcMask, x, y)
	if err != nil {
		return nil, nil, nil, err
	}
	for p := range invalid {
		invalid[p] = invalid[p] || depthMask[p]
	}

	if o.Extrapolate {
		var px, py []float64
		var idx []int
		for p, inv := range invalid {
			if inv {
				px = append(px, x[p])
				py = append(py, y[p])
				idx = append(idx, p)
			}
		}
		if len(idx) > 0 {
			exMask := maskZeros(orMask(hc.Mask, nil), hc.Data)
			exVals, exInv := interp.Extrapolate(d.x, d.y, hc.Data, exMask, px, py, o.CutoffKm, d.geographic)
			for k, p := range idx {
				if !exInv[k] {
					vals[p] = exVals[k]
					invalid[p] = false
				}
			}
		}
	}

	amp = make([]float64, len(vals))
	phase = make([]float64, len(vals))
	mask = make([]bool, len(vals))
	for p, v := range vals {
		bad := invalid[p] || outside[p]
		conv := 1.0
		if o.Type.isCurrent() {
			conv = depth[p] / 100.0
			if conv == 0 || math.IsNaN(conv) {
				bad = true
			}
		}
		if bad {
			amp[p] = math.NaN()
			phase[p] = math.NaN()
			mask[p] = true
			continue
		}
		amp[p] = cmplxAbs(v) / conv
		ph := math.Atan2(-imag(v), real(v)) * 180.0 / math.Pi
		if ph < 0 {
			ph += 360.0
		}
		phase[p] = ph
	}
	return amp, phase, mask, nil
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}
