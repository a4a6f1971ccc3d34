// SPDX-License-Identifier: MIT

// Package crs implements the coordinate reference systems used by OTIS
// tide models: geographic coordinates and the ellipsoidal polar
// stereographic projections of the polar model families.
package crs

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// WGS84 ellipsoid.
const (
	semiMajor  = 6378137.0
	flattening = 1.0 / 298.257223563
)

var (
	ecc2 = flattening * (2.0 - flattening)
	ecc  = math.Sqrt(ecc2)
)

// ErrProjection is returned for unsupported or malformed projection specs.
var ErrProjection = errors.New("crs: unsupported projection")

// CRS converts between geographic coordinates (longitude, latitude in
// degrees) and model grid coordinates.
type CRS interface {
	// Forward converts longitude/latitude to grid coordinates.
	Forward(lon, lat float64) (x, y float64)
	// Inverse converts grid coordinates back to longitude/latitude.
	Inverse(x, y float64) (lon, lat float64)
	// IsGeographic reports whether grid coordinates are degrees.
	IsGeographic() bool
}

// Spec is the JSON projection description carried by the model database.
// The zero value is geographic.
type Spec struct {
	Proj  string  `json:"proj,omitempty"`
	Lat0  float64 `json:"lat_0,omitempty"`
	LatTS float64 `json:"lat_ts,omitempty"`
	Lon0  float64 `json:"lon_0,omitempty"`
	X0    float64 `json:"x_0,omitempty"`
	Y0    float64 `json:"y_0,omitempty"`
	K0    float64 `json:"k_0,omitempty"`
	Units string  `json:"units,omitempty"`
	EPSG  string  `json:"epsg,omitempty"`
}

// Geographic is the identity CRS: grid coordinates are degrees.
type Geographic struct{}

func (Geographic) Forward(lon, lat float64) (float64, float64) { return lon, lat }
func (Geographic) Inverse(x, y float64) (float64, float64)     { return x, y }
func (Geographic) IsGeographic() bool                          { return true }

// PolarStereographic is an ellipsoidal polar stereographic projection
// (Snyder 1987, eqs. 21-33..21-40) on WGS84.
type PolarStereographic struct {
	south bool
	lon0  float64 // radians
	x0    float64 // grid units
	y0    float64 // grid units
	scale float64 // meters per grid unit
	tc    float64
	mc    float64
}

// New builds a CRS from a projection spec. Supported: empty/"longlat"
// (geographic) and "stere" with lat_0 at a pole.
func New(s Spec) (CRS, error) {
	proj := strings.ToLower(strings.TrimSpace(s.Proj))
	if epsg := strings.TrimSpace(s.EPSG); epsg != "" && proj == "" {
		switch epsg {
		case "4326", "EPSG:4326":
			return Geographic{}, nil
		default:
			return nil, fmt.Errorf("epsg %q: %w", epsg, ErrProjection)
		}
	}
	switch proj {
	case "", "longlat", "latlong":
		return Geographic{}, nil
	case "stere":
		return newPolarStereographic(s)
	default:
		return nil, fmt.Errorf("proj %q: %w", s.Proj, ErrProjection)
	}
}

// Parse accepts the string forms found in model databases: "EPSG:4326",
// "4326", an empty string (geographic) or an inline JSON Spec object.
func Parse(v string) (CRS, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Geographic{}, nil
	}
	if strings.HasPrefix(v, "{") {
		var s Spec
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			return nil, fmt.Errorf("projection spec: %v: %w", err, ErrProjection)
		}
		return New(s)
	}
	if strings.HasPrefix(strings.ToUpper(v), "EPSG:") {
		v = v[5:]
	}
	if v == "4326" {
		return Geographic{}, nil
	}
	return nil, fmt.Errorf("projection %q: %w", v, ErrProjection)
}

func newPolarStereographic(s Spec) (CRS, error) {
	if math.Abs(s.Lat0) != 90 {
		return nil, fmt.Errorf("stere lat_0 %g is not polar: %w", s.Lat0, ErrProjection)
	}
	latTS := s.LatTS
	if latTS == 0 {
		latTS = s.Lat0
	}
	scale := 1.0
	switch strings.ToLower(s.Units) {
	case "", "m", "meter", "metre":
		scale = 1.0
	case "km", "kilometer", "kilometre":
		scale = 1000.0
	default:
		return nil, fmt.Errorf("units %q: %w", s.Units, ErrProjection)
	}
	p := &PolarStereographic{
		south: s.Lat0 < 0,
		lon0:  s.Lon0 * math.Pi / 180.0,
		x0:    s.X0,
		y0:    s.Y0,
		scale: scale,
	}
	phiTS := math.Abs(latTS) * math.Pi / 180.0
	p.tc = tsfn(phiTS)
	p.mc = msfn(phiTS)
	return p, nil
}

// tsfn computes Snyder's t for latitude phi (positive, radians).
func tsfn(phi float64) float64 {
	s := math.Sin(phi)
	return math.Tan(math.Pi/4.0-phi/2.0) /
		math.Pow((1.0-ecc*s)/(1.0+ecc*s), ecc/2.0)
}

// msfn computes Snyder's m for latitude phi (radians).
func msfn(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1.0-ecc2*s*s)
}

func (p *PolarStereographic) IsGeographic() bool { return false }

func (p *PolarStereographic) Forward(lon, lat float64) (float64, float64) {
	lam := lon * math.Pi / 180.0
	phi := lat * math.Pi / 180.0
	dlam := lam - p.lon0
	var t, x, y float64
	if p.south {
		t = tsfn(-phi)
		rho := semiMajor * p.mc * t / p.tc
		x = rho * math.Sin(dlam)
		y = rho * math.Cos(dlam)
	} else {
		t = tsfn(phi)
		rho := semiMajor * p.mc * t / p.tc
		x = rho * math.Sin(dlam)
		y = -rho * math.Cos(dlam)
	}
	return x/p.scale + p.x0, y/p.scale + p.y0
}

// chify recovers geodetic latitude (radians, positive) from the isometric
// parameter t via the conformal-latitude series.
func chify(t float64) float64 {
	chi := math.Pi/2.0 - 2.0*math.Atan(t)
	e2 := ecc2
	e4 := e2 * e2
	e6 := e4 * e2
	return chi +
		(e2/2.0+5.0*e4/24.0+e6/12.0)*math.Sin(2.0*chi) +
		(7.0*e4/48.0+29.0*e6/240.0)*math.Sin(4.0*chi) +
		(7.0*e6/120.0)*math.Sin(6.0*chi)
}

func (p *PolarStereographic) Inverse(x, y float64) (float64, float64) {
	xm := (x - p.x0) * p.scale
	ym := (y - p.y0) * p.scale
	rho := math.Hypot(xm, ym)
	var phi, lam float64
	if rho == 0 {
		phi = math.Pi / 2.0
		lam = p.lon0
	} else {
		t := rho * p.tc / (semiMajor * p.mc)
		phi = chify(t)
		if p.south {
			lam = p.lon0 + math.Atan2(xm, ym)
		} else {
			lam = p.lon0 + math.Atan2(xm, -ym)
		}
	}
	if p.south {
		phi = -phi
	}
	lon := lam * 180.0 / math.Pi
	for lon > 180.0 {
		lon -= 360.0
	}
	for lon < -180.0 {
		lon += 360.0
	}
	return lon, phi * 180.0 / math.Pi
}

// ForwardAll converts coordinate slices through the CRS.
func ForwardAll(c CRS, lon, lat []float64) (x, y []float64) {
	x = make([]float64, len(lon))
	y = make([]float64, len(lat))
	for i := range lon {
		x[i], y[i] = c.Forward(lon[i], lat[i])
	}
	return x, y
}

// InverseAll converts coordinate slices back to longitude/latitude.
func InverseAll(c CRS, x, y []float64) (lon, lat []float64) {
	lon = make([]float64, len(x))
	lat = make([]float64, len(y))
	for i := range x {
		lon[i], lat[i] = c.Inverse(x[i], y[i])
	}
	return lon, lat
}
