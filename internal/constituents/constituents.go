// SPDX-License-Identifier: MIT

// Package constituents holds gridded harmonic constants for a set of
// tidal constituents on a shared model grid.
package constituents

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidecast/tidecast/internal/raster"
)

// ErrUnknown is returned when a constituent id is not in the set.
var ErrUnknown = errors.New("constituents: unknown constituent")

// Set is an ordered collection of complex harmonic fields sharing one
// model grid. X and Y are the model coordinates (projected models keep
// their native coordinates here); Longitude and Latitude are the
// geographic coordinates of every grid cell, row-major.
type Set struct {
	X, Y       []float64
	Bathymetry *raster.Grid
	Projection string
	Longitude  []float64
	Latitude   []float64

	ids    []string
	fields map[string]*raster.ComplexGrid
}

// New creates an empty set on the given model grid.
func New(x, y []float64, bathymetry *raster.Grid) *Set {
	return &Set{
		X:          x,
		Y:          y,
		Bathymetry: bathymetry,
		fields:     make(map[string]*raster.ComplexGrid),
	}
}

// Append adds a constituent field. Appending an id twice replaces the
// field but keeps its original position.
func (s *Set) Append(id string, hc *raster.ComplexGrid) {
	if s.fields == nil {
		s.fields = make(map[string]*raster.ComplexGrid)
	}
	if _, ok := s.fields[id]; !ok {
		s.ids = append(s.ids, id)
	}
	s.fields[id] = hc
}

// Get returns the field for a constituent id.
func (s *Set) Get(id string) (*raster.ComplexGrid, error) {
	hc, ok := s.fields[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnknown)
	}
	return hc, nil
}

// Fields returns the constituent ids in append order.
func (s *Set) Fields() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of constituents in the set.
func (s *Set) Len() int { return len(s.ids) }

type fieldJSON struct {
	Re   []float64 `json:"re"`
	Im   []float64 `json:"im"`
	Mask []bool    `json:"mask"`
}

// MarshalJSON encodes the set with complex fields split into real and
// imaginary parts.
func (s *Set) MarshalJSON() ([]byte, error) {
	fields := make(map[string]fieldJSON, len(s.ids))
	for id, hc := range s.fields {
		f := fieldJSON{
			Re:   make([]float64, len(hc.Data)),
			Im:   make([]float64, len(hc.Data)),
			Mask: hc.Mask,
		}
		for k, c := range hc.Data {
			f.Re[k] = real(c)
			f.Im[k] = imag(c)
		}
		fields[id] = f
	}
	return json.Marshal(struct {
		X          []float64            `json:"x"`
		Y          []float64            `json:"y"`
		Bathymetry *raster.Grid         `json:"bathymetry,omitempty"`
		Projection string               `json:"projection,omitempty"`
		Longitude  []float64            `json:"longitude,omitempty"`
		Latitude   []float64            `json:"latitude,omitempty"`
		Order      []string             `json:"order"`
		Fields     map[string]fieldJSON `json:"fields"`
	}{s.X, s.Y, s.Bathymetry, s.Projection, s.Longitude, s.Latitude, s.ids, fields})
}

// UnmarshalJSON decodes a set written by MarshalJSON.
func (s *Set) UnmarshalJSON(data []byte) error {
	var raw struct {
		X          []float64            `json:"x"`
		Y          []float64            `json:"y"`
		Bathymetry *raster.Grid         `json:"bathymetry"`
		Projection string               `json:"projection"`
		Longitude  []float64            `json:"longitude"`
		Latitude   []float64            `json:"latitude"`
		Order      []string             `json:"order"`
		Fields     map[string]fieldJSON `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("constituents: decode: %w", err)
	}
	s.X = raw.X
	s.Y = raw.Y
	s.Bathymetry = raw.Bathymetry
	s.Projection = raw.Projection
	s.Longitude = raw.Longitude
	s.Latitude = raw.Latitude
	s.ids = nil
	s.fields = make(map[string]*raster.ComplexGrid, len(raw.Fields))
	for _, id := range raw.Order {
		f, ok := raw.Fields[id]
		if !ok {
			return fmt.Errorf("constituents: decode: order lists %q with no field", id)
		}
		if len(f.Re) != len(f.Im) {
			return fmt.Errorf("constituents: decode: %q re/im length mismatch", id)
		}
		hc := &raster.ComplexGrid{
			X:    raw.X,
			Y:    raw.Y,
			Data: make([]complex128, len(f.Re)),
			Mask: f.Mask,
		}
		for k := range f.Re {
			hc.Data[k] = complex(f.Re[k], f.Im[k])
		}
		s.Append(id, hc)
	}
	return nil
}
