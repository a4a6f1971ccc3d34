// SPDX-License-Identifier: MIT

package tide

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tidecast/tidecast/internal/constituents"
	"github.com/tidecast/tidecast/internal/crs"
	"github.com/tidecast/tidecast/internal/model"
	"github.com/tidecast/tidecast/internal/raster"
)

// ReadConstants reads a model's harmonic constants onto their model
// grid, for repeated interpolation without re-reading the files.
func ReadConstants(ctx context.Context, m model.Model, dir string, opts Options) (*constituents.Set, error) {
	o := opts.withDefaults()
	if _, err := ParseType(string(o.Type)); err != nil {
		return nil, err
	}
	// cropping the full grid needs explicit bounds
	if o.Bounds == nil {
		o.Crop = false
	}

	src, err := newSource(m, dir, o)
	if err != nil {
		return nil, err
	}
	projection, err := m.CRS()
	if err != nil {
		return nil, err
	}

	p, err := prepare(src.grid, o, projection.IsGeographic(), nil, nil)
	if err != nil {
		return nil, err
	}

	bath := &raster.Grid{X: p.x, Y: p.y, Data: p.bathymetry, Mask: p.mask}
	set := constituents.New(p.x, p.y, bath)
	set.Projection = m.Projection
	set.Longitude, set.Latitude = gridCoordinates(projection, p.x, p.y)

	ids, err := src.constituents()
	if err != nil {
		return nil, err
	}

	fields := make([]*raster.ComplexGrid, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hc, err := src.field(i, id, o.ApplyFlexure)
			if err != nil {
				return fmt.Errorf("constituent %s: %w", id, err)
			}
			hc, err = p.fit(hc)
			if err != nil {
				return fmt.Errorf("constituent %s: %w", id, err)
			}
			hc.Mask = orMask(hc.Mask, p.mask)
			fields[i] = hc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		set.Append(id, fields[i])
	}
	return set, nil
}

// gridCoordinates computes the geographic coordinates of every grid
// cell, row-major.
func gridCoordinates(projection crs.CRS, x, y []float64) (lon, lat []float64) {
	lon = make([]float64, len(x)*len(y))
	lat = make([]float64, len(x)*len(y))
	for j := range y {
		for i := range x {
			lon[j*len(x)+i], lat[j*len(x)+i] = projection.Inverse(x[i], y[j])
		}
	}
	return lon, lat
}

// InterpolateConstants evaluates previously read harmonic constants at
// the given geographic points.
func InterpolateConstants(lon, lat []float64, set *constituents.Set, opts Options) (*Constants, error) {
	o := opts.withDefaults()
	if len(lon) != len(lat) {
		return nil, fmt.Errorf("%d longitudes, %d latitudes: %w", len(lon), len(lat), ErrPoints)
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("tide: empty constituent set")
	}
	projection, err := crs.Parse(set.Projection)
	if err != nil {
		return nil, err
	}
	x, y := crs.ForwardAll(projection, lon, lat)

	mask := set.Bathymetry.Mask
	if mask == nil {
		mask = make([]bool, len(set.Bathymetry.Data))
	}
	d := &domain{
		x:          set.X,
		y:          set.Y,
		bathymetry: set.Bathymetry.Data,
		mask:       mask,
		geographic: projection.IsGeographic(),
	}
	d.fitConvention(x)
	outside := d.outside(x, y)

	depth, depthMask, err := d.depthAt(o.Method, x, y)
	if err != nil {
		return nil, err
	}

	ids := set.Fields()
	out := &Constants{
		Constituents: ids,
		Amplitude:    make([][]float64, len(ids)),
		Phase:        make([][]float64, len(ids)),
		Mask:         make([][]bool, len(ids)),
		Depth:        depth,
		DepthMask:    depthMask,
	}
	for i, id := range ids {
		hc, err := set.Get(id)
		if err != nil {
			return nil, err
		}
		amp, phase, mask, err := constituentAt(d, hc, o, x, y, depth, depthMask, outside)
		if err != nil {
			return nil, err
		}
		out.Amplitude[i] = amp
		out.Phase[i] = phase
		out.Mask[i] = mask
	}
	return out, nil
}
