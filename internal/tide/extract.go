// SPDX-License-Identifier: MIT

package tide

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/tidecast/tidecast/internal/crs"
	"github.com/tidecast/tidecast/internal/model"
	"github.com/tidecast/tidecast/internal/otis"
	"github.com/tidecast/tidecast/internal/raster"
	"github.com/tidecast/tidecast/internal/tmd3"
)

// source resolves a model's files and reads its grid and constituent
// fields in the model's native format.
type source struct {
	m       model.Model
	dir     string
	typ     Type
	spacing float64
	files   []string

	grid    *raster.Grid // center bathymetry with invalid mask
	flexure *raster.Grid // TMD3 only
	atlas   *otis.AtlasGrid
}

func newSource(m model.Model, dir string, o Options) (*source, error) {
	s := &source{m: m, dir: dir, typ: o.Type, spacing: o.AtlasSpacing}
	if o.Type == Heights {
		s.files = m.Elevation
	} else {
		s.files = m.Transport
	}
	if len(s.files) == 0 {
		return nil, fmt.Errorf("model %s: no files for variable %q: %w", m.Name, o.Type, model.ErrVariable)
	}
	if err := s.readGrid(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *source) path(rel string) string {
	return filepath.Join(s.dir, filepath.Clean(rel))
}

func (s *source) readGrid() error {
	switch s.m.Format {
	case model.FormatOTIS:
		g, err := otis.ReadGrid(s.path(s.m.GridFile))
		if err != nil {
			return err
		}
		s.grid = g.Bathymetry
		s.grid.Mask = invertWet(g.WetMask)
	case model.FormatATLAS:
		ag, err := otis.ReadAtlasGrid(s.path(s.m.GridFile))
		if err != nil {
			return err
		}
		s.atlas = ag
		s.grid = otis.CombineAtlasGrid(ag.Bathymetry, ag.Locals, s.spacing)
		wet, _, _ := otis.AtlasMask(ag, s.spacing)
		s.grid.Mask = invertWet(wet)
	case model.FormatTMD3:
		g, err := tmd3.ReadGrid(s.path(s.m.GridFile))
		if err != nil {
			return err
		}
		s.grid = g.Bathymetry
		s.grid.Mask = invertWet(g.WetMask)
		s.flexure = g.Flexure
	default:
		return fmt.Errorf("model %s: unknown format %q", s.m.Name, s.m.Format)
	}
	return nil
}

// constituents lists the constituent ids of the model files.
func (s *source) constituents() ([]string, error) {
	if s.m.Format == model.FormatTMD3 {
		return tmd3.ReadConstituents(s.path(s.files[0]))
	}
	if len(s.files) > 1 {
		// one single-constituent file per constituent
		ids := make([]string, len(s.files))
		for i, f := range s.files {
			fileIDs, err := otis.ReadConstituents(s.path(f))
			if err != nil {
				return nil, err
			}
			ids[i] = fileIDs[len(fileIDs)-1]
		}
		return ids, nil
	}
	return otis.ReadConstituents(s.path(s.files[0]))
}

// field reads the complex harmonic field of the i-th constituent on the
// full model grid, with the grid coordinates attached.
func (s *source) field(i int, id string, applyFlexure bool) (*raster.ComplexGrid, error) {
	var hc *raster.ComplexGrid
	switch s.m.Format {
	case model.FormatATLAS:
		var err error
		hc, err = s.atlasField(i, id)
		if err != nil {
			return nil, err
		}
	case model.FormatTMD3:
		v := tmd3.Elevation
		if s.typ.isZonal() {
			v = tmd3.TransportU
		} else if s.typ.isMeridional() {
			v = tmd3.TransportV
		}
		var err error
		hc, err = tmd3.ReadConstituent(s.path(s.files[0]), i, v)
		if err != nil {
			return nil, err
		}
		if applyFlexure && s.typ == Heights && s.flexure != nil {
			applyFlexureScale(hc, s.flexure)
		}
	default:
		file, ic := s.files[0], i
		if len(s.files) > 1 {
			file, ic = s.files[i], 0
		}
		var err error
		if s.typ == Heights {
			hc, err = otis.ReadElevation(s.path(file), ic)
		} else {
			var u, v *raster.ComplexGrid
			u, v, err = otis.ReadTransport(s.path(file), ic)
			if s.typ.isZonal() {
				hc = u
			} else {
				hc = v
			}
		}
		if err != nil {
			return nil, err
		}
	}
	hc.X = s.grid.X
	hc.Y = s.grid.Y
	return hc, nil
}

func (s *source) atlasField(i int, id string) (*raster.ComplexGrid, error) {
	path := s.path(s.files[0])
	coarse := s.atlas.Bathymetry
	if s.typ == Heights {
		z0, locals, err := otis.ReadAtlasElevation(path, i, id)
		if err != nil {
			return nil, err
		}
		z0.X, z0.Y = coarse.X, coarse.Y
		return otis.CombineAtlas(z0, locals, s.spacing, func(l otis.AtlasLocal) *raster.ComplexGrid { return l.Z }), nil
	}
	u0, v0, locals, err := otis.ReadAtlasTransport(path, i, id)
	if err != nil {
		return nil, err
	}
	g0, pick := u0, func(l otis.AtlasLocal) *raster.ComplexGrid { return l.U }
	if s.typ.isMeridional() {
		g0, pick = v0, func(l otis.AtlasLocal) *raster.ComplexGrid { return l.V }
	}
	g0.X, g0.Y = coarse.X, coarse.Y
	return otis.CombineAtlas(g0, locals, s.spacing, pick), nil
}

func invertWet(wet []bool) []bool {
	out := make([]bool, len(wet))
	for k, w := range wet {
		out[k] = !w
	}
	return out
}

func applyFlexureScale(hc *raster.ComplexGrid, sf *raster.Grid) {
	for k := range hc.Data {
		if k >= len(sf.Data) {
			return
		}
		hc.Data[k] *= complex(sf.Data[k], 0)
		if sf.Mask[k] {
			hc.Mask[k] = true
		}
	}
}

// prepared carries the sampled domain plus the crop window needed to
// bring each constituent field onto it.
type prepared struct {
	domain
	crop    bool
	bounds  raster.Bounds
	buffer  float64
	global  bool
	shifted bool
}

// prepare builds the sampling domain for the variable: crop to the
// buffered bounds, wrap global grids, and move masks and bathymetry to
// the u or v nodes for current variables.
func prepare(grid *raster.Grid, o Options, geographic bool, x, y []float64) (*prepared, error) {
	p := &prepared{}
	p.geographic = geographic

	dx := raster.Step(grid.X)
	dy := raster.Step(grid.Y)
	work := grid

	// without explicit bounds there is nothing to crop to
	if o.Crop && o.Bounds == nil && len(x) == 0 {
		o.Crop = false
	}
	if o.Crop {
		b := raster.Bounds{}
		if o.Bounds != nil {
			b = *o.Bounds
		} else {
			b = pointBounds(x, y)
		}
		buffer := o.Buffer
		if buffer == 0 {
			buffer = 4 * dx
		}
		cropped, err := work.Crop(b, buffer, geographic)
		if err != nil {
			return nil, fmt.Errorf("tide: crop: %w", err)
		}
		work = cropped
		p.crop, p.bounds, p.buffer = true, b, buffer
	}

	p.global = raster.IsGlobal(work.X, geographic)

	xi := append([]float64(nil), work.X...)
	yi := append([]float64(nil), work.Y...)
	var node *raster.Grid
	switch {
	case o.Type.isZonal():
		hu, _ := raster.UVNodes(work, p.global)
		mu, _ := raster.UVMasks(work, p.global)
		node = nodeGrid(hu, mu)
		for i := range xi {
			xi[i] -= dx / 2.0
		}
		p.shifted = true
	case o.Type.isMeridional():
		_, hv := raster.UVNodes(work, p.global)
		_, mv := raster.UVMasks(work, p.global)
		node = nodeGrid(hv, mv)
		for i := range yi {
			yi[i] -= dy / 2.0
		}
		p.shifted = true
	default:
		node = &raster.Grid{X: work.X, Y: work.Y, Data: work.Data, Mask: centerMask(work)}
	}

	if p.global {
		ext := (&raster.Grid{X: node.X, Y: node.Y, Data: node.Data, Mask: node.Mask}).ExtendX()
		node = ext
		xi = raster.ExtendVector(xi, dx)
	}

	p.x = xi
	p.y = yi
	p.bathymetry = node.Data
	p.mask = node.Mask
	return p, nil
}

// fit crops and extends a constituent field to match the prepared
// domain, and folds the domain mask into it.
func (p *prepared) fit(hc *raster.ComplexGrid) (*raster.ComplexGrid, error) {
	if p.crop {
		cropped, err := hc.Crop(p.bounds, p.buffer, p.geographic)
		if err != nil {
			return nil, fmt.Errorf("tide: crop constituent: %w", err)
		}
		hc = cropped
	}
	if p.global {
		hc = hc.ExtendX()
	}
	return hc, nil
}

// centerMask marks invalid cells on the elevation nodes: land cells and
// zero depth.
func centerMask(g *raster.Grid) []bool {
	out := make([]bool, len(g.Data))
	for k, v := range g.Data {
		out[k] = v == 0 || (k < len(g.Mask) && g.Mask[k])
	}
	return out
}

// nodeGrid folds a node wet mask into a node bathymetry grid.
func nodeGrid(h *raster.Grid, wet []bool) *raster.Grid {
	mask := make([]bool, len(h.Data))
	for k, v := range h.Data {
		mask[k] = v == 0 || !wet[k]
	}
	return &raster.Grid{X: h.X, Y: h.Y, Data: h.Data, Mask: mask}
}

func pointBounds(x, y []float64) raster.Bounds {
	b := raster.Bounds{XMin: x[0], XMax: x[0], YMin: y[0], YMax: y[0]}
	for p := range x {
		if x[p] < b.XMin {
			b.XMin = x[p]
		}
		if x[p] > b.XMax {
			b.XMax = x[p]
		}
		if y[p] < b.YMin {
			b.YMin = y[p]
		}
		if y[p] > b.YMax {
			b.YMax = y[p]
		}
	}
	return b
}

// ExtractConstants reads a model's files and evaluates the harmonic
// constants of every constituent at the given geographic points.
func ExtractConstants(ctx context.Context, m model.Model, dir string, lon, lat []float64, opts Options) (*Constants, error) {
	o := opts.withDefaults()
	if len(lon) != len(lat) {
		return nil, fmt.Errorf("%d longitudes, %d latitudes: %w", len(lon), len(lat), ErrPoints)
	}
	if _, err := ParseType(string(o.Type)); err != nil {
		return nil, err
	}

	src, err := newSource(m, dir, o)
	if err != nil {
		return nil, err
	}
	projection, err := m.CRS()
	if err != nil {
		return nil, err
	}
	x, y := crs.ForwardAll(projection, lon, lat)

	p, err := prepare(src.grid, o, projection.IsGeographic(), x, y)
	if err != nil {
		return nil, err
	}
	if !p.crop {
		p.fitConvention(x)
	} else if p.geographic {
		// points may still use the 0:360 convention
		for i, v := range x {
			if v > p.x[len(p.x)-1] && v > 180 {
				x[i] = v - 360.0
			}
		}
	}
	outside := p.outside(x, y)

	depth, depthMask, err := p.depthAt(o.Method, x, y)
	if err != nil {
		return nil, err
	}

	ids, err := src.constituents()
	if err != nil {
		return nil, err
	}

	out := &Constants{
		Constituents: ids,
		Amplitude:    make([][]float64, len(ids)),
		Phase:        make([][]float64, len(ids)),
		Mask:         make([][]bool, len(ids)),
		Depth:        depth,
		DepthMask:    depthMask,
	}

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
			amp, phase, mask, err := constituentAt(&p.domain, hc, o, x, y, depth, depthMask, outside)
			if err != nil {
				return fmt.Errorf("constituent %s: %w", id, err)
			}
			out.Amplitude[i] = amp
			out.Phase[i] = phase
			out.Mask[i] = mask
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
