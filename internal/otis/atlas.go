// SPDX-License-Identifier: MIT

package otis

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/tidecast/tidecast/internal/interp"
	"github.com/tidecast/tidecast/internal/raster"
)

// DefaultAtlasSpacing is the 2 arc-minute grid the ATLAS local solutions
// are defined on.
const DefaultAtlasSpacing = 1.0 / 30.0

// AtlasLocal is one embedded local refinement solution. Exactly one of
// Depth (grid files), Z (elevation files) or U/V (transport files) is
// populated, as a dense masked matrix covering the local domain.
type AtlasLocal struct {
	Name   string
	LatLim [2]float64
	LonLim [2]float64
	Depth  *raster.Grid
	Z      *raster.ComplexGrid
	U, V   *raster.ComplexGrid
}

// AtlasGrid is the contents of an ATLAS-compact grid file: the coarse
// global solution plus local refinements.
type AtlasGrid struct {
	Grid
	PMask  []int32
	Locals []AtlasLocal
}

// ReadAtlasGrid reads an ATLAS-compact grid file.
func ReadAtlasGrid(path string) (*AtlasGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("otis: open atlas grid: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("otis: stat atlas grid: %w", err)
	}
	g, err := readAtlasGrid(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("otis: atlas grid %s: %w", path, err)
	}
	return g, nil
}

func readAtlasGrid(r io.ReadSeeker, size int64) (*AtlasGrid, error) {
	b := &reader{r: r}
	b.skip(4)
	nx := b.i32("nx")
	ny := b.i32("ny")
	lats := b.f32s("lat limits", 2)
	lons := b.f32s("lon limits", 2)
	dt := b.f32("dt")
	if b.err != nil {
		return nil, b.err
	}
	if err := checkDims(nx, ny, 0); err != nil {
		return nil, err
	}
	x := linspaceCenters(lons[0], lons[1], nx)
	y := linspaceCenters(lats[0], lats[1], ny)

	nob := b.i32("nob")
	var iob [][2]int32
	if nob == 0 {
		b.skip(20)
	} else {
		b.skip(8)
		flat := b.i32s("iob", int(2*nob))
		b.skip(8)
		if b.err == nil {
			iob = make([][2]int32, nob)
			for i := range iob {
				iob[i] = [2]int32{flat[2*i], flat[2*i+1]}
			}
		}
	}

	hz := b.f32s("hz", int(nx*ny))
	b.skip(8)
	mz := b.i32s("mz", int(nx*ny))
	b.skip(8)
	pmask := b.i32s("pmask", int(nx*ny))
	b.skip(4)
	if b.err != nil {
		return nil, b.err
	}

	bath := raster.NewGrid(x, y)
	wet := make([]bool, nx*ny)
	for k := range hz {
		bath.Data[k] = float64(hz[k])
		wet[k] = mz[k] != 0
	}
	out := &AtlasGrid{
		Grid: Grid{
			Bathymetry: bath,
			WetMask:    wet,
			Boundary:   iob,
			TimeStep:   float64(dt),
		},
		PMask: pmask,
	}

	// local refinement solutions until end of file
	for pos, _ := r.Seek(0, io.SeekCurrent); pos < size; pos, _ = r.Seek(0, io.SeekCurrent) {
		b.skip(4)
		nx1 := b.i32("local nx")
		ny1 := b.i32("local ny")
		nd := b.i32("local nd")
		lt1 := b.f32s("local lat limits", 2)
		ln1 := b.f32s("local lon limits", 2)
		name := b.bytes("local name", 20)
		b.skip(8)
		iz := b.i32s("local iz", int(nd))
		jz := b.i32s("local jz", int(nd))
		b.skip(8)
		depths := b.f32s("local depth", int(nd))
		b.skip(4)
		if b.err != nil {
			return nil, b.err
		}
		if err := checkDims(nx1, ny1, 0); err != nil {
			return nil, err
		}
		depth := &raster.Grid{
			X:    make([]float64, nx1),
			Y:    make([]float64, ny1),
			Data: make([]float64, int(nx1)*int(ny1)),
			Mask: make([]bool, int(nx1)*int(ny1)),
		}
		for k := range depth.Mask {
			depth.Mask[k] = true
		}
		for k := 0; k < int(nd); k++ {
			idx := (int(jz[k])-1)*int(nx1) + int(iz[k]) - 1
			if idx < 0 || idx >= len(depth.Data) {
				return nil, fmt.Errorf("local index (%d,%d): %w", iz[k], jz[k], ErrFormat)
			}
			depth.Data[idx] = float64(depths[k])
			depth.Mask[idx] = false
		}
		out.Locals = append(out.Locals, AtlasLocal{
			Name:   strings.TrimSpace(strings.Trim(string(name), "\x00 ")),
			LatLim: [2]float64{float64(lt1[0]), float64(lt1[1])},
			LonLim: [2]float64{float64(ln1[0]), float64(ln1[1])},
			Depth:  depth,
		})
	}
	return out, nil
}

// ReadAtlasElevation reads the global elevation field of the ic-th
// constituent plus every local solution carrying constituent id.
func ReadAtlasElevation(path string, ic int, id string) (*raster.ComplexGrid, []AtlasLocal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("otis: open atlas elevation: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("otis: stat atlas elevation: %w", err)
	}
	h, locals, err := readAtlasElevation(f, info.Size(), ic, id)
	if err != nil {
		return nil, nil, fmt.Errorf("otis: atlas elevation %s: %w", path, err)
	}
	return h, locals, nil
}

func readAtlasElevation(r io.ReadSeeker, size int64, ic int, id string) (*raster.ComplexGrid, []AtlasLocal, error) {
	b := &reader{r: r}
	b.i32("ll")
	nx := b.i32("nx")
	ny := b.i32("ny")
	nc := b.i32("nc")
	b.skip(16)
	if b.err != nil {
		return nil, nil, b.err
	}
	if err := checkDims(nx, ny, nc); err != nil {
		return nil, nil, err
	}
	if ic < 0 || ic >= int(nc) {
		return nil, nil, fmt.Errorf("constituent index %d of %d: %w", ic, nc, ErrFormat)
	}
	b.skip(8 + int64(nc)*4 + int64(ic)*(int64(nx)*int64(ny)*8+8))

	h := &raster.ComplexGrid{
		Data: make([]complex128, int(nx)*int(ny)),
		Mask: make([]bool, int(nx)*int(ny)),
	}
	for j := 0; j < int(ny); j++ {
		row := b.f32s("elevation row", 2*int(nx))
		if b.err != nil {
			return nil, nil, b.err
		}
		for i := 0; i < int(nx); i++ {
			h.Data[j*int(nx)+i] = complex(float64(row[2*i]), float64(row[2*i+1]))
		}
	}
	b.skip((int64(nc)-int64(ic)-1)*(int64(nx)*int64(ny)*8+8) + 4)

	var locals []AtlasLocal
	for pos, _ := r.Seek(0, io.SeekCurrent); pos < size; pos, _ = r.Seek(0, io.SeekCurrent) {
		b.skip(4)
		nx1 := b.i32("local nx")
		ny1 := b.i32("local ny")
		nc1 := b.i32("local nc")
		nz := b.i32("local nz")
		b.count("local nz", int(nz))
		lt1 := b.f32s("local lat limits", 2)
		ln1 := b.f32s("local lon limits", 2)
		cons := strings.Fields(string(b.bytes("local constituents", int(nc1)*4)))
		if b.err != nil {
			return nil, nil, b.err
		}
		ic1 := -1
		for i, c := range cons {
			if c == id {
				ic1 = i
				break
			}
		}
		if ic1 < 0 {
			b.skip(40 + 16*int64(nz) + (int64(nc1)-1)*(8*int64(nz)+8))
			continue
		}
		if err := checkDims(nx1, ny1, nc1); err != nil {
			return nil, nil, err
		}
		name := b.bytes("local name", 20)
		b.skip(8)
		iz := b.i32s("local iz", int(nz))
		jz := b.i32s("local jz", int(nz))
		b.skip(8 + int64(ic1)*(8*int64(nz)+8))
		vals := b.f32s("local elevation", 2*int(nz))
		b.skip((int64(nc1)-int64(ic1)-1)*(8*int64(nz)+8) + 4)
		if b.err != nil {
			return nil, nil, b.err
		}
		z := &raster.ComplexGrid{
			X:    make([]float64, nx1),
			Y:    make([]float64, ny1),
			Data: make([]complex128, int(nx1)*int(ny1)),
			Mask: make([]bool, int(nx1)*int(ny1)),
		}
		for k := range z.Mask {
			z.Mask[k] = true
		}
		for k := 0; k < int(nz); k++ {
			idx := (int(jz[k])-1)*int(nx1) + int(iz[k]) - 1
			if idx < 0 || idx >= len(z.Data) {
				return nil, nil, fmt.Errorf("local index (%d,%d): %w", iz[k], jz[k], ErrFormat)
			}
			z.Data[idx] = complex(float64(vals[2*k]), float64(vals[2*k+1]))
			z.Mask[idx] = false
		}
		locals = append(locals, AtlasLocal{
			Name:   strings.TrimSpace(strings.Trim(string(name), "\x00 ")),
			LatLim: [2]float64{float64(lt1[0]), float64(lt1[1])},
			LonLim: [2]float64{float64(ln1[0]), float64(ln1[1])},
			Z:      z,
		})
	}
	return h, locals, nil
}

// ReadAtlasTransport reads the global transport fields of the ic-th
// constituent plus every local solution carrying constituent id.
func ReadAtlasTransport(path string, ic int, id string) (u, v *raster.ComplexGrid, locals []AtlasLocal, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("otis: open atlas transport: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("otis: stat atlas transport: %w", err)
	}
	u, v, locals, err = readAtlasTransport(f, info.Size(), ic, id)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("otis: atlas transport %s: %w", path, err)
	}
	return u, v, locals, nil
}

func readAtlasTransport(r io.ReadSeeker, size int64, ic int, id string) (*raster.ComplexGrid, *raster.ComplexGrid, []AtlasLocal, error) {
	b := &reader{r: r}
	b.i32("ll")
	nx := b.i32("nx")
	ny := b.i32("ny")
	nc := b.i32("nc")
	b.skip(16)
	if b.err != nil {
		return nil, nil, nil, b.err
	}
	if err := checkDims(nx, ny, nc); err != nil {
		return nil, nil, nil, err
	}
	if ic < 0 || ic >= int(nc) {
		return nil, nil, nil, fmt.Errorf("constituent index %d of %d: %w", ic, nc, ErrFormat)
	}
	b.skip(8 + int64(nc)*4 + int64(ic)*(int64(nx)*int64(ny)*16+8))

	n := int(nx) * int(ny)
	u := &raster.ComplexGrid{Data: make([]complex128, n), Mask: make([]bool, n)}
	v := &raster.ComplexGrid{Data: make([]complex128, n), Mask: make([]bool, n)}
	for j := 0; j < int(ny); j++ {
		row := b.f32s("transport row", 4*int(nx))
		if b.err != nil {
			return nil, nil, nil, b.err
		}
		for i := 0; i < int(nx); i++ {
			idx := j*int(nx) + i
			u.Data[idx] = complex(float64(row[4*i]), float64(row[4*i+1]))
			v.Data[idx] = complex(float64(row[4*i+2]), float64(row[4*i+3]))
		}
	}
	b.skip((int64(nc)-int64(ic)-1)*(int64(nx)*int64(ny)*16+8) + 4)

	var locals []AtlasLocal
	for pos, _ := r.Seek(0, io.SeekCurrent); pos < size; pos, _ = r.Seek(0, io.SeekCurrent) {
		b.skip(4)
		nx1 := b.i32("local nx")
		ny1 := b.i32("local ny")
		nc1 := b.i32("local nc")
		nu := b.i32("local nu")
		nv := b.i32("local nv")
		b.count("local nu", int(nu))
		b.count("local nv", int(nv))
		lt1 := b.f32s("local lat limits", 2)
		ln1 := b.f32s("local lon limits", 2)
		cons := strings.Fields(string(b.bytes("local constituents", int(nc1)*4)))
		if b.err != nil {
			return nil, nil, nil, b.err
		}
		ic1 := -1
		for i, c := range cons {
			if c == id {
				ic1 = i
				break
			}
		}
		if ic1 < 0 {
			b.skip(56 + 16*int64(nu) + 16*int64(nv) + (int64(nc1)-1)*(8*int64(nu)+8*int64(nv)+16))
			continue
		}
		if err := checkDims(nx1, ny1, nc1); err != nil {
			return nil, nil, nil, err
		}
		name := b.bytes("local name", 20)
		b.skip(8)
		iu := b.i32s("local iu", int(nu))
		ju := b.i32s("local ju", int(nu))
		b.skip(8)
		iv := b.i32s("local iv", int(nv))
		jv := b.i32s("local jv", int(nv))
		b.skip(8 + int64(ic1)*(8*int64(nu)+8*int64(nv)+16))
		uvals := b.f32s("local u", 2*int(nu))
		b.skip(8)
		vvals := b.f32s("local v", 2*int(nv))
		b.skip((int64(nc1)-int64(ic1)-1)*(8*int64(nu)+8*int64(nv)+16) + 4)
		if b.err != nil {
			return nil, nil, nil, b.err
		}
		lu := sparseComplex(int(nx1), int(ny1), iu, ju, uvals)
		lv := sparseComplex(int(nx1), int(ny1), iv, jv, vvals)
		if lu == nil || lv == nil {
			return nil, nil, nil, fmt.Errorf("local transport indices out of range: %w", ErrFormat)
		}
		locals = append(locals, AtlasLocal{
			Name:   strings.TrimSpace(strings.Trim(string(name), "\x00 ")),
			LatLim: [2]float64{float64(lt1[0]), float64(lt1[1])},
			LonLim: [2]float64{float64(ln1[0]), float64(ln1[1])},
			U:      lu,
			V:      lv,
		})
	}
	return u, v, locals, nil
}

func sparseComplex(nx, ny int, ii, jj []int32, vals []float32) *raster.ComplexGrid {
	g := &raster.ComplexGrid{
		X:    make([]float64, nx),
		Y:    make([]float64, ny),
		Data: make([]complex128, nx*ny),
		Mask: make([]bool, nx*ny),
	}
	for k := range g.Mask {
		g.Mask[k] = true
	}
	for k := range ii {
		idx := (int(jj[k])-1)*nx + int(ii[k]) - 1
		if idx < 0 || idx >= len(g.Data) {
			return nil
		}
		g.Data[idx] = complex(float64(vals[2*k]), float64(vals[2*k+1]))
		g.Mask[idx] = false
	}
	return g
}

// atlasAxes builds the high-resolution global axes for the given spacing.
func atlasAxes(spacing float64) (xs, ys []float64) {
	nxs := int(math.Round(360.0 / spacing))
	nys := int(math.Round(180.0 / spacing))
	xs = make([]float64, nxs)
	for i := range xs {
		xs[i] = spacing/2.0 + float64(i)*spacing
	}
	ys = make([]float64, nys)
	for i := range ys {
		ys[i] = -90.0 + spacing/2.0 + float64(i)*spacing
	}
	return xs, ys
}

// InterpolateAtlas resamples a global ATLAS field onto the
// high-resolution grid with a bivariate linear spline.
func InterpolateAtlas(g *raster.ComplexGrid, spacing float64) *raster.ComplexGrid {
	xs, ys := atlasAxes(spacing)
	out := raster.NewComplexGrid(xs, ys)
	px := make([]float64, len(xs))
	empty := make([]bool, len(g.Data))
	for j, yv := range ys {
		py := make([]float64, len(xs))
		for i := range xs {
			px[i] = xs[i]
			py[i] = yv
		}
		vals, _ := interp.Spline(g.X, g.Y, g.Data, empty, px, py)
		copy(out.Data[j*len(xs):(j+1)*len(xs)], vals)
	}
	return out
}

// InterpolateAtlasGrid resamples a real-valued global ATLAS field onto
// the high-resolution grid.
func InterpolateAtlasGrid(g *raster.Grid, spacing float64) *raster.Grid {
	xs, ys := atlasAxes(spacing)
	out := raster.NewGrid(xs, ys)
	px := make([]float64, len(xs))
	empty := make([]bool, len(g.Data))
	for j, yv := range ys {
		py := make([]float64, len(xs))
		for i := range xs {
			px[i] = xs[i]
			py[i] = yv
		}
		vals, _ := interp.Spline(g.X, g.Y, g.Data, empty, px, py)
		copy(out.Data[j*len(xs):(j+1)*len(xs)], vals)
	}
	return out
}

// localWindow computes the high-resolution indices covered by a local
// solution with the given dense dimensions.
func localWindow(l AtlasLocal, nx, ny int, spacing float64, xs, ys []float64) (cols, rows []int) {
	lon0 := math.Floor(l.LonLim[0]/spacing) * spacing
	lat0 := math.Floor(l.LatLim[0]/spacing) * spacing
	cols = make([]int, nx)
	for i := 0; i < nx; i++ {
		x := lon0 + float64(i)*spacing
		if x <= 0 {
			x += 360.0
		}
		cols[i] = int((x - xs[0]) / spacing)
	}
	rows = make([]int, ny)
	for j := 0; j < ny; j++ {
		rows[j] = int((lat0 + float64(j)*spacing - ys[0]) / spacing)
	}
	return cols, rows
}

// CombineAtlasGrid overlays local bathymetry solutions onto the
// resampled global bathymetry.
func CombineAtlasGrid(g *raster.Grid, locals []AtlasLocal, spacing float64) *raster.Grid {
	out := InterpolateAtlasGrid(g, spacing)
	nxs := out.Nx()
	for _, l := range locals {
		if l.Depth == nil {
			continue
		}
		nx, ny := l.Depth.Nx(), l.Depth.Ny()
		cols, rows := localWindow(l, nx, ny, spacing, out.X, out.Y)
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				if l.Depth.Mask[j*nx+i] {
					continue
				}
				ii, jj := cols[i], rows[j]
				if ii < 0 || ii >= nxs || jj < 0 || jj >= out.Ny() {
					continue
				}
				out.Data[jj*nxs+ii] = l.Depth.Data[j*nx+i]
			}
		}
	}
	return out
}

// CombineAtlas overlays local harmonic solutions onto the resampled
// global field. pick selects the local field to use (Z, U or V).
func CombineAtlas(g *raster.ComplexGrid, locals []AtlasLocal, spacing float64, pick func(AtlasLocal) *raster.ComplexGrid) *raster.ComplexGrid {
	out := InterpolateAtlas(g, spacing)
	nxs := out.Nx()
	for _, l := range locals {
		f := pick(l)
		if f == nil {
			continue
		}
		nx, ny := f.Nx(), f.Ny()
		cols, rows := localWindow(l, nx, ny, spacing, out.X, out.Y)
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				if f.Mask[j*nx+i] {
					continue
				}
				ii, jj := cols[i], rows[j]
				if ii < 0 || ii >= nxs || jj < 0 || jj >= out.Ny() {
					continue
				}
				out.Data[jj*nxs+ii] = f.Data[j*nx+i]
			}
		}
	}
	return out
}

// AtlasMask builds the high-resolution wet mask: nearest-neighbour
// resampling of the coarse mask with local solutions forced wet.
func AtlasMask(g *AtlasGrid, spacing float64) (wet []bool, xs, ys []float64) {
	xs, ys = atlasAxes(spacing)
	nx, ny := g.Bathymetry.Nx(), g.Bathymetry.Ny()
	xi, yi := g.Bathymetry.X, g.Bathymetry.Y
	wet = make([]bool, len(xs)*len(ys))
	for j, yv := range ys {
		fy := (float64(ny-1)) * (yv - yi[0]) / (yi[ny-1] - yi[0])
		jy := int(math.Round(math.Min(math.Max(fy, 0), float64(ny-1))))
		for i, xv := range xs {
			fx := (float64(nx-1)) * (xv - xi[0]) / (xi[nx-1] - xi[0])
			ix := int(math.Round(math.Min(math.Max(fx, 0), float64(nx-1))))
			wet[j*len(xs)+i] = g.WetMask[jy*nx+ix]
		}
	}
	for _, l := range g.Locals {
		if l.Depth == nil {
			continue
		}
		nx1, ny1 := l.Depth.Nx(), l.Depth.Ny()
		cols, rows := localWindow(l, nx1, ny1, spacing, xs, ys)
		for j := 0; j < ny1; j++ {
			for i := 0; i < nx1; i++ {
				if l.Depth.Mask[j*nx1+i] {
					continue
				}
				ii, jj := cols[i], rows[j]
				if ii < 0 || ii >= len(xs) || jj < 0 || jj >= len(ys) {
					continue
				}
				wet[jj*len(xs)+ii] = true
			}
		}
	}
	return wet, xs, ys
}
