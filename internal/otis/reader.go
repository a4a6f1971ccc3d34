// SPDX-License-Identifier: MIT

package otis

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidecast/tidecast/internal/raster"
)

// Grid holds the contents of an OTIS grid file: model coordinates (cell
// centers), bathymetry with the land/water mask (true = wet, as stored),
// the open-boundary index table and the model time step.
type Grid struct {
	Bathymetry *raster.Grid
	WetMask    []bool // true where the model carries water
	Boundary   [][2]int32
	TimeStep   float64
}

// ReadGrid reads an OTIS grid file.
func ReadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("otis: open grid: %w", err)
	}
	defer f.Close()
	g, err := readGrid(f)
	if err != nil {
		return nil, fmt.Errorf("otis: grid %s: %w", path, err)
	}
	return g, nil
}

func readGrid(r io.ReadSeeker) (*Grid, error) {
	b := &reader{r: r}
	b.skip(4) // leading record marker
	nx := b.i32("nx")
	ny := b.i32("ny")
	ylim := b.f32s("ylim", 2)
	xlim := b.f32s("xlim", 2)
	dt := b.f32("dt")
	if b.err != nil {
		return nil, b.err
	}
	if err := checkDims(nx, ny, 0); err != nil {
		return nil, err
	}
	// models stored with negative longitudes use the 0:360 convention
	if xlim[0] < 0 && xlim[1] < 0 && dt > 0 {
		xlim[0] += 360.0
		xlim[1] += 360.0
	}
	x := linspaceCenters(xlim[0], xlim[1], nx)
	y := linspaceCenters(ylim[0], ylim[1], ny)

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
	if b.err != nil {
		return nil, b.err
	}

	bath := raster.NewGrid(x, y)
	wet := make([]bool, nx*ny)
	for k := range hz {
		bath.Data[k] = float64(hz[k])
		wet[k] = mz[k] != 0
	}
	return &Grid{
		Bathymetry: bath,
		WetMask:    wet,
		Boundary:   iob,
		TimeStep:   float64(dt),
	}, nil
}

// ReadConstituents reads the list of constituent ids from an elevation or
// transport file header.
func ReadConstituents(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("otis: open: %w", err)
	}
	defer f.Close()
	ids, err := readConstituents(f)
	if err != nil {
		return nil, fmt.Errorf("otis: constituents %s: %w", path, err)
	}
	return ids, nil
}

func readConstituents(r io.ReadSeeker) ([]string, error) {
	b := &reader{r: r}
	b.i32("ll")
	nx := b.i32("nx")
	ny := b.i32("ny")
	nc := b.i32("nc")
	b.skip(16) // ylim, xlim
	if b.err != nil {
		return nil, b.err
	}
	if err := checkDims(nx, ny, nc); err != nil {
		return nil, err
	}
	raw := b.bytes("constituent ids", int(nc)*4)
	if b.err != nil {
		return nil, b.err
	}
	ids := strings.Fields(string(raw))
	if len(ids) != int(nc) {
		return nil, fmt.Errorf("%d ids for %d constituents: %w", len(ids), nc, ErrFormat)
	}
	return ids, nil
}

// ReadElevation reads the complex elevation field of the ic-th
// constituent from an OTIS elevation file. The grid coordinates of the
// returned field are left empty; callers attach them from the grid file.
func ReadElevation(path string, ic int) (*raster.ComplexGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("otis: open elevation: %w", err)
	}
	defer f.Close()
	h, err := readElevation(f, ic)
	if err != nil {
		return nil, fmt.Errorf("otis: elevation %s: %w", path, err)
	}
	return h, nil
}

func readElevation(r io.ReadSeeker, ic int) (*raster.ComplexGrid, error) {
	b := &reader{r: r}
	ll := b.i32("ll")
	nx := b.i32("nx")
	ny := b.i32("ny")
	nc := b.i32("nc")
	b.skip(16) // ylim, xlim
	if b.err != nil {
		return nil, b.err
	}
	if err := checkDims(nx, ny, nc); err != nil {
		return nil, err
	}
	if ic < 0 || ic >= int(nc) {
		return nil, fmt.Errorf("constituent index %d of %d: %w", ic, nc, ErrFormat)
	}
	// skip the remainder of the header and earlier constituent records
	b.skip(int64(ic)*(int64(nx)*int64(ny)*8+8) + 8 + int64(ll) - 28)

	h := &raster.ComplexGrid{
		Data: make([]complex128, int(nx)*int(ny)),
		Mask: make([]bool, int(nx)*int(ny)),
	}
	for j := 0; j < int(ny); j++ {
		row := b.f32s("elevation row", 2*int(nx))
		if b.err != nil {
			return nil, b.err
		}
		for i := 0; i < int(nx); i++ {
			re, im := row[2*i], row[2*i+1]
			idx := j*int(nx) + i
			if isNaN32(re) || isNaN32(im) {
				h.Mask[idx] = true
				continue
			}
			h.Data[idx] = complex(float64(re), float64(im))
		}
	}
	return h, nil
}

// ReadTransport reads the complex zonal and meridional transport fields
// of the ic-th constituent from an OTIS transport file.
func ReadTransport(path string, ic int) (u, v *raster.ComplexGrid, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("otis: open transport: %w", err)
	}
	defer f.Close()
	u, v, err = readTransport(f, ic)
	if err != nil {
		return nil, nil, fmt.Errorf("otis: transport %s: %w", path, err)
	}
	return u, v, nil
}

func readTransport(r io.ReadSeeker, ic int) (*raster.ComplexGrid, *raster.ComplexGrid, error) {
	b := &reader{r: r}
	ll := b.i32("ll")
	nx := b.i32("nx")
	ny := b.i32("ny")
	nc := b.i32("nc")
	b.skip(16) // ylim, xlim
	if b.err != nil {
		return nil, nil, b.err
	}
	if err := checkDims(nx, ny, nc); err != nil {
		return nil, nil, err
	}
	if ic < 0 || ic >= int(nc) {
		return nil, nil, fmt.Errorf("constituent index %d of %d: %w", ic, nc, ErrFormat)
	}
	b.skip(int64(ic)*(int64(nx)*int64(ny)*16+8) + 8 + int64(ll) - 28)

	n := int(nx) * int(ny)
	u := &raster.ComplexGrid{Data: make([]complex128, n), Mask: make([]bool, n)}
	v := &raster.ComplexGrid{Data: make([]complex128, n), Mask: make([]bool, n)}
	for j := 0; j < int(ny); j++ {
		row := b.f32s("transport row", 4*int(nx))
		if b.err != nil {
			return nil, nil, b.err
		}
		for i := 0; i < int(nx); i++ {
			idx := j*int(nx) + i
			ur, ui := row[4*i], row[4*i+1]
			vr, vi := row[4*i+2], row[4*i+3]
			if isNaN32(ur) || isNaN32(ui) {
				u.Mask[idx] = true
			} else {
				u.Data[idx] = complex(float64(ur), float64(ui))
			}
			if isNaN32(vr) || isNaN32(vi) {
				v.Mask[idx] = true
			} else {
				v.Data[idx] = complex(float64(vr), float64(vi))
			}
		}
	}
	return u, v, nil
}
