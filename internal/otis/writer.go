// SPDX-License-Identifier: MIT

package otis

import (
	"bufio"
	"fmt"

	"github.com/google/renameio/v2"

	"github.com/tidecast/tidecast/internal/raster"
)

// edges recovers the grid-cell edge limits from cell-center coordinates.
func edges(v []float64) [2]float32 {
	if len(v) < 2 {
		return [2]float32{float32(v[0]), float32(v[0])}
	}
	step := v[1] - v[0]
	return [2]float32{float32(v[0] - step/2), float32(v[len(v)-1] + step/2)}
}

// WriteGrid writes an OTIS-format grid file atomically.
func WriteGrid(path string, g *Grid) error {
	pf, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("otis: write grid: %w", err)
	}
	defer pf.Cleanup()

	bw := bufio.NewWriter(pf)
	w := &writer{w: bw}
	nx, ny := g.Bathymetry.Nx(), g.Bathymetry.Ny()
	ylim := edges(g.Bathymetry.Y)
	xlim := edges(g.Bathymetry.X)
	nob := int32(len(g.Boundary))

	w.put(int32(32))
	w.put(int32(nx))
	w.put(int32(ny))
	w.put(ylim[0])
	w.put(ylim[1])
	w.put(xlim[0])
	w.put(xlim[1])
	w.put(float32(g.TimeStep))
	w.put(nob)
	w.put(int32(32))
	if nob == 0 {
		w.put(int32(4))
		w.put(int32(0))
		w.put(int32(4))
	} else {
		w.put(8 * nob)
		for _, p := range g.Boundary {
			w.put(p[0])
			w.put(p[1])
		}
		w.put(8 * nob)
	}
	reclen := int32(4 * nx * ny)
	w.put(reclen)
	for k := 0; k < nx*ny; k++ {
		w.put(float32(g.Bathymetry.Data[k]))
	}
	w.put(reclen)
	w.put(reclen)
	for k := 0; k < nx*ny; k++ {
		var m int32
		if g.WetMask[k] {
			m = 1
		}
		w.put(m)
	}
	w.put(reclen)
	if w.err != nil {
		return fmt.Errorf("otis: write grid: %w", w.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("otis: write grid: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("otis: write grid: %w", err)
	}
	return nil
}

// WriteElevation writes an OTIS-format elevation file atomically. The
// fields slice holds one complex field per constituent id; masked cells
// are written as zero.
func WriteElevation(path string, ids []string, fields []*raster.ComplexGrid) error {
	if len(ids) != len(fields) || len(fields) == 0 {
		return fmt.Errorf("otis: write elevation: %d ids for %d fields", len(ids), len(fields))
	}
	pf, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("otis: write elevation: %w", err)
	}
	defer pf.Cleanup()

	bw := bufio.NewWriter(pf)
	w := &writer{w: bw}
	nx, ny := fields[0].Nx(), fields[0].Ny()
	writeConstituentHeader(w, nx, ny, ids, fields[0])

	reclen := int32(8 * nx * ny)
	for _, f := range fields {
		if f.Nx() != nx || f.Ny() != ny {
			return fmt.Errorf("otis: write elevation: field dimensions differ")
		}
		w.put(reclen)
		for k := 0; k < nx*ny; k++ {
			re, im := realParts(f, k)
			w.put(re)
			w.put(im)
		}
		w.put(reclen)
	}
	if w.err != nil {
		return fmt.Errorf("otis: write elevation: %w", w.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("otis: write elevation: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("otis: write elevation: %w", err)
	}
	return nil
}

// WriteTransport writes an OTIS-format transport file atomically, with
// zonal and meridional fields interleaved per row.
func WriteTransport(path string, ids []string, u, v []*raster.ComplexGrid) error {
	if len(ids) != len(u) || len(u) != len(v) || len(u) == 0 {
		return fmt.Errorf("otis: write transport: %d ids for %d/%d fields", len(ids), len(u), len(v))
	}
	pf, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("otis: write transport: %w", err)
	}
	defer pf.Cleanup()

	bw := bufio.NewWriter(pf)
	w := &writer{w: bw}
	nx, ny := u[0].Nx(), u[0].Ny()
	writeConstituentHeader(w, nx, ny, ids, u[0])

	reclen := int32(16 * nx * ny)
	for ic := range u {
		if u[ic].Nx() != nx || u[ic].Ny() != ny || v[ic].Nx() != nx || v[ic].Ny() != ny {
			return fmt.Errorf("otis: write transport: field dimensions differ")
		}
		w.put(reclen)
		for k := 0; k < nx*ny; k++ {
			ur, ui := realParts(u[ic], k)
			vr, vi := realParts(v[ic], k)
			w.put(ur)
			w.put(ui)
			w.put(vr)
			w.put(vi)
		}
		w.put(reclen)
	}
	if w.err != nil {
		return fmt.Errorf("otis: write transport: %w", w.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("otis: write transport: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("otis: write transport: %w", err)
	}
	return nil
}

// writeConstituentHeader emits the shared elevation/transport header:
// dimensions, cell-edge limits and 4-character constituent ids.
func writeConstituentHeader(w *writer, nx, ny int, ids []string, ref *raster.ComplexGrid) {
	nc := len(ids)
	ll := int32(4 * (7 + nc))
	ylim := edges(ref.Y)
	xlim := edges(ref.X)
	w.put(ll)
	w.put(int32(nx))
	w.put(int32(ny))
	w.put(int32(nc))
	w.put(ylim[0])
	w.put(ylim[1])
	w.put(xlim[0])
	w.put(xlim[1])
	for _, id := range ids {
		w.putBytes(padID(id))
	}
	w.put(ll)
}

func padID(id string) []byte {
	b := make([]byte, 4)
	copy(b, id)
	for i := len(id); i < 4; i++ {
		b[i] = ' '
	}
	return b
}

func realParts(f *raster.ComplexGrid, k int) (float32, float32) {
	if f.Mask[k] {
		return 0, 0
	}
	return float32(real(f.Data[k])), float32(imag(f.Data[k]))
}
