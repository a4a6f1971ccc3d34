// SPDX-License-Identifier: MIT

package raster

// UVMasks derives the u- and v-node water masks of an Arakawa C-grid from
// the center bathymetry. A node is wet (true) only when both adjacent
// centers are wet. Columns wrap when the grid is global, rows are
// edge-padded.
func UVMasks(hz *Grid, global bool) (mu, mv []bool) {
	nx, ny := hz.Nx(), hz.Ny()
	mz := make([]bool, nx*ny)
	for k, v := range hz.Data {
		mz[k] = v > 0
	}
	return maskNodes(mz, ny, nx, global)
}

func maskNodes(mz []bool, ny, nx int, global bool) (mu, mv []bool) {
	mu = make([]bool, ny*nx)
	mv = make([]bool, ny*nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			left := i - 1
			if left < 0 {
				if global {
					left = nx - 1
				} else {
					left = 0
				}
			}
			mu[j*nx+i] = mz[j*nx+i] && mz[j*nx+left]
			below := j - 1
			if below < 0 {
				below = 0
			}
			mv[j*nx+i] = mz[j*nx+i] && mz[below*nx+i]
		}
	}
	return mu, mv
}

// UVNodes interpolates the center bathymetry to the u and v nodes of an
// Arakawa C-grid: half the sum of the adjacent centers where the node is
// wet, zero elsewhere.
func UVNodes(hz *Grid, global bool) (hu, hv *Grid) {
	nx, ny := hz.Nx(), hz.Ny()
	mu, mv := UVMasks(hz, global)
	hu = NewGrid(hz.X, hz.Y)
	hv = NewGrid(hz.X, hz.Y)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			left := i - 1
			if left < 0 {
				if global {
					left = nx - 1
				} else {
					left = 0
				}
			}
			if mu[j*nx+i] {
				hu.Data[j*nx+i] = 0.5 * (hz.At(j, i) + hz.At(j, left))
			}
			below := j - 1
			if below < 0 {
				below = 0
			}
			if mv[j*nx+i] {
				hv.Data[j*nx+i] = 0.5 * (hz.At(j, i) + hz.At(below, i))
			}
		}
	}
	return hu, hv
}
