// SPDX-License-Identifier: MIT

package tmd3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRows2DPromotesIntegerMasks(t *testing.T) {
	rows, err := rows2d([][]int8{{0, 1}, {1, 1}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {1, 1}}, rows)

	rows, err = rows2d([][]float32{{1.5, 2.5}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.5, 2.5}}, rows)

	_, err = rows2d("not a matrix")
	require.ErrorIs(t, err, ErrFormat)
}

func TestLayers3D(t *testing.T) {
	layers, err := layers3d([][][]float32{
		{{1, 2}, {3, 4}},
		{{5, 6}, {7, 8}},
	})
	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.Equal(t, [][]float64{{5, 6}, {7, 8}}, layers[1])

	_, err = layers3d([]float64{1, 2})
	require.ErrorIs(t, err, ErrFormat)
}

func TestReverse(t *testing.T) {
	v := []float64{1, 2, 3, 4}
	reverse(v)
	assert.Equal(t, []float64{4, 3, 2, 1}, v)
}

func TestReadConstituentRejectsUnknownVariable(t *testing.T) {
	_, err := ReadConstituent("/nonexistent", 0, Variable("w"))
	require.ErrorIs(t, err, ErrFormat)
}

func TestReadGridMissingFile(t *testing.T) {
	_, err := ReadGrid("/nonexistent/grid.nc")
	require.Error(t, err)
}
