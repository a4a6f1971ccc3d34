// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidecast/tidecast/internal/constituents"
	"github.com/tidecast/tidecast/internal/raster"
)

func testSet(t *testing.T) *constituents.Set {
	t.Helper()
	bath := raster.NewGrid([]float64{0.5, 1.5}, []float64{50.5, 51.5})
	for k := range bath.Data {
		bath.Data[k] = 100.0
	}
	bath.Mask = make([]bool, len(bath.Data))
	set := constituents.New(bath.X, bath.Y, bath)

	hc := raster.NewComplexGrid(bath.X, bath.Y)
	for k := range hc.Data {
		hc.Data[k] = 1 - 1i
	}
	set.Append("m2", hc)
	return set
}

func TestStorePutGet(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "CATS2008", "z", testSet(t)))

	got, err := s.Get(ctx, "CATS2008", "z")
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, got.Fields())
	hc, err := got.Get("m2")
	require.NoError(t, err)
	assert.Equal(t, complex(1, -1), hc.Data[0])
}

func TestStoreGetMissing(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	_, err = s.Get(context.Background(), "nope", "z")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeleteAndList(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	ctx := context.Background()
	set := testSet(t)
	require.NoError(t, s.Put(ctx, "TPXO9.1", "z", set))
	require.NoError(t, s.Put(ctx, "CATS2008", "z", set))
	require.NoError(t, s.Put(ctx, "CATS2008", "u", set))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Model: "CATS2008", Variable: "u"},
		{Model: "CATS2008", Variable: "z"},
		{Model: "TPXO9.1", Variable: "z"},
	}, entries)

	require.NoError(t, s.Delete(ctx, "CATS2008", "u"))
	entries, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// deleting an absent key is fine
	require.NoError(t, s.Delete(ctx, "CATS2008", "u"))
}

func TestStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "AOTIM-5-2018", "z", testSet(t)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()
	got, err := s.Get(ctx, "AOTIM-5-2018", "z")
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, got.Fields())
}
