// SPDX-License-Identifier: MIT

package stations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Registry {
	t.Helper()
	r, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, r.Close()) })
	return r
}

func TestCreateAndGet(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	st, err := r.Create(ctx, Station{
		Name:      "Rothera",
		Longitude: -68.13,
		Latitude:  -67.57,
		Model:     "CATS2008",
	})
	require.NoError(t, err)
	require.NotEmpty(t, st.ID)
	assert.False(t, st.CreatedAt.IsZero())

	got, err := r.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestGetMissing(t *testing.T) {
	r := openTest(t)
	_, err := r.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByName(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	for _, name := range []string{"Ny-Alesund", "Barrow", "Mawson"} {
		_, err := r.Create(ctx, Station{Name: name})
		require.NoError(t, err)
	}
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Barrow", list[0].Name)
	assert.Equal(t, "Mawson", list[1].Name)
	assert.Equal(t, "Ny-Alesund", list[2].Name)
}

func TestUpdate(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	st, err := r.Create(ctx, Station{Name: "old", Longitude: 1})
	require.NoError(t, err)

	st.Name = "new"
	st.Longitude = 2
	got, err := r.Update(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, 2.0, got.Longitude)

	_, err = r.Update(ctx, Station{ID: "nope"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	st, err := r.Create(ctx, Station{Name: "gone"})
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, st.ID))
	_, err = r.Get(ctx, st.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.Delete(ctx, st.ID), ErrNotFound)
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.db")
	r, err := Open(path)
	require.NoError(t, err)

	st, err := r.Create(context.Background(), Station{Name: "persisted"})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r, err = Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()
	got, err := r.Get(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}
