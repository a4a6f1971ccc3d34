// SPDX-License-Identifier: MIT

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemory(0)
	defer func() { require.NoError(t, c.Close()) }()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []byte("payload"), time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemory(0)
	defer func() { require.NoError(t, c.Close()) }()

	c.Set("k", []byte("v"), -time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCacheDeleteClear(t *testing.T) {
	c := NewMemory(0)
	defer func() { require.NoError(t, c.Close()) }()

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	c.Clear()
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestMemoryCacheJanitor(t *testing.T) {
	c := NewMemory(10 * time.Millisecond).(*memoryCache)
	defer func() { require.NoError(t, c.Close()) }()

	c.Set("k", []byte("v"), time.Millisecond)
	assert.Eventually(t, func() bool {
		return c.Stats().CurrentSize == 0
	}, time.Second, 10*time.Millisecond)
}

func TestNoopCache(t *testing.T) {
	c := NewNoop()
	c.Set("k", []byte("v"), time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
	require.NoError(t, c.Close())
}

func TestKeyIsStableAndSensitive(t *testing.T) {
	a := Key("CATS2008", "z", "spline", []float64{1, 2}, []float64{3, 4})
	b := Key("CATS2008", "z", "spline", []float64{1, 2}, []float64{3, 4})
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, Key("CATS2008", "u", "spline", []float64{1, 2}, []float64{3, 4}))
	assert.NotEqual(t, a, Key("CATS2008", "z", "spline", []float64{1, 2.0000001}, []float64{3, 4}))
	assert.NotEqual(t, a, Key("TPXO9.1", "z", "spline", []float64{1, 2}, []float64{3, 4}))
}
