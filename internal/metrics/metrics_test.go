// SPDX-License-Identifier: MIT

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveExtraction(t *testing.T) {
	before := testutil.CollectAndCount(extractionDuration)
	ObserveExtraction("CATS2008", "z", 10, 50*time.Millisecond, nil)
	ObserveExtraction("CATS2008", "z", 10, 50*time.Millisecond, errors.New("boom"))
	assert.Equal(t, before+2, testutil.CollectAndCount(extractionDuration))
}

func TestCacheCounters(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	CacheHit()
	CacheHit()
	CacheMiss()
	assert.Equal(t, hits+2, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))
}

func TestStationGauge(t *testing.T) {
	SetStationCount(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(stationCount))
}
