// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus instruments the service
// exposes on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tidecast_extraction_duration_seconds",
		Help:    "Harmonic constant extraction latencies in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"model", "variable", "outcome"})

	extractionPoints = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tidecast_extraction_points",
		Help:    "Number of points per extraction request",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"model"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tidecast_cache_lookups_total",
		Help: "Constants cache lookups by result",
	}, []string{"result"})

	modelFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tidecast_model_reads_total",
		Help: "Model file reads by format",
	}, []string{"format"})

	stationCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tidecast_stations",
		Help: "Number of registered stations",
	})
)

// ObserveExtraction records one extraction request.
func ObserveExtraction(model, variable string, points int, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	extractionDuration.WithLabelValues(model, variable, outcome).Observe(d.Seconds())
	if err == nil {
		extractionPoints.WithLabelValues(model).Observe(float64(points))
	}
}

// CacheHit counts a constants cache hit.
func CacheHit() { cacheLookups.WithLabelValues("hit").Inc() }

// CacheMiss counts a constants cache miss.
func CacheMiss() { cacheLookups.WithLabelValues("miss").Inc() }

// ModelRead counts one model file read by format.
func ModelRead(format string) { modelFiles.WithLabelValues(format).Inc() }

// SetStationCount updates the registered station gauge.
func SetStationCount(n int) { stationCount.Set(float64(n)) }
