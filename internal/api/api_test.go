// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidecast/tidecast/internal/cache"
	"github.com/tidecast/tidecast/internal/config"
	"github.com/tidecast/tidecast/internal/model"
	"github.com/tidecast/tidecast/internal/otis"
	"github.com/tidecast/tidecast/internal/raster"
	"github.com/tidecast/tidecast/internal/stations"
	"github.com/tidecast/tidecast/internal/store"
)

// testEnv bundles a server over a synthetic one-constituent OTIS model
// covering 0..10E, 50..55N with uniform depth 100 and m2 = 1-1i.
type testEnv struct {
	srv     *Server
	handler http.Handler
	cache   cache.Cache
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	x := make([]float64, 10)
	for i := range x {
		x[i] = 0.5 + float64(i)
	}
	y := make([]float64, 5)
	for j := range y {
		y[j] = 50.5 + float64(j)
	}
	bath := raster.NewGrid(x, y)
	wet := make([]bool, len(bath.Data))
	h := raster.NewComplexGrid(x, y)
	for k := range bath.Data {
		bath.Data[k] = 100.0
		wet[k] = true
		h.Data[k] = 1 - 1i
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "demo"), 0o755))
	require.NoError(t, otis.WriteGrid(filepath.Join(dir, "demo", "grid"),
		&otis.Grid{Bathymetry: bath, WetMask: wet, TimeStep: 12.0}))
	require.NoError(t, otis.WriteElevation(filepath.Join(dir, "demo", "h"),
		[]string{"m2"}, []*raster.ComplexGrid{h}))

	db := &model.Database{Models: map[string]model.Model{
		"demo": {
			Name:      "demo",
			Format:    model.FormatOTIS,
			GridFile:  "demo/grid",
			Elevation: []string{"demo/h"},
		},
	}}

	cfg := config.Default()
	cfg.Models.Directory = dir
	cfg.Server.RateLimit = 0 // no limiter in tests

	reg, err := stations.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, reg.Close()) })

	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })

	c := cache.NewMemory(0)
	t.Cleanup(func() { require.NoError(t, c.Close()) })

	srv := New(Options{
		Holder:   config.NewHolder(cfg, ""),
		Database: db,
		Cache:    c,
		Store:    st,
		Stations: reg,
	})
	return &testEnv{srv: srv, handler: srv.Router(false), cache: c, dir: dir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestReadyz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	e.srv.SetReady(false)
	rec = e.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListModels(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Models []modelSummary `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Models, 1)
	assert.Equal(t, "demo", out.Models[0].Name)
	assert.Equal(t, []string{"z"}, out.Models[0].Variables)
}

func TestGetModel(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/models/demo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Available bool `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Available)

	rec = e.do(t, http.MethodGet, "/api/v1/models/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConstantsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/constants", constantsRequest{
		Model: "demo",
		Type:  "z",
		Lon:   []float64{3.0, 5.0},
		Lat:   []float64{52.0, 80.0}, // second point is outside the domain
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Constituents []string `json:"constituents"`
		Results      []struct {
			Constituent string     `json:"constituent"`
			Amplitude   []*float64 `json:"amplitude"`
			Phase       []*float64 `json:"phase"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, []string{"m2"}, out.Constituents)
	require.Len(t, out.Results, 1)
	require.NotNil(t, out.Results[0].Amplitude[0])
	assert.InDelta(t, math.Sqrt2, *out.Results[0].Amplitude[0], 1e-5)
	assert.InDelta(t, 45.0, *out.Results[0].Phase[0], 1e-4)
	assert.Nil(t, out.Results[0].Amplitude[1])
	assert.Nil(t, out.Results[0].Phase[1])
}

func TestConstantsEndpointCaches(t *testing.T) {
	e := newTestEnv(t)
	req := constantsRequest{Model: "demo", Type: "z", Lon: []float64{3}, Lat: []float64{52}}

	first := e.do(t, http.MethodPost, "/api/v1/constants", req)
	require.Equal(t, http.StatusOK, first.Code)
	second := e.do(t, http.MethodPost, "/api/v1/constants", req)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.GreaterOrEqual(t, e.cache.Stats().Hits, int64(1))
}

func TestConstantsEndpointRejectsBadRequests(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/constants", constantsRequest{
		Model: "demo", Type: "z", Lon: []float64{1, 2}, Lat: []float64{1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/constants", constantsRequest{
		Model: "nope", Type: "z", Lon: []float64{1}, Lat: []float64{1},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/constants", constantsRequest{
		Model: "demo", Type: "w", Lon: []float64{1}, Lat: []float64{1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/constants", bytes.NewReader([]byte("{")))
	rec2 := httptest.NewRecorder()
	e.handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestStationLifecycle(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/stations/", stations.Station{
		Name: "buoy-1", Longitude: 3, Latitude: 52, Model: "demo",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[stations.Station](t, rec)
	require.NotEmpty(t, created.ID)

	rec = e.do(t, http.MethodGet, "/api/v1/stations/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/stations/"+created.ID+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/stations/"+created.ID+"/constants?type=z", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Constants constantsResponse `json:"constants"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Constants.Results, 1)
	assert.InDelta(t, math.Sqrt2, out.Constants.Results[0].Amplitude[0], 1e-5)

	created.Name = "buoy-renamed"
	rec = e.do(t, http.MethodPut, "/api/v1/stations/"+created.ID+"/", created)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buoy-renamed", decode[stations.Station](t, rec).Name)

	rec = e.do(t, http.MethodDelete, "/api/v1/stations/"+created.ID+"/", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/v1/stations/"+created.ID+"/", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateStationRejectsUnknownModel(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/stations/", stations.Station{
		Name: "x", Model: "nope",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrimeAndInterpolate(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/interpolate", interpolateRequest{
		Model: "demo", Type: "z", Lon: []float64{3}, Lat: []float64{52},
	})
	require.Equal(t, http.StatusNotFound, rec.Code) // not primed yet

	rec = e.do(t, http.MethodPost, "/api/v1/prime", primeRequest{Model: "demo", Type: "z"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/v1/primed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var primed struct {
		Primed []store.Entry `json:"primed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &primed))
	assert.Equal(t, []store.Entry{{Model: "demo", Variable: "z"}}, primed.Primed)

	rec = e.do(t, http.MethodPost, "/api/v1/interpolate", interpolateRequest{
		Model: "demo", Type: "z", Lon: []float64{3}, Lat: []float64{52},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[constantsResponse](t, rec)
	require.Len(t, resp.Results, 1)
	assert.InDelta(t, math.Sqrt2, resp.Results[0].Amplitude[0], 1e-5)
	assert.InDelta(t, 45.0, resp.Results[0].Phase[0], 1e-4)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tidecast_http_request_duration_seconds")
}

func TestRateLimit(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Models.Directory = dir
	cfg.Server.RateLimit = 2
	cfg.Server.RateWindow = time.Minute

	srv := New(Options{
		Holder:   config.NewHolder(cfg, ""),
		Database: &model.Database{Models: map[string]model.Model{}},
	})
	handler := srv.Router(false)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.1.2.3:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
