// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/tidecast/tidecast/internal/cache"
	"github.com/tidecast/tidecast/internal/interp"
	"github.com/tidecast/tidecast/internal/metrics"
	"github.com/tidecast/tidecast/internal/raster"
	"github.com/tidecast/tidecast/internal/stations"
	"github.com/tidecast/tidecast/internal/telemetry"
	"github.com/tidecast/tidecast/internal/tide"
)

// jsonFloats encodes NaN as null, which encoding/json cannot.
type jsonFloats []float64

func (f jsonFloats) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(f)*8+2)
	buf = append(buf, '[')
	for i, v := range f {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, "null"...)
		} else {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			buf = append(buf, b...)
		}
	}
	return append(buf, ']'), nil
}

func (f *jsonFloats) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	*f = out
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "service is shutting down")
		return
	}
	dir := s.holder.Current().Models.Directory
	if _, err := os.Stat(dir); err != nil {
		writeError(w, http.StatusServiceUnavailable, "model_dir_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type modelSummary struct {
	Name        string   `json:"name"`
	Format      string   `json:"format"`
	Description string   `json:"description,omitempty"`
	Reference   string   `json:"reference,omitempty"`
	Variables   []string `json:"variables"`
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	db := s.database()
	names := db.Names()
	out := make([]modelSummary, 0, len(names))
	for _, name := range names {
		m, err := db.Get(name)
		if err != nil {
			continue
		}
		vars := []string{}
		if len(m.Elevation) > 0 {
			vars = append(vars, "z")
		}
		if len(m.Transport) > 0 {
			vars = append(vars, "u", "v", "U", "V")
		}
		out = append(out, modelSummary{
			Name:        m.Name,
			Format:      string(m.Format),
			Description: m.Description,
			Reference:   m.Reference,
			Variables:   vars,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m, err := s.database().Get(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	available := m.Verify(s.holder.Current().Models.Directory) == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"model":     m,
		"available": available,
	})
}

type constantsRequest struct {
	Model       string    `json:"model"`
	Type        string    `json:"type"`
	Lon         []float64 `json:"lon"`
	Lat         []float64 `json:"lat"`
	Method      string    `json:"method,omitempty"`
	Crop        bool      `json:"crop,omitempty"`
	Bounds      []float64 `json:"bounds,omitempty"` // xmin, xmax, ymin, ymax
	Extrapolate bool      `json:"extrapolate,omitempty"`
	CutoffKm    float64   `json:"cutoff_km,omitempty"`
}

type constituentResult struct {
	Constituent string     `json:"constituent"`
	Amplitude   jsonFloats `json:"amplitude"`
	Phase       jsonFloats `json:"phase"`
}

type constantsResponse struct {
	Model        string              `json:"model"`
	Type         string              `json:"type"`
	Constituents []string            `json:"constituents"`
	Depth        jsonFloats          `json:"depth"`
	Results      []constituentResult `json:"results"`
}

func (s *Server) handleConstants(w http.ResponseWriter, r *http.Request) {
	cfg := s.holder.Current()

	var req constantsRequest
	body := http.MaxBytesReader(w, r.Body, cfg.Server.MaxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if len(req.Lon) == 0 || len(req.Lon) != len(req.Lat) {
		writeError(w, http.StatusBadRequest, "invalid_points",
			fmt.Sprintf("%d longitudes, %d latitudes", len(req.Lon), len(req.Lat)))
		return
	}
	if len(req.Lon) > cfg.Models.MaxPoints {
		writeError(w, http.StatusBadRequest, "too_many_points",
			fmt.Sprintf("request carries %d points, limit is %d", len(req.Lon), cfg.Models.MaxPoints))
		return
	}

	resp, status, err := s.extract(r, req, cfg.Models.Directory)
	if err != nil {
		if status == 0 {
			writeDomainError(w, err)
			return
		}
		writeError(w, status, "extraction_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// extract runs one extraction request through the cache and the tide
// package.
func (s *Server) extract(r *http.Request, req constantsRequest, dir string) (*constantsResponse, int, error) {
	cfg := s.holder.Current()
	m, err := s.database().Get(req.Model)
	if err != nil {
		return nil, 0, err
	}

	method := req.Method
	if method == "" {
		method = cfg.Models.Method
	}
	if _, err := interp.ParseMethod(method); err != nil {
		return nil, http.StatusBadRequest, err
	}
	typ, err := tide.ParseType(req.Type)
	if err != nil {
		return nil, 0, err
	}

	variant := fmt.Sprintf("%s|crop=%t|bounds=%v|extrap=%t|cutoff=%g",
		method, req.Crop, req.Bounds, req.Extrapolate, req.CutoffKm)
	key := cache.Key(m.Name, string(typ), variant, req.Lon, req.Lat)
	if payload, ok := s.cache.Get(key); ok {
		metrics.CacheHit()
		var resp constantsResponse
		if err := json.Unmarshal(payload, &resp); err == nil {
			return &resp, 0, nil
		}
	}
	metrics.CacheMiss()

	ctx, span := telemetry.Tracer("api").Start(r.Context(), "tide.extract_constants",
		trace.WithAttributes(telemetry.ExtractionAttributes(
			m.Name, string(m.Format), string(typ), method, len(req.Lon))...))
	defer span.End()

	opts := tide.Options{
		Type:         typ,
		Method:       interp.Method(method),
		Crop:         req.Crop,
		Extrapolate:  req.Extrapolate,
		CutoffKm:     req.CutoffKm,
		Concurrency:  cfg.Models.Concurrency,
		ApplyFlexure: m.Flexure,
	}
	if opts.CutoffKm == 0 {
		opts.CutoffKm = cfg.Models.CutoffKm
	}
	if len(req.Bounds) == 4 {
		opts.Bounds = &raster.Bounds{
			XMin: req.Bounds[0], XMax: req.Bounds[1],
			YMin: req.Bounds[2], YMax: req.Bounds[3],
		}
		opts.Crop = true
	}

	start := time.Now()
	c, err := tide.ExtractConstants(ctx, m, dir, req.Lon, req.Lat, opts)
	metrics.ObserveExtraction(m.Name, string(typ), len(req.Lon), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	metrics.ModelRead(string(m.Format))
	span.SetAttributes(telemetry.ConstituentAttributes(c.Constituents)...)

	resp := buildConstantsResponse(m.Name, string(typ), len(req.Lon), c)

	if payload, err := json.Marshal(resp); err == nil {
		s.cache.Set(key, payload, cfg.Cache.TTL)
	}
	return resp, 0, nil
}

// buildConstantsResponse converts extraction output to the wire shape,
// with masked points encoded as null.
func buildConstantsResponse(model, typ string, points int, c *tide.Constants) *constantsResponse {
	resp := &constantsResponse{
		Model:        model,
		Type:         typ,
		Constituents: c.Constituents,
		Depth:        c.Depth,
		Results:      make([]constituentResult, len(c.Constituents)),
	}
	for i, id := range c.Constituents {
		amp := make([]float64, points)
		ph := make([]float64, points)
		for p := range amp {
			if c.Mask[i][p] {
				amp[p] = math.NaN()
				ph[p] = math.NaN()
			} else {
				amp[p] = c.Amplitude[i][p]
				ph[p] = c.Phase[i][p]
			}
		}
		resp.Results[i] = constituentResult{Constituent: id, Amplitude: amp, Phase: ph}
	}
	return resp
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.holder.Reload(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "reload_failed", err.Error())
		return
	}
	if s.reloadDB != nil {
		db, err := s.reloadDB()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "reload_failed", err.Error())
			return
		}
		s.dbMu.Lock()
		s.db = db
		s.dbMu.Unlock()
	}
	s.cache.Clear()
	s.logger.Info().Msg("configuration and model database reloaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	if s.stations == nil {
		writeError(w, http.StatusNotImplemented, "stations_disabled", "station registry is not configured")
		return
	}
	list, err := s.stations.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.SetStationCount(len(list))
	writeJSON(w, http.StatusOK, map[string]any{"stations": list})
}

func (s *Server) handleCreateStation(w http.ResponseWriter, r *http.Request) {
	if s.stations == nil {
		writeError(w, http.StatusNotImplemented, "stations_disabled", "station registry is not configured")
		return
	}
	var st stations.Station
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if st.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_station", "name must not be empty")
		return
	}
	if st.Model != "" {
		if _, err := s.database().Get(st.Model); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	created, err := s.stations.Create(r.Context(), st)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	if s.stations == nil {
		writeError(w, http.StatusNotImplemented, "stations_disabled", "station registry is not configured")
		return
	}
	st, err := s.stations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateStation(w http.ResponseWriter, r *http.Request) {
	if s.stations == nil {
		writeError(w, http.StatusNotImplemented, "stations_disabled", "station registry is not configured")
		return
	}
	var st stations.Station
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	st.ID = chi.URLParam(r, "id")
	updated, err := s.stations.Update(r.Context(), st)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteStation(w http.ResponseWriter, r *http.Request) {
	if s.stations == nil {
		writeError(w, http.StatusNotImplemented, "stations_disabled", "station registry is not configured")
		return
	}
	if err := s.stations.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStationConstants evaluates harmonic constants at a registered
// station. The model comes from the query or the station record.
func (s *Server) handleStationConstants(w http.ResponseWriter, r *http.Request) {
	if s.stations == nil {
		writeError(w, http.StatusNotImplemented, "stations_disabled", "station registry is not configured")
		return
	}
	st, err := s.stations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	modelName := r.URL.Query().Get("model")
	if modelName == "" {
		modelName = st.Model
	}
	if modelName == "" {
		writeError(w, http.StatusBadRequest, "missing_model", "station has no model and none was given")
		return
	}
	req := constantsRequest{
		Model:       modelName,
		Type:        r.URL.Query().Get("type"),
		Lon:         []float64{st.Longitude},
		Lat:         []float64{st.Latitude},
		Method:      r.URL.Query().Get("method"),
		Extrapolate: r.URL.Query().Get("extrapolate") == "true",
	}
	resp, status, err := s.extract(r, req, s.holder.Current().Models.Directory)
	if err != nil {
		if status == 0 {
			writeDomainError(w, err)
			return
		}
		writeError(w, status, "extraction_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"station":   st,
		"constants": resp,
	})
}
