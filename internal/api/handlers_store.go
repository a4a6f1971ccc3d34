// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidecast/tidecast/internal/interp"
	"github.com/tidecast/tidecast/internal/metrics"
	"github.com/tidecast/tidecast/internal/tide"
)

type primeRequest struct {
	Model string `json:"model"`
	Type  string `json:"type"`
}

// handlePrime reads a model's constituent fields once and persists
// them, so later interpolation requests skip the model files entirely.
func (s *Server) handlePrime(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "store_disabled", "constants store is not configured")
		return
	}
	var req primeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	cfg := s.holder.Current()
	m, err := s.database().Get(req.Model)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	typ, err := tide.ParseType(req.Type)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	start := time.Now()
	set, err := tide.ReadConstants(r.Context(), m, cfg.Models.Directory, tide.Options{
		Type:         typ,
		Concurrency:  cfg.Models.Concurrency,
		ApplyFlexure: m.Flexure,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.Put(r.Context(), m.Name, string(typ), set); err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.ModelRead(string(m.Format))
	s.logger.Info().
		Str("model", m.Name).
		Str("type", string(typ)).
		Int("constituents", set.Len()).
		Dur("duration", time.Since(start)).
		Msg("constants primed")
	writeJSON(w, http.StatusOK, map[string]any{
		"model":        m.Name,
		"type":         string(typ),
		"constituents": set.Fields(),
	})
}

// handleListPrimed lists the persisted constituent sets.
func (s *Server) handleListPrimed(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "store_disabled", "constants store is not configured")
		return
	}
	entries, err := s.store.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"primed": entries})
}

type interpolateRequest struct {
	Model       string    `json:"model"`
	Type        string    `json:"type"`
	Lon         []float64 `json:"lon"`
	Lat         []float64 `json:"lat"`
	Method      string    `json:"method,omitempty"`
	Extrapolate bool      `json:"extrapolate,omitempty"`
	CutoffKm    float64   `json:"cutoff_km,omitempty"`
}

// handleInterpolate evaluates harmonic constants from a primed set.
func (s *Server) handleInterpolate(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "store_disabled", "constants store is not configured")
		return
	}
	cfg := s.holder.Current()

	var req interpolateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, cfg.Server.MaxRequestBytes)).Decode(&req); err != nil {
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
	typ, err := tide.ParseType(req.Type)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	method := req.Method
	if method == "" {
		method = cfg.Models.Method
	}
	if _, err := interp.ParseMethod(method); err != nil {
		writeError(w, http.StatusBadRequest, "unknown_method", err.Error())
		return
	}

	set, err := s.store.Get(r.Context(), req.Model, string(typ))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	opts := tide.Options{
		Type:        typ,
		Method:      interp.Method(method),
		Extrapolate: req.Extrapolate,
		CutoffKm:    req.CutoffKm,
	}
	if opts.CutoffKm == 0 {
		opts.CutoffKm = cfg.Models.CutoffKm
	}
	c, err := tide.InterpolateConstants(req.Lon, req.Lat, set, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, buildConstantsResponse(req.Model, string(typ), len(req.Lon), c))
}
