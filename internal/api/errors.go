// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tidecast/tidecast/internal/model"
	"github.com/tidecast/tidecast/internal/stations"
	"github.com/tidecast/tidecast/internal/store"
	"github.com/tidecast/tidecast/internal/tide"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, detail string) {
	writeJSON(w, code, errorBody{Error: kind, Detail: detail})
}

// writeDomainError maps service errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "model_not_found", err.Error())
	case errors.Is(err, stations.ErrNotFound):
		writeError(w, http.StatusNotFound, "station_not_found", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_primed", err.Error())
	case errors.Is(err, model.ErrVariable):
		writeError(w, http.StatusBadRequest, "unknown_variable", err.Error())
	case errors.Is(err, tide.ErrType):
		writeError(w, http.StatusBadRequest, "unknown_type", err.Error())
	case errors.Is(err, tide.ErrPoints):
		writeError(w, http.StatusBadRequest, "invalid_points", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
