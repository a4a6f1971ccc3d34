// SPDX-License-Identifier: MIT

// Package model is the registry of tide models: which format a named
// model is stored in, where its grid and constituent files live and how
// its coordinates map to geographic space.
package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidecast/tidecast/internal/crs"
)

var (
	// ErrNotFound is returned when a model name is not in the database.
	ErrNotFound = errors.New("model: not found")
	// ErrVariable is returned when a model does not provide the
	// requested variable kind.
	ErrVariable = errors.New("model: variable not available")
	// ErrUnsafePath is returned when a model references a file outside
	// the model directory.
	ErrUnsafePath = errors.New("model: file path escapes model directory")
)

// Format identifies the on-disk structure of a model.
type Format string

const (
	FormatOTIS  Format = "OTIS"
	FormatATLAS Format = "ATLAS"
	FormatTMD3  Format = "TMD3"
)

// Valid reports whether the format is one the readers understand.
func (f Format) Valid() bool {
	switch f {
	case FormatOTIS, FormatATLAS, FormatTMD3:
		return true
	}
	return false
}

// Model describes one tide model. File paths are relative to the model
// directory. Elevation lists the constituent files for tidal heights;
// for multi-file OTIS models there is one file per constituent.
// Transport lists the files for the zonal and meridional transports.
type Model struct {
	Name        string   `json:"name"`
	Format      Format   `json:"format"`
	Description string   `json:"description,omitempty"`
	Reference   string   `json:"reference,omitempty"`
	Projection  string   `json:"projection,omitempty"`
	GridFile    string   `json:"grid_file"`
	Elevation   []string `json:"elevation_files,omitempty"`
	Transport   []string `json:"transport_files,omitempty"`
	Flexure     bool     `json:"flexure,omitempty"`
}

// CRS builds the coordinate reference system for the model grid.
func (m Model) CRS() (crs.CRS, error) {
	return crs.Parse(m.Projection)
}

// Files returns every file the model references.
func (m Model) Files() []string {
	out := make([]string, 0, 1+len(m.Elevation)+len(m.Transport))
	if m.GridFile != "" {
		out = append(out, m.GridFile)
	}
	out = append(out, m.Elevation...)
	out = append(out, m.Transport...)
	return out
}

// Validate checks the model definition for structural problems.
func (m Model) Validate() error {
	if m.Name == "" {
		return errors.New("model: empty name")
	}
	if !m.Format.Valid() {
		return fmt.Errorf("model %s: unknown format %q", m.Name, m.Format)
	}
	if m.GridFile == "" && m.Format != FormatTMD3 {
		return fmt.Errorf("model %s: no grid file", m.Name)
	}
	if len(m.Elevation) == 0 && len(m.Transport) == 0 {
		return fmt.Errorf("model %s: no constituent files", m.Name)
	}
	if _, err := m.CRS(); err != nil {
		return fmt.Errorf("model %s: %w", m.Name, err)
	}
	for _, p := range m.Files() {
		if !filepath.IsLocal(p) {
			return fmt.Errorf("model %s: %q: %w", m.Name, p, ErrUnsafePath)
		}
	}
	return nil
}

// Verify checks that every referenced file exists under dir.
func (m Model) Verify(dir string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	for _, p := range m.Files() {
		full := filepath.Join(dir, filepath.Clean(p))
		st, err := os.Stat(full)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("model %s: missing file %s: %w", m.Name, p, err)
		}
		if err != nil {
			return fmt.Errorf("model %s: stat %s: %w", m.Name, p, err)
		}
		if st.IsDir() {
			return fmt.Errorf("model %s: %s is a directory", m.Name, p)
		}
	}
	return nil
}
