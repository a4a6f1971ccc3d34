// SPDX-License-Identifier: MIT

package model

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

//go:embed database.json
var builtinDatabase []byte

// Database maps model names to their definitions.
type Database struct {
	Models map[string]Model `json:"models"`
}

// LoadDatabase returns the built-in model database.
func LoadDatabase() (*Database, error) {
	db := &Database{}
	if err := json.Unmarshal(builtinDatabase, db); err != nil {
		return nil, fmt.Errorf("model: builtin database: %w", err)
	}
	if err := db.init(); err != nil {
		return nil, err
	}
	return db, nil
}

// LoadDatabaseFrom reads the built-in database and overlays definitions
// from the given JSON files, in order. Later files win on name clashes.
func LoadDatabaseFrom(paths ...string) (*Database, error) {
	db, err := LoadDatabase()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("model: read database %s: %w", path, err)
		}
		var extra Database
		if err := json.Unmarshal(raw, &extra); err != nil {
			return nil, fmt.Errorf("model: database %s: %w", path, err)
		}
		for name, m := range extra.Models {
			if m.Name == "" {
				m.Name = name
			}
			db.Models[name] = m
		}
	}
	if err := db.init(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) init() error {
	if db.Models == nil {
		db.Models = make(map[string]Model)
	}
	for name, m := range db.Models {
		if m.Name == "" {
			m.Name = name
			db.Models[name] = m
		}
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the model names in sorted order.
func (db *Database) Names() []string {
	out := make([]string, 0, len(db.Models))
	for name := range db.Models {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get returns the named model.
func (db *Database) Get(name string) (Model, error) {
	m, ok := db.Models[name]
	if !ok {
		return Model{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return m, nil
}

// Elevation returns the named model if it provides tidal heights.
func (db *Database) Elevation(name string) (Model, error) {
	m, err := db.Get(name)
	if err != nil {
		return Model{}, err
	}
	if len(m.Elevation) == 0 {
		return Model{}, fmt.Errorf("%q has no elevation files: %w", name, ErrVariable)
	}
	return m, nil
}

// Current returns the named model if it provides tidal transports.
func (db *Database) Current(name string) (Model, error) {
	m, err := db.Get(name)
	if err != nil {
		return Model{}, err
	}
	if len(m.Transport) == 0 {
		return Model{}, fmt.Errorf("%q has no transport files: %w", name, ErrVariable)
	}
	return m, nil
}
