// SPDX-License-Identifier: MIT

// Package stations keeps a registry of named observation sites at
// which harmonic constants are repeatedly evaluated.
package stations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go driver
)

// ErrNotFound is returned when a station id is not in the registry.
var ErrNotFound = errors.New("stations: not found")

const schemaVersion = 1

// Station is one registered observation site.
type Station struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Longitude float64   `json:"longitude"`
	Latitude  float64   `json:"latitude"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is a sqlite-backed station store.
type Registry struct {
	db *sql.DB
}

// Open opens (and migrates) the registry at path. An empty path keeps
// the registry in memory.
func Open(path string) (*Registry, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	maxConns := 25
	if path == "" {
		// a shared in-memory database lives as long as one connection holds it
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
		maxConns = 1
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("stations: open: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("stations: ping: %w", err)
	}
	r := &Registry{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("stations: migrate: %w", err)
	}
	return r, nil
}

func (r *Registry) migrate() error {
	var version int
	if err := r.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version >= schemaVersion {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const schema = `
	CREATE TABLE IF NOT EXISTS stations (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		longitude  REAL NOT NULL,
		latitude   REAL NOT NULL,
		model      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stations_name ON stations(name);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the registry database.
func (r *Registry) Close() error { return r.db.Close() }

// Create registers a station. The id and timestamps are assigned here;
// the returned station carries them.
func (r *Registry) Create(ctx context.Context, st Station) (Station, error) {
	st.ID = uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)
	st.CreatedAt, st.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stations (id, name, longitude, latitude, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Longitude, st.Latitude, st.Model,
		st.CreatedAt.Format(time.RFC3339), st.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return Station{}, fmt.Errorf("stations: create: %w", err)
	}
	return st, nil
}

// Get looks a station up by id.
func (r *Registry) Get(ctx context.Context, id string) (Station, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, longitude, latitude, model, created_at, updated_at
		 FROM stations WHERE id = ?`, id)
	return scanStation(row)
}

// List returns every station ordered by name.
func (r *Registry) List(ctx context.Context) ([]Station, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, longitude, latitude, model, created_at, updated_at
		 FROM stations ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("stations: list: %w", err)
	}
	defer rows.Close()

	var out []Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Update replaces the mutable fields of a station.
func (r *Registry) Update(ctx context.Context, st Station) (Station, error) {
	st.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`UPDATE stations SET name = ?, longitude = ?, latitude = ?, model = ?, updated_at = ?
		 WHERE id = ?`,
		st.Name, st.Longitude, st.Latitude, st.Model,
		st.UpdatedAt.Format(time.RFC3339), st.ID)
	if err != nil {
		return Station{}, fmt.Errorf("stations: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Station{}, err
	}
	if n == 0 {
		return Station{}, fmt.Errorf("%s: %w", st.ID, ErrNotFound)
	}
	return r.Get(ctx, st.ID)
}

// Delete removes a station.
func (r *Registry) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("stations: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStation(row scanner) (Station, error) {
	var st Station
	var created, updated string
	err := row.Scan(&st.ID, &st.Name, &st.Longitude, &st.Latitude, &st.Model, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Station{}, ErrNotFound
	}
	if err != nil {
		return Station{}, fmt.Errorf("stations: scan: %w", err)
	}
	st.CreatedAt, _ = time.Parse(time.RFC3339, created)
	st.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return st, nil
}
