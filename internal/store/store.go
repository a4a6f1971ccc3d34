// SPDX-License-Identifier: MIT

// Package store persists constituent sets produced by ReadConstants so
// that interpolation requests can be served without re-reading model
// files.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/tidecast/tidecast/internal/constituents"
)

// ErrNotFound is returned when no constituent set is stored for the
// requested model and variable.
var ErrNotFound = errors.New("store: not found")

const prefix = "const:"

// Store is a badger-backed constituent set store.
type Store struct {
	db *badger.DB
}

// Open opens the store at dir. An empty dir opens an in-memory store
// that does not survive a restart.
func Open(dir string) (*Store, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func key(model, variable string) []byte {
	return []byte(prefix + model + ":" + variable)
}

// Put stores the constituent set for a model variable, replacing any
// previous one.
func (s *Store) Put(ctx context.Context, model, variable string, set *constituents.Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", model, variable, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(model, variable), buf)
	})
}

// Get loads the constituent set stored for a model variable.
func (s *Store) Get(ctx context.Context, model, variable string) (*constituents.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var set constituents.Set
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(model, variable))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &set)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", model, variable, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", model, variable, err)
	}
	return &set, nil
}

// Delete removes the stored set for a model variable. Deleting an
// absent key is not an error.
func (s *Store) Delete(ctx context.Context, model, variable string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(model, variable))
	})
}

// Entry identifies one stored constituent set.
type Entry struct {
	Model    string `json:"model"`
	Variable string `json:"variable"`
}

// List enumerates the stored sets, sorted by model then variable.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := strings.TrimPrefix(string(it.Item().Key()), prefix)
			model, variable, ok := strings.Cut(k, ":")
			if !ok {
				continue
			}
			out = append(out, Entry{Model: model, Variable: variable})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].Variable < out[j].Variable
	})
	return out, nil
}
