// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/tidecast/tidecast/internal/log"
)

// Holder provides thread-safe access to the current configuration and
// supports hot reloading from file, either on demand or driven by a
// filesystem watcher.
type Holder struct {
	mu      sync.RWMutex
	current Config
	path    string
	logger  zerolog.Logger

	listenMu  sync.RWMutex
	listeners []chan<- Config
}

// NewHolder wraps an already-loaded configuration. path is the file
// reloads read from; it may be empty when the configuration came from
// defaults and environment only.
func NewHolder(initial Config, path string) *Holder {
	return &Holder{
		current: initial,
		path:    path,
		logger:  log.WithComponent("config"),
	}
}

// Current returns the configuration in effect.
func (h *Holder) Current() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-reads the configuration from file. On any error the
// previous configuration stays in effect.
func (h *Holder) Reload(_ context.Context) error {
	cfg, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").
			Msg("keeping previous configuration")
		return err
	}
	h.mu.Lock()
	h.current = cfg
	h.mu.Unlock()
	h.logger.Info().Str("event", "config.reloaded").Msg("configuration reloaded")
	h.notify(cfg)
	return nil
}

// Subscribe registers a channel that receives every successfully
// reloaded configuration. Sends are non-blocking; a full channel misses
// the update.
func (h *Holder) Subscribe(ch chan<- Config) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg Config) {
	h.listenMu.RLock()
	defer h.listenMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
		}
	}
}

// Watch reloads the configuration whenever its file changes, until ctx
// is cancelled. Editors often replace rather than write the file, so
// the watch is placed on the parent directory. Events are debounced to
// absorb write bursts.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	base := filepath.Base(h.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(250 * time.Millisecond)
			} else {
				timer.Reset(250 * time.Millisecond)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_ = h.Reload(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
