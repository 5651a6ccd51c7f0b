package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/filter"
)

const debounceDelay = 100 * time.Millisecond

// Store serves the current filter rules and reloads them when the file
// changes. A reload that fails to parse or validate keeps the previous rules.
type Store struct {
	path string
	bus  *eventbus.EventBus

	mu       sync.RWMutex
	current  filter.Config
	debounce *time.Timer

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Open loads the rules at path. A missing file yields the defaults.
func Open(path string, bus *eventbus.EventBus) (*Store, error) {
	s := &Store{path: path, bus: bus}
	c, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current = c
	return s, nil
}

// Path returns the watched file.
func (s *Store) Path() string { return s.path }

// Filters returns a private copy of the current rules.
func (s *Store) Filters() filter.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Reload re-reads the file and swaps in the new rules when they are valid.
func (s *Store) Reload() error {
	c, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = c
	s.mu.Unlock()

	log.Info().Str("path", s.path).Str("mode", string(c.Mode)).Msg("filters reloaded")
	s.bus.PublishFiltersReloaded(eventbus.FiltersReloadedPayload{Filters: c.Clone()})
	return nil
}

func (s *Store) load() (filter.Config, error) {
	c, err := LoadFile(s.path)
	if err != nil {
		return filter.Config{}, err
	}
	if err := c.Validate(); err != nil {
		return filter.Config{}, err
	}
	return c, nil
}

// Watch reloads the rules whenever the file is written, created or renamed
// into place. It watches the parent directory so editors that replace the
// file are seen. Watching stops when ctx is done or Close is called.
func (s *Store) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.watcher = w
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Close stops watching. It is safe to call more than once.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.mu.Unlock()

	err := s.watcher.Close()
	s.wg.Wait()
	s.watcher = nil
	return err
}

func (s *Store) run(ctx context.Context) {
	defer s.wg.Done()

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.schedule(ctx)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", s.path).Msg("filters watcher error")
		}
	}
}

func (s *Store) schedule(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(s.path); err != nil {
			return // moved away; wait for the replacement
		}
		if err := s.Reload(); err != nil {
			log.Error().Err(err).Str("path", s.path).Msg("filters reload failed, keeping previous rules")
		}
	})
}
