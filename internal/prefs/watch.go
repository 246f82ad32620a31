package prefs

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/fakeyudi/readloop/internal/session"
)

// Source holds the latest valid preferences from a file. Sessions read
// Current once at start, so a reload never changes a running session.
type Source struct {
	path     string
	logger   zerolog.Logger
	current  atomic.Pointer[Preferences]
	onChange func(Preferences)
}

// NewSource loads path once. A file that fails to parse is an error here, but
// only a warning during Watch.
func NewSource(path string, logger zerolog.Logger) (*Source, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Source{path: path, logger: logger.With().Str("component", "prefs").Str("path", path).Logger()}
	s.current.Store(&p)
	return s, nil
}

func (s *Source) Path() string { return s.path }

func (s *Source) Current() Preferences { return *s.current.Load() }

// Policy converts Current to a session policy.
func (s *Source) Policy() (session.Policy, error) { return s.Current().Policy() }

// OnChange registers fn to run after each successful reload. Call it before Watch.
func (s *Source) OnChange(fn func(Preferences)) { s.onChange = fn }

// Reload re-reads the file and swaps it in if it parses.
func (s *Source) Reload() error {
	p, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(&p)
	if s.onChange != nil {
		s.onChange(p)
	}
	return nil
}

// Watch reloads the file whenever it changes until ctx is cancelled. The
// parent directory is watched so editors that replace the file are seen too.
func (s *Source) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn().Err(err).Msg("preferences not reloaded, keeping previous values")
				continue
			}
			s.logger.Info().Str("op", event.Op.String()).Msg("preferences reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("preference watcher error")
		}
	}
}
