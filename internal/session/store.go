package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoSession is returned when no stored session matches.
var ErrNoSession = errors.New("no stored session")

// Store persists completed session summaries.
type Store interface {
	Save(s Summary) error
	Load(id string) (Summary, error) // returns ErrNoSession if absent
	List() ([]Summary, error)        // newest first
	Latest() (Summary, error)        // returns ErrNoSession if empty
}

// diskStore keeps one JSON file per session in the XDG data directory.
type diskStore struct {
	dir string
}

// NewStore returns a Store backed by the XDG data directory.
// Path: $XDG_DATA_HOME/readloop/sessions or ~/.local/share/readloop/sessions
func NewStore() (Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	return NewStoreAt(filepath.Join(dir, "sessions"))
}

// NewStoreAt returns a Store rooted at dir.
func NewStoreAt(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &diskStore{dir: dir}, nil
}

func dataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "readloop"), nil
}

func (d *diskStore) path(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(d.dir, id+".json"), nil
}

// Save writes s atomically via a temp file + os.Rename.
func (d *diskStore) Save(s Summary) (err error) {
	target, err := d.path(s.SessionID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, "session-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist session: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	if err = os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func (d *diskStore) Load(id string) (Summary, error) {
	p, err := d.path(id)
	if err != nil {
		return Summary{}, err
	}
	return readSummary(p)
}

func (d *diskStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var out []Summary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		s, err := readSummary(filepath.Join(d.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (d *diskStore) Latest() (Summary, error) {
	all, err := d.List()
	if err != nil {
		return Summary{}, err
	}
	if len(all) == 0 {
		return Summary{}, ErrNoSession
	}
	return all[0], nil
}

func readSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Summary{}, ErrNoSession
		}
		return Summary{}, fmt.Errorf("failed to read session: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("failed to parse session %s: %w", filepath.Base(path), err)
	}
	return s, nil
}
