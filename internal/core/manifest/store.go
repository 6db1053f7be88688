package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrDirectoryNotFound indicates the plugins directory does not exist.
var ErrDirectoryNotFound = errors.New("plugins directory not found")

// Store is a read-only lookup of plugin manifests keyed by plugin name.
type Store struct {
	manifests map[string]Manifest
}

// NewStore builds a Store from in-memory manifests, bypassing the loader.
func NewStore(manifests ...Manifest) *Store {
	s := &Store{manifests: make(map[string]Manifest, len(manifests))}
	for _, m := range manifests {
		s.manifests[m.Name] = m
	}
	return s
}

// LoadDir loads every *.json file in dir into a Store. Unparseable files are
// skipped with a warning; a missing "name" field falls back to the file's
// base name; duplicate names resolve last-loaded-wins.
func LoadDir(dir string, logger *slog.Logger) (*Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins directory %s: %w", dir, err)
	}

	store := &Store{manifests: make(map[string]Manifest)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable plugin manifest", "path", path, "error", err)
			continue
		}

		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			logger.Warn("skipping invalid plugin manifest", "path", path, "error", err)
			continue
		}
		if m.Name == "" {
			m.Name = strings.TrimSuffix(entry.Name(), ".json")
		}
		if _, ok := store.manifests[m.Name]; ok {
			logger.Warn("duplicate plugin name, last one wins", "name", m.Name, "path", path)
		}
		store.manifests[m.Name] = m
		logger.Debug("loaded plugin manifest", "name", m.Name, "binary", m.Binary)
	}

	return store, nil
}

// Get returns the manifest registered under name.
func (s *Store) Get(name string) (Manifest, bool) {
	m, ok := s.manifests[name]
	return m, ok
}

// Len returns the number of loaded manifests.
func (s *Store) Len() int {
	return len(s.manifests)
}

// StartOrder returns all manifests sorted by ascending start priority,
// ties broken by name. This is the order plugins are launched in.
func (s *Store) StartOrder() []Manifest {
	list := make([]Manifest, 0, len(s.manifests))
	for _, m := range s.manifests {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartPriority != list[j].StartPriority {
			return list[i].StartPriority < list[j].StartPriority
		}
		return list[i].Name < list[j].Name
	})
	return list
}
