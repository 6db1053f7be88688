package contract

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

// ErrDirectoryNotFound indicates the contracts directory does not exist.
var ErrDirectoryNotFound = errors.New("contracts directory not found")

// Store is a read-only lookup of contracts keyed by name.
type Store struct {
	contracts map[string]Contract
}

// NewStore builds a Store from in-memory contracts, bypassing the loader.
func NewStore(contracts ...Contract) *Store {
	s := &Store{contracts: make(map[string]Contract, len(contracts))}
	for _, c := range contracts {
		s.contracts[c.Name] = c
	}
	return s
}

// LoadDir loads every *.json file in dir into a Store.
//
// Files that fail to parse are skipped with a warning rather than failing
// the load. A contract whose "name" field is empty is keyed by the file's
// base name without extension. When two files produce the same name the
// last one loaded wins; this is accepted, non-strict behavior.
func LoadDir(dir string, logger *slog.Logger) (*Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read contracts directory %s: %w", dir, err)
	}

	store := &Store{contracts: make(map[string]Contract)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable contract file", "path", path, "error", err)
			continue
		}

		var c Contract
		if err := json.Unmarshal(data, &c); err != nil {
			logger.Warn("skipping invalid contract file", "path", path, "error", err)
			continue
		}
		if c.Name == "" {
			c.Name = strings.TrimSuffix(entry.Name(), ".json")
		}
		if prev, ok := store.contracts[c.Name]; ok {
			logger.Warn("duplicate contract name, last one wins",
				"name", c.Name, "replaced_topic", prev.Topic, "path", path)
		}
		store.contracts[c.Name] = c
		logger.Debug("loaded contract", "name", c.Name, "topic", c.Topic)
	}

	return store, nil
}

// Get returns the contract registered under name.
func (s *Store) Get(name string) (Contract, bool) {
	c, ok := s.contracts[name]
	return c, ok
}

// Len returns the number of loaded contracts.
func (s *Store) Len() int {
	return len(s.contracts)
}

// Names returns all contract names in ascending order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.contracts))
	for name := range s.contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
