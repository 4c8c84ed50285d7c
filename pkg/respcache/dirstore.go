package respcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirStore persists cache entries as one JSON file per key in a directory.
type DirStore struct {
	dir string
}

var _ Store = (*DirStore)(nil)

// NewDirStore creates the directory if needed and returns a DirStore.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("respcache: create cache dir: %w", err)
	}

	return &DirStore{dir: dir}, nil
}

func (s *DirStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Read loads the entry for key. A missing file is a clean miss (nil, nil);
// unreadable or corrupt files return an error so the cache evicts them.
func (s *DirStore) Read(key string) (*Entry, error) {
	data, err := os.ReadFile(s.path(key)) //nolint:gosec // keys are hex digests, not user input
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("respcache: read entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("respcache: decode entry: %w", err)
	}

	return &e, nil
}

// Write persists the entry for key.
func (s *DirStore) Write(key string, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("respcache: encode entry: %w", err)
	}

	if err := os.WriteFile(s.path(key), data, 0o600); err != nil {
		return fmt.Errorf("respcache: write entry: %w", err)
	}

	return nil
}

// Delete removes the entry for key. Deleting an absent key is not an error.
func (s *DirStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// Keys lists every persisted cache key.
func (s *DirStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("respcache: list entries: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}

	return keys, nil
}
