// Package cache persists rule details so repeated runs skip rule lookups.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// Store is a file-based implementation of domain.RuleCache.
type Store struct{}

// New creates a new file-based rule cache.
func New() *Store {
	return &Store{}
}

// Load reads the rule cache for dir. Returns (nil, nil) if no cache exists.
func (s *Store) Load(dir string) (*domain.RuleCacheFile, error) {
	data, err := os.ReadFile(cachePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // no cache is not an error
		}
		return nil, err
	}

	var cache domain.RuleCacheFile
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	if cache.Rules == nil {
		cache.Rules = make(map[string]domain.Rule)
	}
	return &cache, nil
}

// Save writes the cache to disk, creating directories as needed.
func (s *Store) Save(dir string, cache *domain.RuleCacheFile) error {
	if err := os.MkdirAll(cacheDir(dir), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cachePath(dir), data, 0o644)
}

// Invalidate removes the cache file for dir.
func (s *Store) Invalidate(dir string) error {
	if err := os.Remove(cachePath(dir)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func cacheDir(dir string) string {
	return filepath.Join(dir, ".vibeheal", "cache")
}

func cachePath(dir string) string {
	return filepath.Join(cacheDir(dir), "rules.json")
}
