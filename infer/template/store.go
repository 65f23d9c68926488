package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk YAML layout of a template.
type templateFile struct {
	Name   string      `yaml:"name"`
	Axes   [][]float64 `yaml:"axes"`
	Counts []float64   `yaml:"counts"`
}

// Store loads and caches templates from a base directory. A template named
// "er" is read from <dir>/er.yaml on first use and served from cache after
// that. Loaded templates are immutable; the Store is safe for concurrent
// readers.
type Store struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*Template
}

// NewStore creates a Store rooted at dir. dir is not validated until the
// first Load.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]*Template),
	}
}

// Dir returns the store's base directory.
func (s *Store) Dir() string { return s.dir }

// Load returns the named template, reading it from disk on first use.
func (s *Store) Load(name string) (*Template, error) {
	s.mu.RLock()
	t, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.cache[name]; ok {
		return t, nil
	}

	path := filepath.Join(s.dir, name+".yaml")
	t, err := LoadFile(name, path)
	if err != nil {
		return nil, err
	}
	s.cache[name] = t
	return t, nil
}

// LoadFile reads a single template from path. The file's own name field is
// advisory; the given name wins, so one file can back several store entries.
func LoadFile(name, path string) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}

	var tf templateFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("template %q: parsing %s: %w", name, path, err)
	}
	if name == "" {
		name = tf.Name
	}

	t, err := New(name, tf.Axes, tf.Counts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return t, nil
}
