package rules

import (
	"log"
	"sync/atomic"
)

// Store holds the active compiled configuration behind an atomic pointer.
// Hot reload swaps the whole compiled config at once; readers never observe
// a partially loaded rule set.
type Store struct {
	current atomic.Pointer[Compiled]
	path    string
}

// NewStore loads the configuration eagerly at construction. A missing file
// is not an error; the built-in defaults apply.
func NewStore(path string) (*Store, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.current.Store(cfg.Compile())
	log.Printf("[Rules] Loaded config version %s (%d categories, %d risk rules)",
		cfg.Version, len(cfg.Categories), len(cfg.RiskDictionary))
	return s, nil
}

// Active returns the current compiled configuration.
func (s *Store) Active() *Compiled {
	return s.current.Load()
}

// Classifier returns a classifier bound to the current configuration. The
// classifier keeps that snapshot for its whole pipeline run, so a reload
// mid-run never mixes rule versions.
func (s *Store) Classifier() *Classifier {
	return NewClassifier(s.Active())
}

// Reload re-reads the config file and swaps it in atomically.
func (s *Store) Reload() error {
	cfg, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(cfg.Compile())
	log.Printf("[Rules] Reloaded config version %s", cfg.Version)
	return nil
}
