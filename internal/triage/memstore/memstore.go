// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/intake/internal/triage"
)

// Store holds the routing document in memory. Suitable for dev/testing.
type Store struct {
	mu  sync.RWMutex
	doc *triage.Config // nil until the first Save
}

// New initializes a new in-memory Store. A non-nil initial document is stored as a copy.
func New(initial *triage.Config) *Store {
	return &Store{doc: initial.Clone()}
}

// Load returns a copy of the stored document, or triage.ErrNoConfig before the first Save.
func (s *Store) Load(_ context.Context) (*triage.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, triage.ErrNoConfig
	}
	return s.doc.Clone(), nil
}

// Save replaces the stored document with a copy of cfg.
func (s *Store) Save(_ context.Context, cfg *triage.Config) error {
	cp := cfg.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = cp
	return nil
}
