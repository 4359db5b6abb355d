package triage

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Store is the persistence interface for the routing document. Implementations must
// never expose a partially written document to Load, and Load must return a value the
// caller owns. A Store that has never been written returns ErrNoConfig.
type Store interface {
	Load(ctx context.Context) (*Config, error)
	Save(ctx context.Context, cfg *Config) error
}

// ConfigStore provides document and rule-level CRUD over a Store. All mutations run in
// one critical section, so concurrent read-modify-write cycles cannot lose updates.
// Reads go to the backend every time; nothing is cached in process.
type ConfigStore struct {
	mu      sync.Mutex
	backend Store
	seed    *Config
}

// NewConfigStore wraps backend. seed is served while the backend holds no document;
// nil means an empty document.
func NewConfigStore(backend Store, seed *Config) *ConfigStore {
	if seed == nil {
		seed = &Config{}
	}
	seed = seed.Clone()
	seed.normalize()
	return &ConfigStore{backend: backend, seed: seed}
}

// GetConfig returns the current document.
func (s *ConfigStore) GetConfig(ctx context.Context) (*Config, error) {
	return s.load(ctx)
}

// SaveConfig replaces the whole document.
func (s *ConfigStore) SaveConfig(ctx context.Context, cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, cfg)
}

// AddRule appends rule and returns the updated document. Ids are not deduplicated.
func (s *ConfigStore) AddRule(ctx context.Context, rule Rule) (*Config, error) {
	return s.mutate(ctx, func(cfg *Config) error {
		cfg.Rules = append(cfg.Rules, rule.Clone())
		return nil
	})
}

// UpdateRule replaces the rule with the given id in place, keeping its position.
func (s *ConfigStore) UpdateRule(ctx context.Context, id string, rule Rule) (*Config, error) {
	return s.mutate(ctx, func(cfg *Config) error {
		i := slices.IndexFunc(cfg.Rules, func(r Rule) bool { return r.ID == id })
		if i < 0 {
			return &RuleNotFoundError{ID: id}
		}
		cfg.Rules[i] = rule.Clone()
		return nil
	})
}

// DeleteRule removes the rule with the given id.
func (s *ConfigStore) DeleteRule(ctx context.Context, id string) (*Config, error) {
	return s.mutate(ctx, func(cfg *Config) error {
		n := len(cfg.Rules)
		cfg.Rules = slices.DeleteFunc(cfg.Rules, func(r Rule) bool { return r.ID == id })
		if len(cfg.Rules) == n {
			return &RuleNotFoundError{ID: id}
		}
		return nil
	})
}

func (s *ConfigStore) mutate(ctx context.Context, fn func(*Config) error) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(cfg); err != nil {
		return nil, err
	}
	if err := s.save(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigStore) load(ctx context.Context) (*Config, error) {
	cfg, err := s.backend.Load(ctx)
	if errors.Is(err, ErrNoConfig) {
		return s.seed.Clone(), nil
	}
	if err != nil {
		return nil, &StorageError{Op: OpRead, Err: err}
	}
	if cfg == nil {
		return nil, &StorageError{Op: OpRead, Err: errors.New("backend returned no document")}
	}
	cfg.normalize()
	return cfg, nil
}

func (s *ConfigStore) save(ctx context.Context, cfg *Config) error {
	doc := cfg.Clone()
	doc.normalize()
	if err := s.backend.Save(ctx, doc); err != nil {
		return &StorageError{Op: OpWrite, Err: err}
	}
	return nil
}
