// Package backends maps cache backend names to store constructors
package backends

import (
	"context"
	"fmt"
	"sort"

	"github.com/briangreenhill/wooadmin/cache"
	"github.com/briangreenhill/wooadmin/internal/config"
)

// Factory opens a store from the cache configuration
type Factory func(ctx context.Context, cfg config.CacheConfig) (cache.Backend, error)

// Registry manages available cache backends
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Default returns a registry with every built-in backend
func Default() *Registry {
	r := NewRegistry()
	r.Register("memory", func(_ context.Context, cfg config.CacheConfig) (cache.Backend, error) {
		return cache.NewMemoryStore(int(cfg.QuotaBytes)), nil
	})
	r.Register("file", func(_ context.Context, cfg config.CacheConfig) (cache.Backend, error) {
		return cache.NewFileStore(cfg.Dir, cfg.QuotaBytes)
	})
	r.Register("sqlite", func(_ context.Context, cfg config.CacheConfig) (cache.Backend, error) {
		return cache.NewSQLiteStore(cfg.SQLitePath, cfg.QuotaBytes)
	})
	r.Register("redis", func(_ context.Context, cfg config.CacheConfig) (cache.Backend, error) {
		return cache.NewRedisStore(cfg.RedisURL)
	})
	r.Register("postgres", func(ctx context.Context, cfg config.CacheConfig) (cache.Backend, error) {
		return cache.NewPostgresStore(ctx, cfg.DatabaseURL)
	})
	return r
}

// Register adds a factory under name, replacing any previous one
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Open builds the backend named by cfg.Backend
func (r *Registry) Open(ctx context.Context, cfg config.CacheConfig) (cache.Backend, error) {
	f, ok := r.factories[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown cache backend %q (available: %v)", cfg.Backend, r.List())
	}
	b, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s cache backend: %w", cfg.Backend, err)
	}
	return b, nil
}

// List returns all registered backend names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
