package backends

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/wooadmin/cache"
	"github.com/briangreenhill/wooadmin/internal/config"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.Empty(t, r.List())
}

func TestDefaultBackends(t *testing.T) {
	assert.Equal(t, []string{"file", "memory", "postgres", "redis", "sqlite"}, Default().List())
}

func TestOpenLocalBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, cfg := range []config.CacheConfig{
		{Backend: "memory", QuotaBytes: 1024},
		{Backend: "file", Dir: filepath.Join(dir, "files")},
		{Backend: "sqlite", SQLitePath: filepath.Join(dir, "cache.db")},
	} {
		t.Run(cfg.Backend, func(t *testing.T) {
			b, err := Default().Open(ctx, cfg)
			require.NoError(t, err)
			defer b.Close() //nolint:errcheck

			rc := cache.New(b)
			rc.Set(ctx, "/products", nil, []int{1, 2})
			_, ok := rc.Get(ctx, "/products", nil, 0)
			assert.True(t, ok)
		})
	}
}

func TestOpenUnknown(t *testing.T) {
	_, err := Default().Open(context.Background(), config.CacheConfig{Backend: "memcached"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memcached")
}

func TestRegisterOverridesAndWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.Register("memory", func(context.Context, config.CacheConfig) (cache.Backend, error) { return nil, boom })

	_, err := r.Open(context.Background(), config.CacheConfig{Backend: "memory"})
	assert.ErrorIs(t, err, boom)
}
