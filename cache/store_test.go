package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the Store contract against s. Keys are namespaced
// under ns so shared servers can be used.
func exerciseStore(t *testing.T, s Store, ns string) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.GetItem(ctx, ns+"missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem(ctx, ns+"/products_e30=", `{"v":1}`))
	require.NoError(t, s.SetItem(ctx, ns+"/orders_e30=", "first"))
	require.NoError(t, s.SetItem(ctx, ns+"/orders_e30=", "second"))

	v, ok, err := s.GetItem(ctx, ns+"/orders_e30=")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", v)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Subset(t, keys, []string{ns + "/products_e30=", ns + "/orders_e30="})

	if pl, ok := s.(PrefixLister); ok {
		keys, err := pl.KeysWithPrefix(ctx, ns+"/o")
		require.NoError(t, err)
		assert.Equal(t, []string{ns + "/orders_e30="}, keys)
	}

	require.NoError(t, s.RemoveItem(ctx, ns+"/orders_e30="))
	require.NoError(t, s.RemoveItem(ctx, ns+"/orders_e30="), "removing a missing key is not an error")
	_, ok, err = s.GetItem(ctx, ns+"/orders_e30=")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RemoveItem(ctx, ns+"/products_e30="))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0), "")
}

func TestMemoryStoreQuota(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.SetItem(ctx, "k", "12345"))
	assert.Equal(t, 6, s.Used())

	err := s.SetItem(ctx, "j", "123456789")
	assert.True(t, errors.Is(err, ErrQuotaExceeded))

	// overwriting reuses the old entry's bytes
	require.NoError(t, s.SetItem(ctx, "k", "123456789"))
	assert.Equal(t, 10, s.Used())

	require.NoError(t, s.RemoveItem(ctx, "k"))
	assert.Zero(t, s.Used())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)
	exerciseStore(t, s, "")
}

func TestFileStoreQuota(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, 200)
	require.NoError(t, err)

	require.NoError(t, s.SetItem(ctx, "a", strings.Repeat("x", 100)))
	err = s.SetItem(ctx, "b", strings.Repeat("x", 100))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	require.NoError(t, s.SetItem(ctx, "a", strings.Repeat("y", 120)), "overwrite fits")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStoreSkipsForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, 0)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("nope"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0o600))
	require.NoError(t, s.SetItem(ctx, "k", "v"))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	_, err = os.Stat(filepath.Join(dir, "junk.json"))
	assert.ErrorIs(t, err, os.ErrNotExist, "unreadable entry files are dropped")
	_, err = os.Stat(filepath.Join(dir, "README"))
	assert.NoError(t, err, "non-entry files are left alone")
}

func TestFileStoreSweepReclaimsDamagedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, 300)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "damaged.json"), []byte(strings.Repeat("x", 250)), 0o600))
	c := New(s)
	c.Set(ctx, "/products", nil, "fits after the sweep")

	_, ok := c.Get(ctx, "/products", nil, 0)
	assert.True(t, ok)
	_, err = os.Stat(filepath.Join(dir, "damaged.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s, "")
}

func TestSQLiteStoreQuota(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), 64*1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	big := strings.Repeat("x", 8*1024)
	var quotaErr error
	for i := 0; i < 64; i++ {
		if err := s.SetItem(ctx, uuid.NewString(), big); err != nil {
			quotaErr = err
			break
		}
	}
	require.Error(t, quotaErr)
	assert.ErrorIs(t, quotaErr, ErrQuotaExceeded)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := NewRedisStore(url)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s, "test_"+uuid.NewString()+"_")
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := NewPostgresStore(context.Background(), url)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s, "test_"+uuid.NewString()+"_")
}

func TestGlobEscape(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, globEscape("a*b?c[d]"))
	assert.Equal(t, "woocommerce_cache_", globEscape(DefaultPrefix))
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "short", want: "1m0s"},
		{in: "", want: "5m0s"},
		{in: "Medium", want: "5m0s"},
		{in: "long", want: "15m0s"},
		{in: "very-long", want: "1h0m0s"},
		{in: "90s", want: "1m30s"},
		{in: "-1m", wantErr: true},
		{in: "forever", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestMatchesEndpoint(t *testing.T) {
	assert.True(t, matchesEndpoint("/products", "/products"))
	assert.True(t, matchesEndpoint("/products/12", "/products"))
	assert.True(t, matchesEndpoint("/products/12", "/products/"))
	assert.False(t, matchesEndpoint("/products", "/product"))
	assert.False(t, matchesEndpoint("/orders", "/products"))
}
