package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/wooadmin/cache"
	"github.com/briangreenhill/wooadmin/woocommerce"
)

func TestHandleCacheSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	rc := cache.New(cache.NewMemoryStore(0), cache.WithClock(func() time.Time { return now }))
	rc.Set(ctx, "/products", nil, 1)
	now = now.Add(2 * time.Hour)
	rc.Set(ctx, "/orders", nil, 2)

	h := &Handlers{Cache: rc, Log: zerolog.Nop()}
	task, err := NewCacheSweepTask(CacheSweepPayload{RequestedBy: "test"})
	require.NoError(t, err)
	require.NoError(t, h.HandleCacheSweep(ctx, task))

	entries := rc.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "/orders", entries[0].Endpoint)
}

func TestBadPayloadSkipsRetry(t *testing.T) {
	h := &Handlers{Cache: cache.New(cache.NewMemoryStore(0)), Log: zerolog.Nop()}
	err := h.HandleCacheSweep(context.Background(), asynq.NewTask(TaskCacheSweep, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleCacheWarm(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[{"id":1,"name":"Hats"}]`))
	}))
	defer srv.Close()

	ctx := context.Background()
	rc := cache.New(cache.NewMemoryStore(0))
	woo, err := woocommerce.New(srv.URL, "ck", "cs", woocommerce.WithCache(rc))
	require.NoError(t, err)

	h := &Handlers{Cache: rc, Woo: woo, Log: zerolog.Nop()}
	task, err := NewCacheWarmTask(CacheWarmPayload{Categories: true})
	require.NoError(t, err)
	require.NoError(t, h.HandleCacheWarm(ctx, task))
	assert.Equal(t, int32(1), hits.Load())

	// served from the warmed cache
	cats, err := woo.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWarmClientErrorsSkipRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	woo, err := woocommerce.New(srv.URL, "ck", "cs")
	require.NoError(t, err)
	h := &Handlers{Cache: cache.New(cache.NewMemoryStore(0)), Woo: woo, Log: zerolog.Nop()}

	task, err := NewCacheWarmTask(CacheWarmPayload{Products: true})
	require.NoError(t, err)
	err = h.HandleCacheWarm(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.True(t, woocommerce.IsStatus(err, http.StatusUnauthorized))
}

func TestRetryableServerErrors(t *testing.T) {
	err := retryable(&woocommerce.APIError{StatusCode: 503})
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	err = retryable(errors.New("dial tcp: connection refused"))
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}
