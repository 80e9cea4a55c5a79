// Package app builds the cache and store client shared by every binary
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/wooadmin/cache"
	"github.com/briangreenhill/wooadmin/internal/backends"
	"github.com/briangreenhill/wooadmin/internal/config"
	"github.com/briangreenhill/wooadmin/woocommerce"
)

// NewLogger returns a JSON logger, or a console logger in dev mode
func NewLogger(cfg *config.Config) zerolog.Logger {
	if cfg.Dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// Stack is the opened backend, the cache over it and the store client
type Stack struct {
	Backend cache.Backend
	Cache   *cache.ResponseCache
	Woo     *woocommerce.Client
}

func (s *Stack) Close() error {
	return s.Backend.Close()
}

// Open connects the configured cache backend and builds the store client.
// reg may be nil to skip metrics.
func Open(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log zerolog.Logger) (*Stack, error) {
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, err
	}

	backend, err := backends.Default().Open(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}

	opts := []cache.Option{
		cache.WithPrefix(cfg.Cache.Prefix),
		cache.WithDefaultTTL(ttl),
	}
	// entry level logging is for development only
	if cfg.Dev {
		opts = append(opts, cache.WithLogger(log.With().Str("component", "cache").Logger()))
	}
	if reg != nil {
		opts = append(opts, cache.WithMetrics(cache.NewMetrics(reg)))
	}
	rc := cache.New(backend, opts...)

	woo, err := woocommerce.New(cfg.Woo.URL, cfg.Woo.ConsumerKey, cfg.Woo.ConsumerSecret,
		woocommerce.WithHTTPClient(woocommerce.NewCachingHTTPClient(cfg.Woo.Timeout)),
		woocommerce.WithRateLimit(cfg.Woo.RateLimit, 2),
		woocommerce.WithCache(rc),
		woocommerce.WithLogger(log.With().Str("component", "woocommerce").Logger()),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &Stack{Backend: backend, Cache: rc, Woo: woo}, nil
}
