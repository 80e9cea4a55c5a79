package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/wooadmin/cache"
	"github.com/briangreenhill/wooadmin/woocommerce"
)

// Handlers runs cache maintenance tasks
type Handlers struct {
	Cache *cache.ResponseCache
	Woo   *woocommerce.Client // only needed for warm tasks
	Log   zerolog.Logger
}

// Register wires the handlers into mux
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskCacheSweep, h.HandleCacheSweep)
	mux.HandleFunc(TaskCacheWarm, h.HandleCacheWarm)
}

func (h *Handlers) HandleCacheSweep(ctx context.Context, t *asynq.Task) error {
	var p CacheSweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.Log.Error().Err(err).Msg("[asynq] bad payload")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	start := time.Now()
	n := h.Cache.ClearStale(ctx)
	h.Log.Info().
		Int("cleared", n).
		Str("requested_by", p.RequestedBy).
		Dur("duration", time.Since(start)).
		Msg("[sweep] done")
	return nil
}

func (h *Handlers) HandleCacheWarm(ctx context.Context, t *asynq.Task) error {
	var p CacheWarmPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.Log.Error().Err(err).Msg("[asynq] bad payload")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if h.Woo == nil {
		return fmt.Errorf("warm: no store client: %w", asynq.SkipRetry)
	}

	start := time.Now()
	if p.Categories {
		cats, err := h.Woo.Categories(ctx)
		if err != nil {
			return retryable(fmt.Errorf("warm categories: %w", err))
		}
		h.Log.Info().Int("categories", len(cats)).Msg("[warm] categories cached")
	}
	if p.Products {
		page, err := h.Woo.ListProducts(ctx, nil)
		if err != nil {
			return retryable(fmt.Errorf("warm products: %w", err))
		}
		h.Log.Info().Int("products", len(page.Items)).Msg("[warm] first product page cached")
	}
	h.Log.Info().Dur("duration", time.Since(start)).Msg("[warm] done")
	return nil
}

// retryable lets transport, rate limit and 5xx failures retry and drops
// the rest
func retryable(err error) error {
	var apiErr *woocommerce.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != 429 {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
