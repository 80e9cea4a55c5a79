package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// ResponseCache caches API response bodies under a namespace prefix in a
// Store. It is safe for concurrent use when the Store is.
type ResponseCache struct {
	store      Store
	prefix     string
	defaultTTL time.Duration
	staleAfter time.Duration
	now        func() time.Time
	log        zerolog.Logger
	metrics    *Metrics
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *ResponseCache) { c.prefix = prefix }
}

// WithDefaultTTL sets the TTL used when callers pass ttl <= 0.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithStaleAfter sets the age bound used by ClearStale.
func WithStaleAfter(d time.Duration) Option {
	return func(c *ResponseCache) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// WithLogger sets the development diagnostic channel. Only error messages
// and keys are logged, never payloads.
func WithLogger(l zerolog.Logger) Option {
	return func(c *ResponseCache) { c.log = l }
}

// WithMetrics records lookup, write and eviction counters.
func WithMetrics(m *Metrics) Option {
	return func(c *ResponseCache) { c.metrics = m }
}

// New returns a ResponseCache over store.
func New(store Store, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		store:      store,
		prefix:     DefaultPrefix,
		defaultTTL: DefaultTTL,
		staleAfter: StaleAfter,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Prefix returns the namespace prefix.
func (c *ResponseCache) Prefix() string { return c.prefix }

// KeyFor derives the store key for endpoint and params.
func (c *ResponseCache) KeyFor(endpoint string, params any) (string, error) {
	return KeyFor(c.prefix, endpoint, params)
}

// Result is the outcome of Lookup.
type Result struct {
	Status Status
	Data   json.RawMessage
	Age    time.Duration
}

// Lookup reads the entry for endpoint and params. An entry older than ttl
// is removed from the store and reported as StatusExpired. ttl <= 0 uses
// the default TTL.
func (c *ResponseCache) Lookup(ctx context.Context, endpoint string, params any, ttl time.Duration) Result {
	key, err := c.KeyFor(endpoint, params)
	if err != nil {
		c.log.Debug().Str("endpoint", endpoint).Str("error", err.Error()).Msg("cache key derivation failed")
		c.metrics.lookup(StatusMiss)
		return Result{Status: StatusMiss}
	}
	res := c.lookupKey(ctx, key, ttl)
	c.metrics.lookup(res.Status)
	return res
}

func (c *ResponseCache) lookupKey(ctx context.Context, key string, ttl time.Duration) Result {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	raw, ok, err := c.store.GetItem(ctx, key)
	if err != nil {
		c.log.Debug().Str("key", key).Str("error", err.Error()).Msg("cache read failed")
		return Result{Status: StatusMiss}
	}
	if !ok || raw == "" {
		return Result{Status: StatusMiss}
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		c.log.Debug().Str("key", key).Str("error", err.Error()).Msg("cache entry unreadable")
		return Result{Status: StatusCorrupt}
	}

	age := time.Duration(c.now().UnixMilli()-entry.Timestamp) * time.Millisecond
	if age > ttl {
		if err := c.store.RemoveItem(ctx, key); err != nil {
			c.log.Debug().Str("key", key).Str("error", err.Error()).Msg("cache remove failed")
		}
		return Result{Status: StatusExpired, Age: age}
	}
	return Result{Status: StatusHit, Data: entry.Data, Age: age}
}

// Get returns the cached payload when a fresh entry exists. Missing,
// expired and corrupt entries all report ok=false.
func (c *ResponseCache) Get(ctx context.Context, endpoint string, params any, ttl time.Duration) (json.RawMessage, bool) {
	res := c.Lookup(ctx, endpoint, params, ttl)
	if res.Status != StatusHit {
		return nil, false
	}
	return res.Data, true
}

// GetInto decodes a fresh cached payload into out. A payload that does not
// decode into out counts as a miss.
func (c *ResponseCache) GetInto(ctx context.Context, endpoint string, params any, ttl time.Duration, out any) bool {
	data, ok := c.Get(ctx, endpoint, params, ttl)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Debug().Str("endpoint", endpoint).Str("error", err.Error()).Msg("cached payload does not decode")
		return false
	}
	return true
}

// Set stores data for endpoint and params, stamped with the current time.
// When the store is full, stale entries are cleared and the write is
// retried once. Set never reports failure; a write that cannot be made is
// dropped.
func (c *ResponseCache) Set(ctx context.Context, endpoint string, params any, data any) {
	key, err := c.KeyFor(endpoint, params)
	if err != nil {
		c.log.Debug().Str("endpoint", endpoint).Str("error", err.Error()).Msg("cache key derivation failed")
		c.metrics.write("dropped")
		return
	}

	value, err := c.encode(data)
	if err != nil {
		c.log.Debug().Str("key", key).Str("error", err.Error()).Msg("cache payload not serializable")
		c.metrics.write("dropped")
		return
	}

	err = c.store.SetItem(ctx, key, value)
	if err == nil {
		c.metrics.write("ok")
		return
	}
	c.log.Debug().Str("key", key).Str("error", err.Error()).Msg("cache write failed")
	if !errors.Is(err, ErrQuotaExceeded) {
		c.metrics.write("dropped")
		return
	}

	c.ClearStale(ctx)

	// re-stamp so the retried entry gets the full TTL
	value, err = c.encode(data)
	if err == nil {
		err = c.store.SetItem(ctx, key, value)
	}
	if err != nil {
		c.log.Debug().Str("key", key).Str("error", err.Error()).Msg("failed to cache after cleanup")
		c.metrics.write("dropped")
		return
	}
	c.metrics.write("retried")
}

// Invalidate removes the entries of endpoint and its sub-paths. An empty
// endpoint removes every entry in the namespace.
func (c *ResponseCache) Invalidate(ctx context.Context, endpoint string) {
	for _, key := range c.namespaceKeys(ctx) {
		if endpoint != "" && !matchesEndpoint(endpointOf(c.prefix, key), endpoint) {
			continue
		}
		if err := c.store.RemoveItem(ctx, key); err != nil {
			c.log.Debug().Str("key", key).Str("error", err.Error()).Msg("cache remove failed")
		}
	}
}

// ClearAll removes every entry in the namespace.
func (c *ResponseCache) ClearAll(ctx context.Context) {
	c.Invalidate(ctx, "")
}

// ClearStale removes namespace entries older than the staleness bound and
// entries that cannot be parsed. It returns the number removed.
func (c *ResponseCache) ClearStale(ctx context.Context) int {
	now := c.now().UnixMilli()
	bound := c.staleAfter.Milliseconds()
	cleared := 0

	for _, key := range c.namespaceKeys(ctx) {
		raw, ok, err := c.store.GetItem(ctx, key)
		if err != nil || !ok || raw == "" {
			continue
		}
		if ts, ok := entryTimestamp(raw); ok && now-ts <= bound {
			continue
		}
		if err := c.store.RemoveItem(ctx, key); err != nil {
			c.log.Debug().Str("key", key).Str("error", err.Error()).Msg("cache remove failed")
			continue
		}
		cleared++
	}

	if cleared > 0 {
		c.log.Debug().Int("cleared", cleared).Msg("cleared old cache entries")
	}
	c.metrics.evicted(cleared)
	return cleared
}

// EntryInfo describes a stored entry without decoding its payload.
type EntryInfo struct {
	Key      string
	Endpoint string
	Age      time.Duration
	Size     int
	Corrupt  bool
}

// Entries lists the namespace, sorted by key.
func (c *ResponseCache) Entries(ctx context.Context) []EntryInfo {
	now := c.now().UnixMilli()
	var out []EntryInfo
	for _, key := range c.namespaceKeys(ctx) {
		raw, ok, err := c.store.GetItem(ctx, key)
		if err != nil || !ok {
			continue
		}
		info := EntryInfo{Key: key, Endpoint: endpointOf(c.prefix, key), Size: len(raw)}
		if ts, ok := entryTimestamp(raw); ok {
			info.Age = time.Duration(now-ts) * time.Millisecond
		} else {
			info.Corrupt = true
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// namespaceKeys lists keys under the prefix. Enumeration failure yields no
// keys.
func (c *ResponseCache) namespaceKeys(ctx context.Context) []string {
	if pl, ok := c.store.(PrefixLister); ok {
		keys, err := pl.KeysWithPrefix(ctx, c.prefix)
		if err != nil {
			c.log.Debug().Str("error", err.Error()).Msg("cache key enumeration failed")
			return nil
		}
		return keys
	}

	all, err := c.store.Keys(ctx)
	if err != nil {
		c.log.Debug().Str("error", err.Error()).Msg("cache key enumeration failed")
		return nil
	}
	keys := all[:0:0]
	for _, k := range all {
		if strings.HasPrefix(k, c.prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (c *ResponseCache) encode(data any) (string, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return "", errors.New("payload is not valid JSON")
		}
		raw = v
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return "", err
		}
		raw = b
	}

	b, err := json.Marshal(Entry{
		Version:   entryVersion,
		Data:      raw,
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// entryTimestamp reads an entry's timestamp without decoding its payload.
// ok is false for any entry decodeEntry would reject.
func entryTimestamp(raw string) (int64, bool) {
	if !gjson.Valid(raw) {
		return 0, false
	}
	fields := gjson.GetMany(raw, "v", "data", "timestamp")
	v, data, ts := fields[0], fields[1], fields[2]
	if v.Exists() && v.Type != gjson.Null && (v.Type != gjson.Number || v.Int() > entryVersion) {
		return 0, false
	}
	if !data.Exists() || ts.Type != gjson.Number {
		return 0, false
	}
	return ts.Int(), true
}

type wireEntry struct {
	Version   int             `json:"v"`
	Data      json.RawMessage `json:"data"`
	Timestamp *int64          `json:"timestamp"`
}

func decodeEntry(raw string) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Entry{}, err
	}
	if w.Version > entryVersion {
		return Entry{}, fmt.Errorf("unsupported entry version %d", w.Version)
	}
	if w.Timestamp == nil {
		return Entry{}, errors.New("entry has no timestamp")
	}
	if w.Data == nil {
		return Entry{}, errors.New("entry has no data")
	}
	return Entry{Version: w.Version, Data: w.Data, Timestamp: *w.Timestamp}, nil
}
