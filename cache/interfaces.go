// Package cache provides a namespaced response cache for WooCommerce API
// calls with TTL-based expiration, built on a pluggable key-value store.
//
// The cache is an optimization layer: no operation returns a store error to
// its caller. Failures degrade to a miss or a no-op and are reported only on
// an optional development logger.
package cache

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrQuotaExceeded is returned by a Store when a write is rejected
	// because the store is full.
	ErrQuotaExceeded = errors.New("cache store quota exceeded")
)

// Store is the four-operation key-value contract the cache is built on.
type Store interface {
	// GetItem returns the value stored under key, ok=false when absent
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)

	// SetItem stores value under key. Implementations wrap ErrQuotaExceeded
	// when the store has no room left.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key; removing a missing key is not an error
	RemoveItem(ctx context.Context, key string) error

	// Keys lists every key in the store
	Keys(ctx context.Context) ([]string, error)
}

// PrefixLister is implemented by stores that can narrow key enumeration
// on their side (Redis SCAN MATCH, SQL predicates).
type PrefixLister interface {
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Backend is a Store that holds resources.
type Backend interface {
	Store
	Close() error
}

// entryVersion is the schema version written by this package. Entries
// without a version are the legacy {data,timestamp} shape and still read.
const entryVersion = 1

// Entry is the stored representation of a cached response.
type Entry struct {
	Version   int             `json:"v,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// Status discriminates lookup outcomes. The public Get collapses every
// non-hit into "no value"; Lookup keeps them apart.
type Status int

const (
	StatusMiss Status = iota
	StatusHit
	StatusExpired
	StatusCorrupt
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusExpired:
		return "expired"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "miss"
	}
}
