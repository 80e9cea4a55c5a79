package cache

import (
	"fmt"
	"strings"
	"time"
)

// TTL presets. Callers pick a tier per endpoint based on how volatile the
// data is.
const (
	TTLShort    = 1 * time.Minute  // frequently changing data (orders)
	TTLMedium   = 5 * time.Minute  // default
	TTLLong     = 15 * time.Minute // relatively static data
	TTLVeryLong = 60 * time.Minute // static data like categories
)

// DefaultTTL applies when a caller passes ttl <= 0.
const DefaultTTL = TTLMedium

// StaleAfter is the age beyond which ClearStale reclaims an entry.
const StaleAfter = time.Hour

// ParseTTL accepts a tier name (short, medium, long, very-long) or any
// time.ParseDuration string.
func ParseTTL(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short":
		return TTLShort, nil
	case "", "medium", "default":
		return TTLMedium, nil
	case "long":
		return TTLLong, nil
	case "very-long", "very_long", "verylong":
		return TTLVeryLong, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid ttl %q: must be positive", s)
	}
	return d, nil
}
