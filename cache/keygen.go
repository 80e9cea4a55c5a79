package cache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "woocommerce_cache_"

// KeyFor derives the store key for endpoint and params:
//
//	prefix + endpoint + "_" + base64(json(params))
//
// encoding/json sorts map keys, so deep-equal map params always produce the
// same key regardless of insertion order.
func KeyFor(prefix, endpoint string, params any) (string, error) {
	encoded, err := encodeParams(params)
	if err != nil {
		return "", err
	}
	return prefix + endpoint + "_" + encoded, nil
}

// encodeParams serializes params. No params, whether an untyped nil or a
// nil map or pointer, encodes as {}.
func encodeParams(params any) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("serialize params: %w", err)
	}
	if string(b) == "null" {
		b = []byte("{}")
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// endpointOf extracts the endpoint segment from a namespaced key. The
// standard base64 alphabet never contains '_', so the last underscore
// separates endpoint from params.
func endpointOf(prefix, key string) string {
	rest := strings.TrimPrefix(key, prefix)
	if i := strings.LastIndex(rest, "_"); i >= 0 {
		return rest[:i]
	}
	return rest
}

// matchesEndpoint reports whether a key's endpoint is endpoint itself or a
// sub-path of it. "/product" does not match "/products".
func matchesEndpoint(keyEndpoint, endpoint string) bool {
	if keyEndpoint == endpoint {
		return true
	}
	return strings.HasPrefix(keyEndpoint, strings.TrimSuffix(endpoint, "/")+"/")
}
