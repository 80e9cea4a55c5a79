// Package filters keeps a screen's filter fields and its URL query string
// consistent in both directions.
package filters

import (
	"net/url"
)

// Query parameter names.
const (
	ParamSearch   = "search"
	ParamCategory = "category"
	ParamMinPrice = "min_price"
	ParamMaxPrice = "max_price"
)

var filterParams = []string{ParamSearch, ParamCategory, ParamMinPrice, ParamMaxPrice}

// State is the filter state of one screen. SearchQuery follows keystrokes;
// DebouncedSearchQuery trails it by the debounce window and is the only
// search value ever written to the URL.
type State struct {
	SearchQuery          string `json:"search_query"`
	DebouncedSearchQuery string `json:"debounced_search_query"`
	Category             string `json:"category"`
	MinPrice             string `json:"min_price"`
	MaxPrice             string `json:"max_price"`
}

// FromQuery decodes q. The raw and debounced search values are equal.
func FromQuery(q url.Values) State {
	search := q.Get(ParamSearch)
	return State{
		SearchQuery:          search,
		DebouncedSearchQuery: search,
		Category:             q.Get(ParamCategory),
		MinPrice:             q.Get(ParamMinPrice),
		MaxPrice:             q.Get(ParamMaxPrice),
	}
}

// Query encodes the non-empty filters. Cleared filters have no key.
func (s State) Query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set(ParamSearch, s.DebouncedSearchQuery)
	set(ParamCategory, s.Category)
	set(ParamMinPrice, s.MinPrice)
	set(ParamMaxPrice, s.MaxPrice)
	return q
}

// ActiveFilterCount counts the filters currently narrowing the result set.
func (s State) ActiveFilterCount() int {
	n := 0
	for _, v := range []string{s.DebouncedSearchQuery, s.Category, s.MinPrice, s.MaxPrice} {
		if v != "" {
			n++
		}
	}
	return n
}

// HasActiveFilters reports whether any filter is set.
func (s State) HasActiveFilters() bool { return s.ActiveFilterCount() > 0 }

// Merge returns current with its filter params replaced by s. Params that
// are not filters are kept as they are.
func (s State) Merge(current url.Values) url.Values {
	next := cloneValues(current)
	for _, k := range filterParams {
		delete(next, k)
	}
	for k, v := range s.Query() {
		next[k] = v
	}
	return next
}

// Canonicalize drops empty filter params from q. It reports whether q was
// already canonical.
func Canonicalize(q url.Values) (url.Values, bool) {
	out := FromQuery(q).Merge(q)
	return out, out.Encode() == q.Encode()
}
