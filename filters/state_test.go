package filters

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateQuery(t *testing.T) {
	s := State{SearchQuery: "raw", DebouncedSearchQuery: "shoes", Category: "12"}
	assert.Equal(t, "category=12&search=shoes", s.Query().Encode(), "only the debounced search is encoded")
	assert.Equal(t, "", State{}.Query().Encode())
}

func TestActiveFilterCount(t *testing.T) {
	assert.Zero(t, State{SearchQuery: "typing"}.ActiveFilterCount())
	assert.Equal(t, 4, State{DebouncedSearchQuery: "a", Category: "1", MinPrice: "0", MaxPrice: "9"}.ActiveFilterCount())
	assert.True(t, State{MaxPrice: "9"}.HasActiveFilters())
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		raw       string
		want      string
		canonical bool
	}{
		{raw: "search=shoes&page=2", want: "page=2&search=shoes", canonical: true},
		{raw: "search=&category=&page=2", want: "page=2", canonical: false},
		{raw: "min_price=&max_price=50", want: "max_price=50", canonical: false},
		{raw: "search=a&search=b", want: "search=a", canonical: false},
		{raw: "", want: "", canonical: true},
		{raw: "orderby=price&order=asc", want: "order=asc&orderby=price", canonical: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q, err := url.ParseQuery(tt.raw)
			assert.NoError(t, err)
			got, ok := Canonicalize(q)
			assert.Equal(t, tt.want, got.Encode())
			assert.Equal(t, tt.canonical, ok)
		})
	}
}

func TestMergeDoesNotAlias(t *testing.T) {
	cur := url.Values{"page": {"1"}}
	next := State{Category: "4"}.Merge(cur)
	next.Set("page", "2")
	assert.Equal(t, "1", cur.Get("page"))
}
