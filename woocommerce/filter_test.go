package woocommerce

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/briangreenhill/wooadmin/filters"
)

func ids(ps []Product) []int {
	out := make([]int, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestFilterProducts(t *testing.T) {
	items := []Product{
		{ID: 1, Name: "Running Shoes", SKU: "RS-1", Price: "80", Categories: []CategoryRef{{ID: 2}}},
		{ID: 2, Name: "Wool Socks", SKU: "WS-9", Price: "", RegularPrice: "12.5", Categories: []CategoryRef{{ID: 3}}},
		{ID: 3, Name: "Gift card", SKU: "GIFT", Price: "n/a"},
		{ID: 4, Name: "Shoe horn", SKU: "SH-2", Price: "5", Categories: []CategoryRef{{ID: 2}, {ID: 3}}},
	}

	tests := []struct {
		name string
		f    ProductFilter
		want []int
	}{
		{name: "no filter", f: ProductFilter{}, want: []int{1, 2, 3, 4}},
		{name: "search name case-insensitive", f: ProductFilter{Search: "SHOE"}, want: []int{1, 4}},
		{name: "search sku", f: ProductFilter{Search: "ws-"}, want: []int{2}},
		{name: "search restricted fields", f: ProductFilter{Search: "gift", SearchFields: []string{"sku"}}, want: []int{3}},
		{name: "category", f: ProductFilter{CategoryID: 3}, want: []int{2, 4}},
		{name: "regular price fallback", f: ProductFilter{MinPrice: 10, MaxPrice: 20}, want: []int{2, 3}},
		{name: "combined", f: ProductFilter{Search: "sho", CategoryID: 2, MaxPrice: 50}, want: []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterProducts(items, tt.f)))
		})
	}
}

func TestFilterFromState(t *testing.T) {
	f := FilterFromState(filters.State{SearchQuery: "typing", DebouncedSearchQuery: "hat", Category: "7", MinPrice: "1.5", MaxPrice: "abc"})
	assert.Equal(t, ProductFilter{Search: "hat", CategoryID: 7, MinPrice: 1.5}, f)
}

func TestProductQuery(t *testing.T) {
	q := ProductQuery(filters.State{DebouncedSearchQuery: "hat", MaxPrice: "30"}, 3)
	assert.Equal(t, map[string]string{"search": "hat", "max_price": "30", "page": "3"}, q)
	assert.Empty(t, ProductQuery(filters.State{}, 1))
}
