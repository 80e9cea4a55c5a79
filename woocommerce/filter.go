package woocommerce

import (
	"math"
	"strconv"
	"strings"

	"github.com/briangreenhill/wooadmin/filters"
)

// DefaultSearchFields are matched by ProductFilter when SearchFields is
// empty.
var DefaultSearchFields = []string{"name", "sku"}

// ProductFilter narrows an already fetched product list. Zero values
// disable a criterion.
type ProductFilter struct {
	Search       string
	SearchFields []string // name, sku, slug, description, short_description, status
	CategoryID   int
	MinPrice     float64
	MaxPrice     float64
}

// FilterFromState converts URL filter state. Unparsable numbers disable
// their criterion.
func FilterFromState(s filters.State) ProductFilter {
	f := ProductFilter{Search: s.DebouncedSearchQuery}
	if id, err := strconv.Atoi(s.Category); err == nil {
		f.CategoryID = id
	}
	if v, err := strconv.ParseFloat(s.MinPrice, 64); err == nil {
		f.MinPrice = v
	}
	if v, err := strconv.ParseFloat(s.MaxPrice, 64); err == nil {
		f.MaxPrice = v
	}
	return f
}

// ProductQuery maps filter state and a page number to ListProducts
// parameters.
func ProductQuery(s filters.State, page int) map[string]string {
	q := map[string]string{}
	for k, v := range s.Query() {
		q[k] = v[0]
	}
	if page > 1 {
		q["page"] = strconv.Itoa(page)
	}
	return q
}

// FilterProducts returns the products matching every enabled criterion.
func FilterProducts(items []Product, f ProductFilter) []Product {
	fields := f.SearchFields
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}
	query := strings.ToLower(f.Search)

	out := make([]Product, 0, len(items))
	for _, p := range items {
		if query != "" && !matchesSearch(p, fields, query) {
			continue
		}
		if f.CategoryID != 0 && !inCategory(p, f.CategoryID) {
			continue
		}
		price := effectivePrice(p)
		// an unparsable price never excludes a product
		if !math.IsNaN(price) {
			if f.MinPrice != 0 && price < f.MinPrice {
				continue
			}
			if f.MaxPrice != 0 && price > f.MaxPrice {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func matchesSearch(p Product, fields []string, query string) bool {
	for _, field := range fields {
		var v string
		switch field {
		case "name":
			v = p.Name
		case "sku":
			v = p.SKU
		case "slug":
			v = p.Slug
		case "description":
			v = p.Description
		case "short_description":
			v = p.ShortDescription
		case "status":
			v = p.Status
		}
		if v != "" && strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}

func inCategory(p Product, id int) bool {
	for _, c := range p.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// effectivePrice is the price, else the regular price, else 0.
func effectivePrice(p Product) float64 {
	s := p.Price
	if s == "" {
		s = p.RegularPrice
	}
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
