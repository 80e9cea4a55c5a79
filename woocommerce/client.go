// Package woocommerce is a client for the WooCommerce REST API (v3) that
// reads through a cache.ResponseCache.
package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/briangreenhill/wooadmin/cache"
)

const apiPath = "/wp-json/wc/v3"

// Endpoints, also used as cache endpoints.
const (
	EndpointProducts   = "/products"
	EndpointOrders     = "/orders"
	EndpointCustomers  = "/customers"
	EndpointCoupons    = "/coupons"
	EndpointCategories = "/products/categories"
)

type Client struct {
	http    *http.Client
	baseURL *url.URL
	key     string
	secret  string

	cache   *cache.ResponseCache // optional; nil means no cache
	limiter *rate.Limiter        // optional
	log     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithCache(rc *cache.ResponseCache) Option {
	return func(c *Client) { c.cache = rc }
}

// WithRateLimit caps outgoing requests at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewCachingHTTPClient returns an HTTP client that revalidates responses
// carrying an ETag instead of downloading them again.
func NewCachingHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   timeout,
	}
}

// New creates a client for the store at storeURL ("https://shop.example").
func New(storeURL, key, secret string, opts ...Option) (*Client, error) {
	if storeURL == "" || key == "" || secret == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(strings.TrimRight(storeURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store URL %q", storeURL)
	}
	u.Path = path.Join(u.Path, apiPath)

	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
		key:     key,
		secret:  secret,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Cache returns the response cache, or nil.
func (c *Client) Cache() *cache.ResponseCache { return c.cache }

func (c *Client) newReq(ctx context.Context, method, p string, q map[string]string, body any) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	qq := url.Values{}
	for k, v := range q {
		qq.Set(k, v)
	}
	u.RawQuery = qq.Encode()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doJSON performs one request and decodes a 2xx body into out.
func (c *Client) doJSON(ctx context.Context, method, p string, q map[string]string, body, out any) (http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := c.newReq(ctx, method, p, q, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("endpoint", p).
		Int("status", resp.StatusCode).
		Bool("revalidated", resp.Header.Get(httpcache.XFromCache) != "").
		Dur("took", time.Since(start)).
		Msg("woocommerce request")

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(method, p, resp.StatusCode, b)
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			return nil, fmt.Errorf("%s %s: decode response: %w", method, p, err)
		}
	}
	return resp.Header, nil
}

// cached reads endpoint+params through the response cache, falling back
// to fetch and storing its result.
func cached[T any](ctx context.Context, c *Client, endpoint string, params map[string]string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	var out T
	if c.cache != nil && c.cache.GetInto(ctx, endpoint, params, ttl, &out) {
		return out, nil
	}
	out, err := fetch()
	if err != nil {
		return out, err
	}
	if c.cache != nil {
		c.cache.Set(ctx, endpoint, params, out)
	}
	return out, nil
}

func list[T any](ctx context.Context, c *Client, endpoint string, defaults, q map[string]string, ttl time.Duration) (*Page[T], error) {
	params := make(map[string]string, len(defaults)+len(q))
	for k, v := range defaults {
		params[k] = v
	}
	for k, v := range q {
		if v == "" {
			delete(params, k)
			continue
		}
		params[k] = v
	}

	page, err := cached(ctx, c, endpoint, params, ttl, func() (Page[T], error) {
		var items []T
		h, err := c.doJSON(ctx, http.MethodGet, endpoint, params, nil, &items)
		if err != nil {
			return Page[T]{}, err
		}
		if items == nil {
			items = []T{}
		}
		return Page[T]{
			Items:      items,
			Total:      headerInt(h, "X-WP-Total", 0),
			TotalPages: headerInt(h, "X-WP-TotalPages", 1),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func headerInt(h http.Header, name string, fallback int) int {
	n, err := strconv.Atoi(h.Get(name))
	if err != nil {
		return fallback
	}
	return n
}

// ListProducts returns one page of products. q holds WooCommerce list
// parameters (page, per_page, search, category, min_price, max_price, ...).
func (c *Client) ListProducts(ctx context.Context, q map[string]string) (*Page[Product], error) {
	return list[Product](ctx, c, EndpointProducts, map[string]string{"per_page": "24", "page": "1"}, q, cache.TTLMedium)
}

// ProductCount returns the total number of products.
func (c *Client) ProductCount(ctx context.Context) (int, error) {
	p, err := list[Product](ctx, c, EndpointProducts, map[string]string{"per_page": "1", "page": "1"}, nil, cache.TTLMedium)
	if err != nil {
		return 0, err
	}
	return p.Total, nil
}

func (c *Client) GetProduct(ctx context.Context, id int) (*Product, error) {
	endpoint := fmt.Sprintf("%s/%d", EndpointProducts, id)
	p, err := cached(ctx, c, endpoint, map[string]string{}, cache.TTLMedium, func() (Product, error) {
		var p Product
		_, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil, &p)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct creates a product from fields and drops cached product pages.
func (c *Client) CreateProduct(ctx context.Context, fields map[string]any) (*Product, error) {
	var p Product
	if _, err := c.doJSON(ctx, http.MethodPost, EndpointProducts, nil, fields, &p); err != nil {
		return nil, err
	}
	c.invalidate(ctx, EndpointProducts)
	return &p, nil
}

// UpdateProduct applies fields to product id and drops cached product pages.
func (c *Client) UpdateProduct(ctx context.Context, id int, fields map[string]any) (*Product, error) {
	var p Product
	endpoint := fmt.Sprintf("%s/%d", EndpointProducts, id)
	if _, err := c.doJSON(ctx, http.MethodPut, endpoint, nil, fields, &p); err != nil {
		return nil, err
	}
	c.invalidate(ctx, EndpointProducts)
	return &p, nil
}

// DeleteProduct permanently deletes product id and drops cached product
// pages.
func (c *Client) DeleteProduct(ctx context.Context, id int) (*Product, error) {
	var p Product
	endpoint := fmt.Sprintf("%s/%d", EndpointProducts, id)
	if _, err := c.doJSON(ctx, http.MethodDelete, endpoint, map[string]string{"force": "true"}, nil, &p); err != nil {
		return nil, err
	}
	c.invalidate(ctx, EndpointProducts)
	return &p, nil
}

// ListOrders returns one page of orders, newest first.
func (c *Client) ListOrders(ctx context.Context, q map[string]string) (*Page[Order], error) {
	return list[Order](ctx, c, EndpointOrders, map[string]string{
		"per_page": "20",
		"page":     "1",
		"orderby":  "date",
		"order":    "desc",
	}, q, cache.TTLShort)
}

func (c *Client) GetOrder(ctx context.Context, id int) (*Order, error) {
	endpoint := fmt.Sprintf("%s/%d", EndpointOrders, id)
	o, err := cached(ctx, c, endpoint, map[string]string{}, cache.TTLShort, func() (Order, error) {
		var o Order
		_, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil, &o)
		return o, err
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrder applies fields (typically status) to order id.
func (c *Client) UpdateOrder(ctx context.Context, id int, fields map[string]any) (*Order, error) {
	var o Order
	endpoint := fmt.Sprintf("%s/%d", EndpointOrders, id)
	if _, err := c.doJSON(ctx, http.MethodPut, endpoint, nil, fields, &o); err != nil {
		return nil, err
	}
	c.invalidate(ctx, EndpointOrders)
	return &o, nil
}

func (c *Client) ListCustomers(ctx context.Context, q map[string]string) (*Page[Customer], error) {
	return list[Customer](ctx, c, EndpointCustomers, map[string]string{"per_page": "50", "page": "1"}, q, cache.TTLMedium)
}

func (c *Client) ListCoupons(ctx context.Context, q map[string]string) (*Page[Coupon], error) {
	return list[Coupon](ctx, c, EndpointCoupons, map[string]string{"per_page": "50", "page": "1"}, q, cache.TTLLong)
}

// Categories returns up to 100 product categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	p, err := list[Category](ctx, c, EndpointCategories, map[string]string{"per_page": "100"}, nil, cache.TTLVeryLong)
	if err != nil {
		return nil, err
	}
	return p.Items, nil
}

// TestConnection fetches a single product, bypassing the cache.
func (c *Client) TestConnection(ctx context.Context) error {
	var items []json.RawMessage
	_, err := c.doJSON(ctx, http.MethodGet, EndpointProducts, map[string]string{"per_page": "1"}, nil, &items)
	return err
}

func (c *Client) invalidate(ctx context.Context, endpoint string) {
	if c.cache != nil {
		c.cache.Invalidate(ctx, endpoint)
	}
}
