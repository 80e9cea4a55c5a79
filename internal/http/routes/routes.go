package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"

	"github.com/briangreenhill/wooadmin/cache"
	"github.com/briangreenhill/wooadmin/filters"
	"github.com/briangreenhill/wooadmin/internal/auth"
	"github.com/briangreenhill/wooadmin/internal/config"
	appmw "github.com/briangreenhill/wooadmin/internal/http/middleware"
	"github.com/briangreenhill/wooadmin/woocommerce"
)

const (
	sessionEmail = "admin_email"
	sessionNonce = "oauth_nonce"
)

// Enqueuer is the part of *asynq.Client the server uses
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	Router   *chi.Mux
	Sess     *scs.SessionManager
	Woo      *woocommerce.Client
	Cache    *cache.ResponseCache
	OAuth    *oauth2.Config
	State    auth.StateSigner
	Cfg      *config.Config
	Jobs     Enqueuer // optional; sweeps run inline without it
	Gatherer prometheus.Gatherer
}

type ServerOptions struct {
	Sess     *scs.SessionManager
	Woo      *woocommerce.Client
	Cache    *cache.ResponseCache
	Cfg      *config.Config
	Jobs     Enqueuer
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		Router:   r,
		Sess:     opts.Sess,
		Woo:      opts.Woo,
		Cache:    opts.Cache,
		Cfg:      opts.Cfg,
		Jobs:     opts.Jobs,
		Gatherer: gatherer,
		State:    auth.NewStateSigner([]byte(opts.Cfg.SessionSecret), 15*time.Minute),
	}
	s.OAuth = &oauth2.Config{
		ClientID:     opts.Cfg.OAuth.ClientID,
		ClientSecret: opts.Cfg.OAuth.ClientSecret,
		RedirectURL:  opts.Cfg.BaseURL + "/oauth/callback",
		Scopes:       []string{"openid", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  opts.Cfg.OAuth.AuthURL,
			TokenURL: opts.Cfg.OAuth.TokenURL,
		},
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/login", s.handleLogin)
	r.Get("/oauth/callback", s.handleOAuthCallback)
	r.Post("/logout", s.handleLogout)

	r.Group(func(pr chi.Router) {
		pr.Use(s.sessionToContext)
		pr.Use(appmw.RequireAuth)

		pr.Get("/api/products", s.handleProducts)
		pr.Put("/api/products/{id}", s.handleUpdateProduct)
		pr.Delete("/api/products/{id}", s.handleDeleteProduct)
		pr.Get("/api/orders", s.handleOrders)
		pr.Get("/api/customers", s.handleCustomers)
		pr.Get("/api/coupons", s.handleCoupons)
		pr.Get("/api/categories", s.handleCategories)

		pr.Get("/api/cache", s.handleCacheEntries)
		pr.Delete("/api/cache", s.handleCacheClear)
		pr.Post("/api/cache/invalidate", s.handleCacheInvalidate)
		pr.Post("/api/cache/sweep", s.handleCacheSweep)
	})

	return s
}

func (s *Server) sessionToContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email := s.Sess.GetString(r.Context(), sessionEmail); email != "" {
			// use the SAME key that RequireAuth checks
			r = r.WithContext(context.WithValue(r.Context(), appmw.AdminEmailKey, email))
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeStoreError reports a failed store call. Store auth and server
// problems are the gateway's, not the caller's.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("woocommerce call failed")

	var apiErr *woocommerce.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		writeError(w, r, http.StatusNotFound, apiErr.Message)
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest:
		writeError(w, r, http.StatusBadRequest, apiErr.Message)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, woocommerce.ErrUnreachable):
		writeError(w, r, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, r, http.StatusBadGateway, err.Error())
	}
}

// passthrough copies the first value of every query parameter
func passthrough(r *http.Request) map[string]string {
	q := map[string]string{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 && v[0] != "" {
			q[k] = v[0]
		}
	}
	return q
}

type listResponse[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func pageResponse[T any](p *woocommerce.Page[T]) listResponse[T] {
	return listResponse[T]{Items: p.Items, Total: p.Total, TotalPages: p.TotalPages}
}

type productsResponse struct {
	listResponse[woocommerce.Product]
	Page              int               `json:"page"`
	Filters           map[string]string `json:"filters"`
	ActiveFilterCount int               `json:"active_filter_count"`
}

// handleProducts serves the product list. A query carrying empty filter
// params is redirected to its canonical form so shared links stay stable.
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if canonical, ok := filters.Canonicalize(q); !ok {
		u := *r.URL
		u.RawQuery = canonical.Encode()
		http.Redirect(w, r, u.RequestURI(), http.StatusFound)
		return
	}

	st := filters.FromQuery(q)
	page := 1
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid page %q", p))
			return
		}
		page = n
	}

	params := woocommerce.ProductQuery(st, page)
	for _, k := range []string{"per_page", "orderby", "order", "status"} {
		if v := q.Get(k); v != "" {
			params[k] = v
		}
	}

	res, err := s.Woo.ListProducts(r.Context(), params)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	applied := map[string]string{}
	for k, v := range st.Query() {
		applied[k] = v[0]
	}
	writeJSON(w, r, http.StatusOK, productsResponse{
		listResponse:      pageResponse(res),
		Page:              page,
		Filters:           applied,
		ActiveFilterCount: st.ActiveFilterCount(),
	})
}

func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&fields); err != nil || len(fields) == 0 {
		writeError(w, r, http.StatusBadRequest, "body must be a JSON object of product fields")
		return
	}

	p, err := s.Woo.UpdateProduct(r.Context(), id, fields)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Int("product_id", id).Msg("product updated")
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	if _, err := s.Woo.DeleteProduct(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Int("product_id", id).Msg("product deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	res, err := s.Woo.ListOrders(r.Context(), passthrough(r))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, pageResponse(res))
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	res, err := s.Woo.ListCustomers(r.Context(), passthrough(r))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, pageResponse(res))
}

func (s *Server) handleCoupons(w http.ResponseWriter, r *http.Request) {
	res, err := s.Woo.ListCoupons(r.Context(), passthrough(r))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, pageResponse(res))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.Woo.Categories(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cats)
}
