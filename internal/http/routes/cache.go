package routes

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	appmw "github.com/briangreenhill/wooadmin/internal/http/middleware"
	"github.com/briangreenhill/wooadmin/internal/jobs"
)

type cacheEntry struct {
	Key        string  `json:"key"`
	Endpoint   string  `json:"endpoint"`
	AgeSeconds float64 `json:"age_seconds"`
	Size       int     `json:"size"`
	Corrupt    bool    `json:"corrupt,omitempty"`
}

func (s *Server) handleCacheEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.Cache.Entries(r.Context())
	out := make([]cacheEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, cacheEntry{
			Key:        e.Key,
			Endpoint:   e.Endpoint,
			AgeSeconds: e.Age.Seconds(),
			Size:       e.Size,
			Corrupt:    e.Corrupt,
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"prefix": s.Cache.Prefix(), "entries": out})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.Cache.ClearAll(r.Context())
	hlog.FromRequest(r).Info().Msg("[cache] cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if !strings.HasPrefix(endpoint, "/") {
		writeError(w, r, http.StatusBadRequest, "endpoint must be a path such as /products")
		return
	}
	s.Cache.Invalidate(r.Context(), endpoint)
	hlog.FromRequest(r).Info().Str("endpoint", endpoint).Msg("[cache] invalidated")
	w.WriteHeader(http.StatusNoContent)
}

// handleCacheSweep queues a stale sweep, or runs it inline when no queue
// is configured.
func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	if s.Jobs == nil {
		n := s.Cache.ClearStale(r.Context())
		writeJSON(w, r, http.StatusOK, map[string]int{"cleared": n})
		return
	}

	email, _ := r.Context().Value(appmw.AdminEmailKey).(string)
	task, err := jobs.NewCacheSweepTask(jobs.CacheSweepPayload{RequestedBy: email})
	if err != nil {
		log.Error().Err(err).Msg("failed to build sweep task")
		writeError(w, r, http.StatusInternalServerError, "could not queue sweep")
		return
	}
	info, err := s.Jobs.Enqueue(task)
	if err != nil {
		log.Error().Err(err).Msg("[asynq] enqueue failed")
		writeError(w, r, http.StatusServiceUnavailable, "could not queue sweep")
		return
	}
	log.Info().Str("task_id", info.ID).Str("queue", info.Queue).Msg("[asynq] enqueued sweep")
	writeJSON(w, r, http.StatusAccepted, map[string]string{"task_id": info.ID})
}
