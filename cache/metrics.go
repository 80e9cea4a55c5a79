package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts cache outcomes. A nil *Metrics records nothing.
type Metrics struct {
	lookups   *prometheus.CounterVec
	writes    *prometheus.CounterVec
	evictions prometheus.Counter
}

// NewMetrics registers the cache collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wooadmin_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss, expired, corrupt).",
		}, []string{"result"}),
		writes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wooadmin_cache_writes_total",
			Help: "Cache writes by result (ok, retried, dropped).",
		}, []string{"result"}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "wooadmin_cache_evictions_total",
			Help: "Entries removed by the stale sweep.",
		}),
	}
}

func (m *Metrics) lookup(s Status) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) write(result string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(result).Inc()
}

func (m *Metrics) evicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.evictions.Add(float64(n))
}
