package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the service's Prometheus instruments. All methods
// are nil-safe so components can run without metrics in tests.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	cacheEvicts   prometheus.Counter
	cacheSize     prometheus.Gauge
	keyRotations  prometheus.Counter
	activeKeyAge  prometheus.Gauge
	storeDegraded prometheus.Gauge
	authorityReqs *prometheus.CounterVec
	hookFailures  *prometheus.CounterVec
}

// NewMetrics registers the instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_token_cache_hits_total",
			Help: "Token validation cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_token_cache_misses_total",
			Help: "Token validation cache misses.",
		}),
		cacheEvicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_token_cache_evictions_total",
			Help: "Entries evicted from the token validation cache.",
		}),
		cacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "warden_token_cache_entries",
			Help: "Current token validation cache size.",
		}),
		keyRotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_key_rotations_total",
			Help: "Completed signing key rotations.",
		}),
		activeKeyAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "warden_active_key_age_seconds",
			Help: "Age of the active signing key.",
		}),
		storeDegraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "warden_keystore_degraded",
			Help: "1 when key persistence is unavailable and keys live in memory only.",
		}),
		authorityReqs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_authority_requests_total",
			Help: "Upstream authority calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		hookFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_hook_failures_total",
			Help: "Hook callbacks that returned an error or panicked.",
		}, []string{"event"}),
	}
}

func (m *Metrics) ObserveHTTPRequest(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) CacheEviction() {
	if m == nil {
		return
	}
	m.cacheEvicts.Inc()
}

func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(n))
}

func (m *Metrics) KeyRotated() {
	if m == nil {
		return
	}
	m.keyRotations.Inc()
}

func (m *Metrics) SetActiveKeyAge(age time.Duration) {
	if m == nil {
		return
	}
	m.activeKeyAge.Set(age.Seconds())
}

func (m *Metrics) SetStoreDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.storeDegraded.Set(1)
	} else {
		m.storeDegraded.Set(0)
	}
}

func (m *Metrics) AuthorityRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.authorityReqs.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) HookFailure(event string) {
	if m == nil {
		return
	}
	m.hookFailures.WithLabelValues(event).Inc()
}
