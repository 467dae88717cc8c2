package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Authorization-path metrics.
var (
	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization gate decisions by route policy and outcome.",
		},
		[]string{"policy", "outcome"},
	)

	claimCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_claim_cache_lookups_total",
			Help: "Session claim cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)

	storeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_store_failures_total",
			Help: "Credential store failures observed on the authorization path.",
		},
		[]string{"op"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authzDecisions, claimCacheLookups, storeFailures,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthzDecision records a single gate decision.
func AuthzDecision(policy, outcome string) {
	authzDecisions.WithLabelValues(policy, outcome).Inc()
}

// ClaimCacheHit and ClaimCacheMiss track claim cache effectiveness.
func ClaimCacheHit()  { claimCacheLookups.WithLabelValues("hit").Inc() }
func ClaimCacheMiss() { claimCacheLookups.WithLabelValues("miss").Inc() }

// StoreFailure records a credential store error seen during an authorization
// decision; the decision itself fails closed.
func StoreFailure(op string) {
	storeFailures.WithLabelValues(op).Inc()
}

// CanonicalPath collapses per-user path segments so metric label cardinality
// stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, "/v1/admin/users/"); ok {
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		if len(parts) == 2 && parts[0] != "" {
			return "/v1/admin/users/:id/" + parts[1]
		}
	}
	return path
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
