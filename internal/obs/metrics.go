package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP and auth metrics
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

	authEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_auth_events_total",
			Help: "Authentication operations by kind and outcome.",
		},
		[]string{"op", "outcome"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_ready",
		Help: "1 when the last readiness probe succeeded.",
	})

	initOnce sync.Once
)

// Init registers the metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, authEventsTotal, readyGauge)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthEvent counts an auth operation outcome ("ok", "rejected", "error").
func AuthEvent(op, outcome string) {
	authEventsTotal.WithLabelValues(op, outcome).Inc()
}

// SetReady records the outcome of a readiness probe.
func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// Instrument measures request count, latency and in-flight requests.
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

var knownPaths = map[string]struct{}{
	"/metrics":                {},
	"/healthz":                {},
	"/readyz":                 {},
	"/auth/me":                {},
	"/auth/login":             {},
	"/auth/register":          {},
	"/auth/logout":            {},
	"/auth/send-verification": {},
	"/auth/verify-code":       {},
	"/auth/profile":           {},
	"/auth/forgot-password":   {},
	"/auth/reset-password":    {},
}

// CanonicalPath bounds label cardinality: unknown paths collapse to "other".
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "/" {
		return "/"
	}
	if len(raw) > 1 {
		raw = strings.TrimSuffix(raw, "/")
	}
	if _, ok := knownPaths[raw]; ok {
		return raw
	}
	return "other"
}

// statusWriter records the response code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
