package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satexplorer_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satexplorer_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	catalogRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satexplorer_catalog_requests_total",
			Help: "Catalog cache reads by outcome (fresh, stale, miss).",
		},
		[]string{"outcome"},
	)

	catalogFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satexplorer_catalog_fetches_total",
			Help: "Catalog backend fetch attempts by result.",
		},
		[]string{"result"},
	)

	catalogRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satexplorer_catalog_retries_total",
		Help: "Catalog fetch attempts beyond the first within one load.",
	})

	catalogLoadSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satexplorer_catalog_load_duration_seconds",
		Help:    "Duration of successful catalog loads including retries.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	catalogEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satexplorer_catalog_entries",
		Help: "Number of entries in the current catalog snapshot.",
	})

	catalogAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satexplorer_catalog_age_seconds",
		Help: "Age of the current catalog snapshot.",
	})

	selectionSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satexplorer_selection_size",
		Help: "Number of currently selected objects.",
	})

	selectionRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satexplorer_selection_rejected_total",
		Help: "Add attempts ignored because the selection was full.",
	})

	selectionPersistErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satexplorer_selection_persist_errors_total",
		Help: "Failed writes of the selection to durable storage.",
	})

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satexplorer_streams_active",
		Help: "Open selection SSE streams.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satexplorer_stream_messages_total",
		Help: "SSE messages sent.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satexplorer_stream_errors_total",
			Help: "SSE errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		catalogRequestsTotal,
		catalogFetchesTotal,
		catalogRetriesTotal,
		catalogLoadSeconds,
		catalogEntries,
		catalogAgeSeconds,
		selectionSize,
		selectionRejectedTotal,
		selectionPersistErrorsTotal,
		streamsActive,
		streamMessagesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncCatalogRequests(outcome string) { catalogRequestsTotal.WithLabelValues(outcome).Inc() }
func IncCatalogFetches(result string) { catalogFetchesTotal.WithLabelValues(result).Inc() }
func IncCatalogRetries() { catalogRetriesTotal.Inc() }
func SetCatalogEntries(n int) { catalogEntries.Set(float64(n)) }
func SetCatalogAge(seconds float64) { catalogAgeSeconds.Set(seconds) }

func ObserveCatalogLoadDuration(d time.Duration) { catalogLoadSeconds.Observe(d.Seconds()) }

func SetSelectionSize(n int) { selectionSize.Set(float64(n)) }
func IncSelectionRejected() { selectionRejectedTotal.Inc() }
func IncSelectionPersistErrors() { selectionPersistErrorsTotal.Inc() }
func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }
func IncStreamMessages() { streamMessagesTotal.Inc() }
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are the exact paths reported as their own label.
var knownRoutes = map[string]bool{
	"/":                          true,
	"/selected":                  true,
	"/healthz":                   true,
	"/readyz":                    true,
	"/metrics":                   true,
	"/api/v1/catalog":            true,
	"/api/v1/catalog/status":     true,
	"/api/v1/catalog/refresh":    true,
	"/api/v1/selection":          true,
	"/api/v1/selection/bulk":     true,
	"/api/v1/selection/overview": true,
	"/api/v1/stream/selection":   true,
}

// normalizeRoute maps a request path to a bounded label set so per-object
// paths and scanner noise do not explode label cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/selection/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/selection/{id}"
	}
	if strings.HasPrefix(path, "/static/") {
		return "/static/"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so SSE handlers behind the middleware can stream.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
