package observability

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
	ticketsIssued   *prometheus.CounterVec
	ticketsDeleted  prometheus.Counter
	contentBound    *prometheus.CounterVec
	contentCleared  prometheus.Counter
	uploadFailures  *prometheus.CounterVec
	viewerStatus    *prometheus.CounterVec
	cacheRequests   *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 10, 30},
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Error responses by route, method and error code.",
		}, []string{"path", "method", "code"}),
		ticketsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets created, by origin (single, batch, letter, request).",
		}, []string{"origin"}),
		ticketsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickets_deleted_total",
			Help: "Tickets removed by operators.",
		}),
		contentBound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_bound_total",
			Help: "Successful content binds by kind.",
		}, []string{"kind"}),
		contentCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "content_cleared_total",
			Help: "Content clears that removed a payload.",
		}),
		uploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asset_upload_failures_total",
			Help: "Failed asset uploads by asset kind.",
		}, []string{"kind"}),
		viewerStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewer_status_total",
			Help: "Viewer projections served by resulting state.",
		}, []string{"state"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Ticket cache hits and misses.",
		}, []string{"cache", "result"}),
	}
	m.registry.MustRegister(
		m.requestCount, m.requestDuration, m.errorCount,
		m.ticketsIssued, m.ticketsDeleted, m.contentBound, m.contentCleared,
		m.uploadFailures, m.viewerStatus, m.cacheRequests,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

func (m *Metrics) TicketsIssued(origin string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ticketsIssued.WithLabelValues(norm(origin)).Add(float64(n))
}

func (m *Metrics) TicketsDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ticketsDeleted.Add(float64(n))
}

func (m *Metrics) ContentBound(kind string) {
	if m == nil {
		return
	}
	m.contentBound.WithLabelValues(norm(kind)).Inc()
}

func (m *Metrics) ContentCleared() {
	if m == nil {
		return
	}
	m.contentCleared.Inc()
}

func (m *Metrics) UploadFailed(kind string) {
	if m == nil {
		return
	}
	m.uploadFailures.WithLabelValues(norm(kind)).Inc()
}

func (m *Metrics) ViewerStatus(state string) {
	if m == nil {
		return
	}
	m.viewerStatus.WithLabelValues(norm(state)).Inc()
}

// CacheRequest records a cache lookup result ("hit" or "miss").
func (m *Metrics) CacheRequest(cache, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(norm(cache), norm(result)).Inc()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
