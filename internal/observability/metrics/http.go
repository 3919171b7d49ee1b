package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	domainErrorsTotal *prometheus.CounterVec
	exportBytes       *prometheus.HistogramVec
	historyFailures   *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docprof",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docprof",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docprof",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	domainErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docprof",
			Subsystem: "domain",
			Name:      "errors_total",
			Help:      "Total failed operations by error kind.",
		},
		[]string{"service", "kind"},
	)
	exportBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docprof",
			Subsystem: "export",
			Name:      "register_bytes",
			Help:      "Size of exported register workbooks in bytes.",
			Buckets:   prometheus.ExponentialBuckets(4096, 4, 8),
		},
		[]string{"service"},
	)
	historyFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docprof",
			Subsystem: "history",
			Name:      "publish_failures_total",
			Help:      "Total history events that could not be handed to the audit collaborator.",
		},
		[]string{"service", "entity_type"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docprof",
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per outbound operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		domainErrorsTotal,
		exportBytes,
		historyFailures,
		breakerState,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		domainErrorsTotal: domainErrorsTotal,
		exportBytes:       exportBytes,
		historyFailures:   historyFailures,
		breakerState:      breakerState,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

var pathCollections = map[string]string{
	"profiles":  "{profile_id}",
	"fields":    "{field_id}",
	"documents": "{document_id}",
	"loans":     "{loan_id}",
	"approvals": "{approval_id}",
	"items":     "{item_id}",
}

var staticSegments = map[string]bool{"export": true, "reorder": true, "overdue": true}

// normalizePath replaces identifiers with placeholders to keep label cardinality bounded.
func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		placeholder, ok := pathCollections[parts[i-1]]
		if !ok || parts[i] == "" {
			continue
		}
		if _, isCollection := pathCollections[parts[i]]; isCollection || staticSegments[parts[i]] {
			continue
		}
		parts[i] = placeholder
	}
	return "/" + strings.Join(parts, "/")
}

func (m *HTTPServerMetrics) RecordDomainError(service, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.domainErrorsTotal.WithLabelValues(service, kind).Inc()
}

func (m *HTTPServerMetrics) RecordExport(service string, size int) {
	m.exportBytes.WithLabelValues(service).Observe(float64(size))
}

func (m *HTTPServerMetrics) RecordHistoryFailure(service, entityType string) {
	if entityType == "" {
		entityType = "unknown"
	}
	m.historyFailures.WithLabelValues(service, entityType).Inc()
}

// SetBreakerState records the gobreaker state name for operation.
func (m *HTTPServerMetrics) SetBreakerState(service, operation, state string) {
	m.breakerState.WithLabelValues(service, operation).Set(breakerStateValue(state))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
