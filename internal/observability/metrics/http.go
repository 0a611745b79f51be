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

	searchTotal      *prometheus.CounterVec
	searchDuration   *prometheus.HistogramVec
	searchResults    *prometheus.HistogramVec
	combineTotal     *prometheus.CounterVec
	hierarchyTotal   *prometheus.CounterVec
	hierarchyBlocks  *prometheus.HistogramVec
	expansionTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphsearch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphsearch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "graphsearch",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphsearch",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed searches by input mode and status.",
		},
		[]string{"service", "mode", "status"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphsearch",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphsearch",
			Subsystem: "search",
			Name:      "result_count",
			Help:      "Distribution of result counts per successful search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"service", "mode"},
	)
	combineTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphsearch",
			Subsystem: "combine",
			Name:      "operations_total",
			Help:      "Total result-set combinations by set operation and status.",
		},
		[]string{"service", "operation", "status"},
	)
	hierarchyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphsearch",
			Subsystem: "hierarchy",
			Name:      "builds_total",
			Help:      "Total hierarchy builds by status.",
		},
		[]string{"service", "status"},
	)
	hierarchyBlocks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphsearch",
			Subsystem: "hierarchy",
			Name:      "block_count",
			Help:      "Distribution of blocks per built hierarchy.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	expansionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphsearch",
			Subsystem: "expand",
			Name:      "requests_total",
			Help:      "Total semantic expansion attempts by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchResults,
		combineTotal,
		hierarchyTotal,
		hierarchyBlocks,
		expansionTotal,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		searchTotal:     searchTotal,
		searchDuration:  searchDuration,
		searchResults:   searchResults,
		combineTotal:    combineTotal,
		hierarchyTotal:  hierarchyTotal,
		hierarchyBlocks: hierarchyBlocks,
		expansionTotal:  expansionTotal,
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

// normalizePath collapses identifier-carrying paths to a single label value.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/hierarchy/"):
		return "/v1/hierarchy/{block_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, mode string, resultCount int, duration time.Duration, err error) {
	if mode == "" {
		mode = "unknown"
	}
	m.searchTotal.WithLabelValues(service, mode, statusLabel(err)).Inc()
	if err == nil {
		m.searchDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
		m.searchResults.WithLabelValues(service, mode).Observe(float64(resultCount))
	}
}

func (m *HTTPServerMetrics) RecordCombine(service, operation string, err error) {
	if operation == "" {
		operation = "unknown"
	}
	m.combineTotal.WithLabelValues(service, operation, statusLabel(err)).Inc()
}

func (m *HTTPServerMetrics) RecordHierarchyBuild(service string, blockCount int, err error) {
	m.hierarchyTotal.WithLabelValues(service, statusLabel(err)).Inc()
	if err == nil {
		m.hierarchyBlocks.WithLabelValues(service).Observe(float64(blockCount))
	}
}

func (m *HTTPServerMetrics) RecordExpansion(service string, err error) {
	m.expansionTotal.WithLabelValues(service, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
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
