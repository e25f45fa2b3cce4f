package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry        *prometheus.Registry
	requestCounter  *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	reportsExported *prometheus.CounterVec
	uploadFailures  *prometheus.CounterVec
	piecesRecorded  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canteen_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canteen_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		reportsExported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canteen_reports_exported_total",
				Help: "Reports aggregated, rendered and uploaded, by kind",
			},
			[]string{"kind"},
		),
		uploadFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canteen_report_upload_failures_total",
				Help: "Report uploads or presigns that failed",
			},
			[]string{"kind"},
		),
		piecesRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "canteen_sales_pieces_recorded_total",
				Help: "Pieces recorded through sales submissions",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCounter,
		m.requestLatency,
		m.reportsExported,
		m.uploadFailures,
		m.piecesRecorded,
	)
	return m
}

func (m *Metrics) ObserveRequest(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ReportExported(kind string) {
	if m == nil {
		return
	}
	m.reportsExported.WithLabelValues(kind).Inc()
}

func (m *Metrics) UploadFailed(kind string) {
	if m == nil {
		return
	}
	m.uploadFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) PiecesRecorded(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.piecesRecorded.Add(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
