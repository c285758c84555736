package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors behind a private registry
// so tests can build isolated instances.
type Metrics struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	ReportsComputed prometheus.Counter
	ReportCacheHits prometheus.Counter
	RecordsIngested prometheus.Counter
	InsightRequests prometheus.Counter
	InsightFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pinepulse_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "path", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pinepulse_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	reportsComputed := prometheus.NewCounter(prometheus.CounterOpts{Name: "pinepulse_reports_computed_total"})
	reportCacheHits := prometheus.NewCounter(prometheus.CounterOpts{Name: "pinepulse_report_cache_hits_total"})
	recordsIngested := prometheus.NewCounter(prometheus.CounterOpts{Name: "pinepulse_records_ingested_total"})
	insightRequests := prometheus.NewCounter(prometheus.CounterOpts{Name: "pinepulse_insight_requests_total"})
	insightFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "pinepulse_insight_failures_total"})

	r.MustRegister(httpRequests, httpDuration, reportsComputed, reportCacheHits, recordsIngested, insightRequests, insightFailures)

	return &Metrics{
		reg:             r,
		HTTPRequests:    httpRequests,
		HTTPDuration:    httpDuration,
		ReportsComputed: reportsComputed,
		ReportCacheHits: reportCacheHits,
		RecordsIngested: recordsIngested,
		InsightRequests: insightRequests,
		InsightFailures: insightFailures,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, statusLabel(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
