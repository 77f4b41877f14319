// Package metrics registers the prometheus counters and histograms exposed
// at /api/metrics (spec.md §4.7 expansion): HTTP request counts and fetch
// page latency, grounded on the teacher's promauto-factory construction
// pattern, trimmed to the two concerns this module actually has.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector this process registers.
type Metrics struct {
	HTTPRequestsTotal *prometheus.CounterVec
	FetchPagesTotal   prometheus.Counter
	FetchPageDuration prometheus.Histogram
}

// New creates and registers all collectors against registry (or the default
// registerer if nil).
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealflow_http_requests_total",
				Help: "Total number of HTTP requests served by the local API",
			},
			[]string{"method", "path", "status"},
		),
		FetchPagesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mealflow_fetch_pages_total",
				Help: "Total number of remote pages fetched by the fetch coordinator",
			},
		),
		FetchPageDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mealflow_fetch_page_duration_seconds",
				Help:    "Latency of a single remote page fetch",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
	}
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusLabel(status)).Inc()
}

// ObserveFetchPage records one remote page fetch and its latency.
func (m *Metrics) ObserveFetchPage(duration time.Duration) {
	if m == nil {
		return
	}
	m.FetchPagesTotal.Inc()
	m.FetchPageDuration.Observe(duration.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
