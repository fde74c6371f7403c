package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a crawl.
type Metrics struct {
	FetchedTotal  *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
	RecordsTotal  *prometheus.CounterVec
	TasksTotal    *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	FrontierSize  prometheus.Gauge
	InFlight      prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the crawl collectors with reg. Passing a fresh
// prometheus.NewRegistry keeps parallel tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_pages_fetched_total",
			Help: "The total number of pages fetched, by page kind",
		}, []string{"kind"}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g., 'fetch_failed', 'missing_title', 'mirror_failed'
		RecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_records_total",
			Help: "Product records offered to the sink, by outcome",
		}, []string{"outcome"}), // 'written' or 'duplicate'
		TasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_task_transitions_total",
			Help: "Crawl task state transitions",
		}, []string{"state"}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Time spent fetching and parsing one page",
			Buckets: prometheus.DefBuckets,
		}),
		FrontierSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_frontier_size",
			Help: "Tasks waiting to be fetched",
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_in_flight",
			Help: "Tasks currently being fetched or processed",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_http_requests_total",
			Help: "Requests served by the status server",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_http_request_duration_seconds",
			Help:    "Duration of requests served by the status server",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncFetched(kind string) {
	m.FetchedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncErrorsTotal(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncRecords(outcome string) {
	m.RecordsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTransition(state string) {
	m.TasksTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	code := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route, code).Observe(seconds)
}
