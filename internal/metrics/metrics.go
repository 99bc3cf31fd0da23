// Package metrics exposes Prometheus collectors for the console.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailure  = "failure"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	submissionsTotal           *prometheus.CounterVec
	pollsTotal                 *prometheus.CounterVec
	geometryLoadsTotal         *prometheus.CounterVec
	selectionSize              prometheus.Gauge
	wsClients                  prometheus.Gauge

	once sync.Once
)

// Init registers the collectors on the default registry. It is safe to call
// multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boamp_console_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boamp_console_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boamp_console_submissions_total",
				Help: "Job submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		pollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boamp_console_polls_total",
				Help: "Progress polls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		geometryLoadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boamp_console_geometry_loads_total",
				Help: "Department boundary loads, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		selectionSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "boamp_console_selected_departments",
				Help: "Number of departments currently selected.",
			},
		)

		wsClients = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "boamp_console_websocket_clients",
				Help: "Number of connected websocket clients.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSubmission counts a submission attempt.
func ObserveSubmission(outcome string) {
	Init()
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObservePoll counts a progress poll.
func ObservePoll(outcome string) {
	Init()
	pollsTotal.WithLabelValues(outcome).Inc()
}

// ObserveGeometryLoad counts a boundary load.
func ObserveGeometryLoad(outcome string) {
	Init()
	geometryLoadsTotal.WithLabelValues(outcome).Inc()
}

// SetSelectionSize records the current selection size.
func SetSelectionSize(n int) {
	Init()
	selectionSize.Set(float64(n))
}

// IncWSClients increments the websocket client gauge.
func IncWSClients() {
	Init()
	wsClients.Inc()
}

// DecWSClients decrements the websocket client gauge.
func DecWSClients() {
	Init()
	wsClients.Dec()
}
