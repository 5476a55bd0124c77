// Package metrics provides Prometheus metrics for door-studio.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "door_studio",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	// HTTPRequestDuration measures HTTP handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "door_studio",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// EditsTotal counts calls to the image-editing provider by outcome.
	EditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "door_studio",
			Name:      "edits_total",
			Help:      "Total number of image edit requests sent upstream",
		},
		[]string{"provider", "status"},
	)

	// EditDuration measures provider round-trip time. Image edits are slow,
	// so the buckets reach a minute.
	EditDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "door_studio",
			Name:      "edit_duration_seconds",
			Help:      "Duration of upstream image edit calls in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"provider"},
	)

	// CompositionsTotal counts server-side compositions by operation.
	CompositionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "door_studio",
			Name:      "compositions_total",
			Help:      "Total number of letterbox and mask compositions",
		},
		[]string{"operation"},
	)

	// ErrorsTotal counts errors by operation and kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "door_studio",
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"operation", "kind"},
	)
)

// RecordHTTP records a finished HTTP request.
func RecordHTTP(route, code string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(route, code).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration)
}

// RecordEdit records an upstream edit call.
func RecordEdit(provider, status string, duration float64) {
	EditsTotal.WithLabelValues(provider, status).Inc()
	EditDuration.WithLabelValues(provider).Observe(duration)
}

// RecordComposition records a server-side composition.
func RecordComposition(operation string) {
	CompositionsTotal.WithLabelValues(operation).Inc()
}

// RecordError records an error.
func RecordError(operation, kind string) {
	ErrorsTotal.WithLabelValues(operation, kind).Inc()
}
