package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Session metrics
	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_streams_total",
			Help: "Completion streams by terminal state",
		},
		[]string{"state"}, // completed, cancelled, failed
	)

	StreamChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_stream_chunks_total",
			Help: "Deltas applied to in-progress messages",
		},
	)

	StreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_stream_duration_seconds",
			Help:    "Time from request to terminal stream state",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// Storage metrics
	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_commits_total",
			Help: "Exchange commits by result",
		},
		[]string{"result"}, // ok, error
	)

	ObserverDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_observer_deliveries_total",
			Help: "Count triples delivered to the change observer callback",
		},
	)
)
