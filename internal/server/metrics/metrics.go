// Package metrics declares the Prometheus instruments exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophgram_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gophgram_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gophgram_users_registered_total",
			Help: "Total users registered",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gophgram_messages_sent_total",
			Help: "Total messages recorded by the delivery ledger",
		},
	)

	// Push transport metrics
	PushChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gophgram_push_channels",
			Help: "Currently attached push channels",
		},
	)

	PushWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophgram_push_writes_total",
			Help: "Push channel writes by outcome",
		},
		[]string{"outcome"}, // "ok" or "error"
	)
)
