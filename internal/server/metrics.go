package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Labelled by registered route, never by raw path, so unknown URLs
	// cannot grow the series count.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardcmp_http_requests_total",
			Help: "HTTP requests served, by route and status code",
		},
		[]string{"route", "method", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boardcmp_http_request_duration_seconds",
			Help:    "Time to serve a request, by route",
			Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 15, 60},
		},
		[]string{"route"},
	)

	// Pass metrics
	passesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardcmp_passes_total",
			Help: "Total number of passes run",
		},
		[]string{"pass", "status"}, // pass: calibrate, rectify, compare, inspect
	)

	passDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boardcmp_pass_duration_seconds",
			Help:    "Pass duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"pass"},
	)

	anomalousPixels = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boardcmp_anomalous_pixels",
			Help:    "Number of pixels above the threshold per comparison",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000, 1000000},
		},
	)

	framesPerCapture = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boardcmp_frames_per_capture",
			Help:    "Frames read before every marker was seen",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	// Requests turned away by the concurrency limiter
	rejectedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boardcmp_rejected_requests_total",
			Help: "Total number of requests rejected because too many passes were running",
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boardcmp_upload_size_bytes",
			Help:    "Size of uploaded frames in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "boardcmp_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardcmp_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

func metricsHandler() http.Handler { return promhttp.Handler() }
