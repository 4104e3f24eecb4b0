package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Crop session metrics
	cropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_cropper_crops_total",
			Help: "Total number of finished crop sessions",
		},
		[]string{"status"}, // status: success, cancelled, failed
	)

	composeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_cropper_compose_duration_seconds",
			Help:    "Time spent composing accepted crops",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	resultPixels = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_cropper_result_pixels",
			Help:    "Pixel count of composed results",
			Buckets: prometheus.ExponentialBuckets(64*64, 4, 8),
		},
	)

	// Preview metrics
	previewDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_cropper_preview_duration_seconds",
			Help:    "Time spent rendering previews",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	decodedPixels = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_cropper_decoded_pixels",
			Help:    "Pixels decoded per preview, after subsampling",
			Buckets: prometheus.ExponentialBuckets(64*64, 4, 8),
		},
	)

	suggestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_cropper_suggestions_total",
			Help: "Total number of region suggestions",
		},
		[]string{"status"}, // status: applied, none, error
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_cropper_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_cropper_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
