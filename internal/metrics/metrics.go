// Package metrics registers the Prometheus collectors for codescan.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture metrics
	FramesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_frames_processed_total",
			Help: "Total number of camera frames processed",
		},
		[]string{"camera"},
	)

	FrameErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codescan_frame_errors_total",
			Help: "Total number of failed frame reads",
		},
	)

	DecodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codescan_decode_duration_seconds",
			Help:    "Time spent decoding one frame",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
	)

	CodesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_codes_decoded_total",
			Help: "Total number of codes delivered to the host",
		},
		[]string{"symbology"},
	)

	// Dispatcher metrics
	Batches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_result_batches_total",
			Help: "Result batches by outcome",
		},
		[]string{"outcome"}, // outcome: delivered, empty, paused
	)

	// Session metrics
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_session_transitions_total",
			Help: "Session state transitions",
		},
		[]string{"from", "to"},
	)

	Transactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_configuration_transactions_total",
			Help: "Capture session configuration transactions",
		},
		[]string{"result"}, // result: committed, failed
	)

	Stills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_still_captures_total",
			Help: "Still image captures",
		},
		[]string{"result"},
	)

	// HTTP metrics
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codescan_websocket_active_connections",
			Help: "Number of active result feed connections",
		},
	)

	PluginExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_plugin_executions_total",
			Help: "Plugin executions triggered by scans",
		},
		[]string{"plugin", "status"},
	)
)
