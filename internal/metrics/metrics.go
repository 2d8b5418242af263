// Package metrics holds the process-wide Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visage_ticks_total",
			Help: "Total number of engine ticks",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visage_tick_duration_seconds",
			Help:    "Time spent computing one engine tick",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		},
	)

	ActiveLayers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visage_active_layers",
			Help: "Number of live animation layers",
		},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visage_commands_total",
			Help: "Commands handled by the engine, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	MailboxEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visage_mailbox_evictions_total",
			Help: "Commands dropped because the mailbox was full",
		},
	)

	MalformedInput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visage_malformed_input_total",
			Help: "Input lines or documents that could not be decoded",
		},
		[]string{"source"},
	)

	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visage_frames_sent_total",
			Help: "Frames written, by sink",
		},
		[]string{"sink"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visage_frames_dropped_total",
			Help: "Frames a sink could not deliver",
		},
		[]string{"sink"},
	)

	Valence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visage_sentiment_valence",
			Help: "Current sentiment valence",
		},
	)

	Arousal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visage_sentiment_arousal",
			Help: "Current sentiment arousal",
		},
	)

	LipSyncFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visage_lipsync_frames_total",
			Help: "Lip-sync frames delivered",
		},
	)

	Reloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visage_reloads_total",
			Help: "Configuration reloads, by document and outcome",
		},
		[]string{"document", "outcome"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
