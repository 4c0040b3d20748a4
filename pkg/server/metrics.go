package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Training run outcomes recorded by [Metrics.RecordTraining].
const (
	TrainingAccepted  = "accepted"
	TrainingRefused   = "refused"
	TrainingCompleted = "completed"
)

// Metrics holds the Prometheus instruments for one hub. Every Metrics owns
// its own registry, so two hubs in the same process never collide on
// collector registration.
type Metrics struct {
	registry *prometheus.Registry

	ChunksProcessed prometheus.Counter
	FramesProduced  prometheus.Counter
	ActiveSessions  prometheus.Gauge
	WSClients       prometheus.Gauge
	TrainingRuns    *prometheus.CounterVec
	ChunkLatency    prometheus.Histogram
}

// NewMetrics creates the instrument set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChunksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "auravis_chunks_processed_total",
			Help: "Total number of audio chunks processed.",
		}),
		FramesProduced: factory.NewCounter(prometheus.CounterOpts{
			Name: "auravis_frames_produced_total",
			Help: "Total number of visualization frames produced.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "auravis_active_sessions",
			Help: "Number of live visualization sessions.",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "auravis_websocket_clients",
			Help: "Number of connected websocket clients.",
		}),
		TrainingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auravis_training_runs_total",
			Help: "Training runs by outcome (accepted, refused, completed).",
		}, []string{"outcome"}),
		ChunkLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "auravis_chunk_latency_seconds",
			Help:    "Wall time spent turning one audio chunk into a frame.",
			Buckets: prometheus.ExponentialBuckets(1e-4, 2, 12),
		}),
	}
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordChunk counts one processed chunk and its latency.
func (m *Metrics) RecordChunk(d time.Duration) {
	m.ChunksProcessed.Inc()
	m.ChunkLatency.Observe(d.Seconds())
}

// RecordFrame counts one produced frame.
func (m *Metrics) RecordFrame() {
	m.FramesProduced.Inc()
}

// RecordTraining counts one training run with its outcome.
func (m *Metrics) RecordTraining(outcome string) {
	m.TrainingRuns.WithLabelValues(outcome).Inc()
}
