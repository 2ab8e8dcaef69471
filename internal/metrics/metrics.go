// Package metrics provides Prometheus metrics for the call and transcription flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "virtualvisits"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Call automation callbacks
	CallbackEvents *prometheus.CounterVec

	// Transcription feed
	TranscriptionFrames  *prometheus.CounterVec
	TranscriptionDropped *prometheus.CounterVec
	UtterancesStored     prometheus.Counter
	TranscriptsPublished *prometheus.CounterVec

	// Platform calls
	PlatformRequests *prometheus.CounterVec
	PlatformLatency  *prometheus.HistogramVec

	// Notification fan-out
	Subscribers       prometheus.Gauge
	Broadcasts        *prometheus.CounterVec
	SubscribersPruned prometheus.Counter

	// Correlation store sizes
	TrackedConnections prometheus.Gauge
	TrackedSessions    prometheus.Gauge
}

// DefaultMetrics is registered with the global Prometheus registry.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallbackEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_events_total",
			Help:      "Call automation callback events received, by type",
		}, []string{"type"}),

		TranscriptionFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_frames_total",
			Help:      "Transcription websocket frames received, by kind",
		}, []string{"kind"}),
		TranscriptionDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_frames_dropped_total",
			Help:      "Transcription frames that could not be stored",
		}, []string{"reason"}),
		UtterancesStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_stored_total",
			Help:      "Utterances appended to a transcription session",
		}),
		TranscriptsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_published_total",
			Help:      "Final utterances handed to the transcript publisher",
		}, []string{"result"}),

		PlatformRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_requests_total",
			Help:      "Requests made to the communication platform",
		}, []string{"operation", "result"}),
		PlatformLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "platform_request_seconds",
			Help:      "Communication platform request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"operation"}),

		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_subscribers",
			Help:      "Open notification event streams",
		}),
		Broadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_broadcasts_total",
			Help:      "Notifications broadcast, by event name",
		}, []string{"event"}),
		SubscribersPruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_subscribers_pruned_total",
			Help:      "Subscribers removed because their stream could not keep up or had closed",
		}),

		TrackedConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_call_connections",
			Help:      "Call connections known to the correlation store",
		}),
		TrackedSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_transcription_sessions",
			Help:      "Transcription sessions known to the correlation store",
		}),
	}
}

// RecordPlatformRequest records one platform call and its latency.
func (m *Metrics) RecordPlatformRequest(operation string, err error, seconds float64) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.PlatformRequests.WithLabelValues(operation, result).Inc()
	m.PlatformLatency.WithLabelValues(operation).Observe(seconds)
}

// RecordStoreSize updates the correlation store gauges.
func (m *Metrics) RecordStoreSize(connections, sessions int) {
	m.TrackedConnections.Set(float64(connections))
	m.TrackedSessions.Set(float64(sessions))
}
