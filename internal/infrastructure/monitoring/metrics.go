package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one client instance.
type Metrics struct {
	// Connection metrics
	ConnectionUp    prometheus.Gauge
	ConnectAttempts prometheus.Counter
	Reconnects      prometheus.Counter
	PongLatency     prometheus.Histogram

	// Event metrics
	EventsTotal  *prometheus.CounterVec
	MessagesSent prometheus.Counter

	// Streaming metrics
	SessionsActive prometheus.Gauge
	TokensReceived prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector on its own registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith creates a metrics collector on the given registry.
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ConnectionUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connection_up",
			Help: "Whether the websocket connection is established (1) or not (0)",
		}),
		ConnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "realtime_connect_attempts_total",
			Help: "Total number of websocket dial attempts",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "realtime_reconnects_total",
			Help: "Total number of successful reconnections after a drop",
		}),
		PongLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "realtime_pong_latency_seconds",
			Help:    "Round-trip latency of ping/pong health checks",
			Buckets: prometheus.DefBuckets,
		}),

		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_events_total",
				Help: "Total inbound events by event name",
			},
			[]string{"event"},
		),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "realtime_messages_sent_total",
			Help: "Total send_message commands emitted",
		}),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_sessions_active",
			Help: "Number of live streaming sessions",
		}),
		TokensReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "realtime_tokens_received_total",
			Help: "Total streamed tokens received across all sessions",
		}),
	}
}

// Registry exposes the underlying registry for scraping or test
// assertions.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEvent increments the inbound event counter for an event name.
func (m *Metrics) RecordEvent(event string) {
	m.EventsTotal.WithLabelValues(event).Inc()
}
