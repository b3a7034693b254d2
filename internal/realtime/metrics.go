// internal/realtime/metrics.go
// Prometheus metrics for the push channel

package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_push_events_total",
			Help: "Push events received, by envelope type",
		},
		[]string{"type"},
	)

	framesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_push_frames_dropped_total",
			Help: "Inbound frames dropped because they failed to decode",
		},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_push_reconnects_total",
			Help: "Reconnect attempts after an unexpected closure",
		},
	)

	subscriberDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_push_subscriber_drops_total",
			Help: "Events dropped because a subscriber fell behind",
		},
	)

	connectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_push_connection_state",
			Help: "Push connection state (0 idle, 1 connecting, 2 open, 3 closed, 4 reconnecting)",
		},
	)
)
