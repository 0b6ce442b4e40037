// Package telemetry exposes client-side playback metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "weradio"

var (
	// SessionsCreatedTotal counts live sessions acquired.
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Live sessions acquired.",
	})

	// SessionsDestroyedTotal counts live sessions torn down.
	SessionsDestroyedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_destroyed_total",
		Help:      "Live sessions destroyed.",
	})

	// SessionRecoveriesTotal counts recovery actions by error class.
	SessionRecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_recoveries_total",
		Help:      "Recovery actions taken on session errors.",
	}, []string{"kind", "action"})

	// SegmentsDeliveredTotal counts segments written to the sink.
	SegmentsDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segments_delivered_total",
		Help:      "Media segments delivered to the audio sink.",
	})

	// StatusPollsTotal counts status polls by result.
	StatusPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_polls_total",
		Help:      "Status polls by result.",
	}, []string{"result"})

	// IntentTransitionsTotal counts intent state transitions by target state.
	IntentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intent_transitions_total",
		Help:      "Playback intent transitions by target state.",
	}, []string{"to"})

	// IntentState is 1 for the current intent state and 0 otherwise.
	IntentState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "intent_state",
		Help:      "Current playback intent state.",
	}, []string{"state"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
