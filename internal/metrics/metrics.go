package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_engine",
			Name:      "evaluations_total",
			Help:      "Total number of evaluation cycles, partitioned by cluster and resulting state.",
		},
		[]string{"cluster", "state"},
	)

	stateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_engine",
			Name:      "state_transitions_total",
			Help:      "Health state transitions, partitioned by cluster and edge.",
		},
		[]string{"cluster", "from", "to"},
	)

	bottleneckTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_engine",
			Name:      "bottleneck_total",
			Help:      "Bottleneck classifications emitted, partitioned by classification.",
		},
		[]string{"classification"},
	)

	ruleFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_engine",
			Name:      "rule_fired_total",
			Help:      "Worker readiness rule findings, partitioned by rule.",
		},
		[]string{"rule"},
	)

	cycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pulse_engine",
			Name:      "cycle_seconds",
			Help:      "Evaluation cycle latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
)

// Register attaches pulse-engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		evaluationsTotal,
		stateTransitionsTotal,
		bottleneckTotal,
		ruleFiredTotal,
		cycleDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveEvaluation records one completed evaluation cycle.
func ObserveEvaluation(cluster, state string, duration time.Duration) {
	evaluationsTotal.WithLabelValues(cluster, state).Inc()
	if duration < 0 {
		duration = 0
	}
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveTransition records a state change edge. No-op when the state held.
func ObserveTransition(cluster, from, to string) {
	if from == to {
		return
	}
	stateTransitionsTotal.WithLabelValues(cluster, from, to).Inc()
}

// ObserveBottleneck records a bottleneck classification.
func ObserveBottleneck(classification string) {
	bottleneckTotal.WithLabelValues(classification).Inc()
}

// ObserveRule records a fired worker readiness rule.
func ObserveRule(rule string) {
	ruleFiredTotal.WithLabelValues(rule).Inc()
}
