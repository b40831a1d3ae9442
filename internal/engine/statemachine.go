package engine

import (
	"github.com/pulsestack/pulse-engine/internal/models"
)

// Evaluate derives the new health state from primary signals using fixed,
// deterministic gates. It reads nothing but its arguments, holds no state,
// and always terminates: identical inputs yield identical output. Amplifier
// and narrative signals are never consulted here.
//
// Gate order is fixed and first match wins:
//
//	critical -> stressed -> happy -> default stressed
//
// Anything not unambiguously Critical or Happy is conservatively Stressed.
// The raw result is then passed through the transition invariant: a cluster
// observed Happy can never be reported Critical in a single cycle; Stressed
// is always the intermediate.
func Evaluate(primary models.PrimarySignals, current models.HealthState, th Thresholds) models.HealthState {
	raw := rawState(primary, th)
	return applyTransitionInvariant(current, raw)
}

func rawState(primary models.PrimarySignals, th Thresholds) models.HealthState {
	if criticalGate(primary, th.Critical) {
		return models.StateCritical
	}
	if stressedGate(primary, th.Stressed) {
		return models.StateStressed
	}
	if happyGate(primary, th.Healthy) {
		return models.StateHappy
	}
	return models.StateStressed
}

// criticalGate fires when forward progress has collapsed: throughput or
// completion rate below their floors, backlog age past the critical ceiling,
// or persistence failing rather than merely slow.
func criticalGate(primary models.PrimarySignals, th CriticalThresholds) bool {
	if primary.StateTransitions.ThroughputPerSec < th.StateTransitionsMinPerSec {
		return true
	}
	if primary.WorkflowCompletion.CompletionRate < th.WorkflowCompletionRateMin {
		return true
	}
	if primary.History.BacklogAgeSec > th.HistoryBacklogAgeMaxSec {
		return true
	}
	return primary.Persistence.ErrorRatePerSec > th.PersistenceErrorRateMaxPerSec
}

// stressedGate fires when progress continues but latency and backlog are
// trending wrong.
func stressedGate(primary models.PrimarySignals, th StressedThresholds) bool {
	if primary.StateTransitions.LatencyP99Ms > th.StateTransitionLatencyP99MaxMs {
		return true
	}
	if primary.History.BacklogAgeSec > th.HistoryBacklogAgeStressSec {
		return true
	}
	if primary.Frontend.LatencyP99Ms > th.FrontendLatencyP99MaxMs {
		return true
	}
	if primary.Poller.PollTimeoutRate > th.PollerTimeoutRateMax {
		return true
	}
	if primary.Persistence.LatencyP99Ms > th.PersistenceLatencyP99MaxMs {
		return true
	}
	return primary.History.ShardChurnRatePerSec > th.ShardChurnRateMaxPerSec
}

// happyGate demands throughput, backlog age and completion rate all within
// healthy bounds simultaneously.
func happyGate(primary models.PrimarySignals, th HealthyThresholds) bool {
	return primary.StateTransitions.ThroughputPerSec >= th.StateTransitionsHealthyPerSec &&
		primary.History.BacklogAgeSec <= th.HistoryBacklogAgeHealthySec &&
		primary.WorkflowCompletion.CompletionRate >= th.WorkflowCompletionRateHealthy
}

// applyTransitionInvariant forces Happy -> Critical through Stressed. Every
// other raw result passes through unchanged.
func applyTransitionInvariant(current, raw models.HealthState) models.HealthState {
	if current == models.StateHappy && raw == models.StateCritical {
		return models.StateStressed
	}
	return raw
}
