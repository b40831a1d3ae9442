package engine

import (
	"fmt"
	"strings"
)

// CriticalThresholds gate the Critical state: forward progress collapsed.
type CriticalThresholds struct {
	StateTransitionsMinPerSec     float64 `yaml:"stateTransitionsMinPerSec" json:"state_transitions_min_per_sec"`
	WorkflowCompletionRateMin     float64 `yaml:"workflowCompletionRateMin" json:"workflow_completion_rate_min"`
	HistoryBacklogAgeMaxSec       float64 `yaml:"historyBacklogAgeMaxSec" json:"history_backlog_age_max_sec"`
	PersistenceErrorRateMaxPerSec float64 `yaml:"persistenceErrorRateMaxPerSec" json:"persistence_error_rate_max_per_sec"`
}

// StressedThresholds gate the Stressed state: progress continues but latency
// and backlog are trending wrong.
type StressedThresholds struct {
	StateTransitionLatencyP99MaxMs float64 `yaml:"stateTransitionLatencyP99MaxMs" json:"state_transition_latency_p99_max_ms"`
	HistoryBacklogAgeStressSec     float64 `yaml:"historyBacklogAgeStressSec" json:"history_backlog_age_stress_sec"`
	FrontendLatencyP99MaxMs        float64 `yaml:"frontendLatencyP99MaxMs" json:"frontend_latency_p99_max_ms"`
	PollerTimeoutRateMax           float64 `yaml:"pollerTimeoutRateMax" json:"poller_timeout_rate_max"`
	PersistenceLatencyP99MaxMs     float64 `yaml:"persistenceLatencyP99MaxMs" json:"persistence_latency_p99_max_ms"`
	ShardChurnRateMaxPerSec        float64 `yaml:"shardChurnRateMaxPerSec" json:"shard_churn_rate_max_per_sec"`
}

// HealthyThresholds gate the Happy state. All of them must hold at once.
type HealthyThresholds struct {
	StateTransitionsHealthyPerSec float64 `yaml:"stateTransitionsHealthyPerSec" json:"state_transitions_healthy_per_sec"`
	HistoryBacklogAgeHealthySec   float64 `yaml:"historyBacklogAgeHealthySec" json:"history_backlog_age_healthy_sec"`
	WorkflowCompletionRateHealthy float64 `yaml:"workflowCompletionRateHealthy" json:"workflow_completion_rate_healthy"`
}

// BottleneckThresholds parameterise the server/worker stress predicates of
// the bottleneck classifier.
type BottleneckThresholds struct {
	HistoryBacklogAgeStressSec float64 `yaml:"historyBacklogAgeStressSec" json:"history_backlog_age_stress_sec"`
	PersistenceLatencyP95MaxMs float64 `yaml:"persistenceLatencyP95MaxMs" json:"persistence_latency_p95_max_ms"`
	WFTScheduleToStartP95MaxMs float64 `yaml:"wftScheduleToStartP95MaxMs" json:"wft_schedule_to_start_p95_max_ms"`
}

// Thresholds carries every cutoff the evaluator is parameterised by. Supplied
// by the caller from configuration; the evaluator holds no literals.
type Thresholds struct {
	Critical   CriticalThresholds   `yaml:"critical" json:"critical"`
	Stressed   StressedThresholds   `yaml:"stressed" json:"stressed"`
	Healthy    HealthyThresholds    `yaml:"healthy" json:"healthy"`
	Bottleneck BottleneckThresholds `yaml:"bottleneck" json:"bottleneck"`
}

// DefaultThresholds returns operationally proven cutoffs. Deployments tune
// these through configuration, not code changes.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: CriticalThresholds{
			StateTransitionsMinPerSec:     10.0,
			WorkflowCompletionRateMin:     0.5,
			HistoryBacklogAgeMaxSec:       120.0,
			PersistenceErrorRateMaxPerSec: 10.0,
		},
		Stressed: StressedThresholds{
			StateTransitionLatencyP99MaxMs: 500.0,
			HistoryBacklogAgeStressSec:     30.0,
			FrontendLatencyP99MaxMs:        1000.0,
			PollerTimeoutRateMax:           0.1,
			PersistenceLatencyP99MaxMs:     100.0,
			ShardChurnRateMaxPerSec:        5.0,
		},
		Healthy: HealthyThresholds{
			StateTransitionsHealthyPerSec: 50.0,
			HistoryBacklogAgeHealthySec:   10.0,
			WorkflowCompletionRateHealthy: 0.95,
		},
		Bottleneck: BottleneckThresholds{
			HistoryBacklogAgeStressSec: 30.0,
			PersistenceLatencyP95MaxMs: 100.0,
			WFTScheduleToStartP95MaxMs: 50.0,
		},
	}
}

// Validate rejects internally inconsistent threshold sets. This is a fatal
// configuration error at load time; the evaluator itself never re-checks.
func (t Thresholds) Validate() error {
	var problems []string

	nonNegative := map[string]float64{
		"critical.stateTransitionsMinPerSec":      t.Critical.StateTransitionsMinPerSec,
		"critical.historyBacklogAgeMaxSec":        t.Critical.HistoryBacklogAgeMaxSec,
		"critical.persistenceErrorRateMaxPerSec":  t.Critical.PersistenceErrorRateMaxPerSec,
		"stressed.stateTransitionLatencyP99MaxMs": t.Stressed.StateTransitionLatencyP99MaxMs,
		"stressed.historyBacklogAgeStressSec":     t.Stressed.HistoryBacklogAgeStressSec,
		"stressed.frontendLatencyP99MaxMs":        t.Stressed.FrontendLatencyP99MaxMs,
		"stressed.persistenceLatencyP99MaxMs":     t.Stressed.PersistenceLatencyP99MaxMs,
		"stressed.shardChurnRateMaxPerSec":        t.Stressed.ShardChurnRateMaxPerSec,
		"healthy.stateTransitionsHealthyPerSec":   t.Healthy.StateTransitionsHealthyPerSec,
		"healthy.historyBacklogAgeHealthySec":     t.Healthy.HistoryBacklogAgeHealthySec,
		"bottleneck.historyBacklogAgeStressSec":   t.Bottleneck.HistoryBacklogAgeStressSec,
		"bottleneck.persistenceLatencyP95MaxMs":   t.Bottleneck.PersistenceLatencyP95MaxMs,
		"bottleneck.wftScheduleToStartP95MaxMs":   t.Bottleneck.WFTScheduleToStartP95MaxMs,
	}
	for name, v := range nonNegative {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative (got %g)", name, v))
		}
	}

	ratios := map[string]float64{
		"critical.workflowCompletionRateMin":    t.Critical.WorkflowCompletionRateMin,
		"stressed.pollerTimeoutRateMax":         t.Stressed.PollerTimeoutRateMax,
		"healthy.workflowCompletionRateHealthy": t.Healthy.WorkflowCompletionRateHealthy,
	}
	for name, v := range ratios {
		if v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("%s must be within [0,1] (got %g)", name, v))
		}
	}

	// Gate tiers must nest: healthy bound < stressed ceiling < critical
	// ceiling for backlog age, and the healthy floor must sit above the
	// critical floor for throughput/completion.
	if t.Stressed.HistoryBacklogAgeStressSec <= t.Healthy.HistoryBacklogAgeHealthySec {
		problems = append(problems, "stressed.historyBacklogAgeStressSec must exceed healthy.historyBacklogAgeHealthySec")
	}
	if t.Critical.HistoryBacklogAgeMaxSec <= t.Stressed.HistoryBacklogAgeStressSec {
		problems = append(problems, "critical.historyBacklogAgeMaxSec must exceed stressed.historyBacklogAgeStressSec")
	}
	if t.Healthy.StateTransitionsHealthyPerSec <= t.Critical.StateTransitionsMinPerSec {
		problems = append(problems, "healthy.stateTransitionsHealthyPerSec must exceed critical.stateTransitionsMinPerSec")
	}
	if t.Healthy.WorkflowCompletionRateHealthy <= t.Critical.WorkflowCompletionRateMin {
		problems = append(problems, "healthy.workflowCompletionRateHealthy must exceed critical.workflowCompletionRateMin")
	}

	if len(problems) > 0 {
		return fmt.Errorf("inconsistent thresholds: %s", strings.Join(problems, "; "))
	}
	return nil
}
