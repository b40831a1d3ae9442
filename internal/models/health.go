package models

// HealthState is the canonical answer to "is the cluster making forward
// progress on workflows?".
type HealthState string

const (
	StateHappy    HealthState = "happy"
	StateStressed HealthState = "stressed"
	StateCritical HealthState = "critical"
)

// Rank orders states by severity. Used only for invariant checking, never
// for numeric comparison of signals.
func (s HealthState) Rank() int {
	switch s {
	case StateHappy:
		return 0
	case StateStressed:
		return 1
	case StateCritical:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the three canonical states.
func (s HealthState) Valid() bool {
	return s.Rank() >= 0
}

// BottleneckClassification labels where capacity is constrained. Derived,
// never persisted independently of the assessment that produced it.
type BottleneckClassification string

const (
	BottleneckServerLimited BottleneckClassification = "server_limited"
	BottleneckWorkerLimited BottleneckClassification = "worker_limited"
	BottleneckMixed         BottleneckClassification = "mixed"
	BottleneckHealthy       BottleneckClassification = "healthy"
)

// RuleID identifies a worker readiness rule.
type RuleID string

const (
	RuleNeverScaleDownAtZero   RuleID = "NEVER_SCALE_DOWN_AT_ZERO"
	RuleStickyQueueWarning     RuleID = "STICKY_QUEUE_WARNING"
	RuleRestartToRedistribute  RuleID = "RESTART_TO_REDISTRIBUTE"
	RulePollerExecutorMismatch RuleID = "POLLER_EXECUTOR_MISMATCH"
)

// RuleSeverity distinguishes blocking findings from advisory ones.
type RuleSeverity string

const (
	RuleSeverityBlock      RuleSeverity = "block"
	RuleSeveritySuggestion RuleSeverity = "suggestion"
)
