package models

import "time"

// Assessment triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// RuleFinding is one fired worker readiness rule.
type RuleFinding struct {
	Rule     RuleID       `json:"rule"`
	Severity RuleSeverity `json:"severity"`
	Message  string       `json:"message"`
}

// Assessment is the full output contract of one evaluation cycle: the new
// health state, the bottleneck classification (when evaluated), and the
// fired readiness rules. External explanation and storage layers consume
// this shape; the engine defines no wire format beyond it.
type Assessment struct {
	Cluster       string      `json:"cluster"`
	Timestamp     time.Time   `json:"timestamp"`
	Trigger       string      `json:"trigger"`
	PreviousState HealthState `json:"previous_state"`
	State         HealthState `json:"state"`

	// Bottleneck is meaningful only when BottleneckEvaluated is true.
	// Classification is skipped entirely while the server is Critical.
	BottleneckEvaluated bool                     `json:"bottleneck_evaluated"`
	Bottleneck          BottleneckClassification `json:"bottleneck,omitempty"`

	Rules []RuleFinding `json:"rules,omitempty"`
}
