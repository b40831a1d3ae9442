package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// StateTransitionSignals capture real forward progress of the execution engine.
type StateTransitionSignals struct {
	ThroughputPerSec float64 `json:"throughput_per_sec" validate:"gte=0"`
	LatencyP95Ms     float64 `json:"latency_p95_ms" validate:"gte=0"`
	LatencyP99Ms     float64 `json:"latency_p99_ms" validate:"gte=0"`
}

// WorkflowCompletionSignals answer the user-visible "is work finishing?".
type WorkflowCompletionSignals struct {
	CompletionRate float64 `json:"completion_rate" validate:"gte=0,lte=1"`
	SuccessPerSec  float64 `json:"success_per_sec" validate:"gte=0"`
	FailedPerSec   float64 `json:"failed_per_sec" validate:"gte=0"`
}

// HistorySignals describe execution-engine backlog and shard stability.
// Backlog age is the strongest predictor of cascading failures.
type HistorySignals struct {
	BacklogAgeSec            float64 `json:"backlog_age_sec" validate:"gte=0"`
	TaskProcessingRatePerSec float64 `json:"task_processing_rate_per_sec" validate:"gte=0"`
	ShardChurnRatePerSec     float64 `json:"shard_churn_rate_per_sec" validate:"gte=0"`
}

// FrontendSignals describe the API surface as clients experience it.
type FrontendSignals struct {
	ErrorRatePerSec float64 `json:"error_rate_per_sec" validate:"gte=0"`
	LatencyP95Ms    float64 `json:"latency_p95_ms" validate:"gte=0"`
	LatencyP99Ms    float64 `json:"latency_p99_ms" validate:"gte=0"`
}

// MatchingSignals separate "server fine but workers slow" from server issues.
type MatchingSignals struct {
	WorkflowBacklogAgeSec float64 `json:"workflow_backlog_age_sec" validate:"gte=0"`
	ActivityBacklogAgeSec float64 `json:"activity_backlog_age_sec" validate:"gte=0"`
}

// PollerSignals catch starvation, matching pressure and "no poller" misconfiguration.
type PollerSignals struct {
	PollSuccessRate   float64 `json:"poll_success_rate" validate:"gte=0,lte=1"`
	PollTimeoutRate   float64 `json:"poll_timeout_rate" validate:"gte=0,lte=1"`
	LongPollLatencyMs float64 `json:"long_poll_latency_ms" validate:"gte=0"`
}

// PersistenceSignals track the primary systemic dependency. Error rate
// distinguishes "slow but working" from "failing".
type PersistenceSignals struct {
	LatencyP95Ms    float64 `json:"latency_p95_ms" validate:"gte=0"`
	LatencyP99Ms    float64 `json:"latency_p99_ms" validate:"gte=0"`
	ErrorRatePerSec float64 `json:"error_rate_per_sec" validate:"gte=0"`
	RetryRatePerSec float64 `json:"retry_rate_per_sec" validate:"gte=0"`
}

// PrimarySignals are the twelve forward-progress indicators. They are the
// ONLY inputs to health state transitions.
type PrimarySignals struct {
	StateTransitions   StateTransitionSignals    `json:"state_transitions"`
	WorkflowCompletion WorkflowCompletionSignals `json:"workflow_completion"`
	History            HistorySignals            `json:"history"`
	Frontend           FrontendSignals           `json:"frontend"`
	Matching           MatchingSignals           `json:"matching"`
	Poller             PollerSignals             `json:"poller"`
	Persistence        PersistenceSignals        `json:"persistence"`
}

// PersistenceAmplifiers: contention that turns load into retry storms.
type PersistenceAmplifiers struct {
	OCCConflictsPerSec          float64 `json:"occ_conflicts_per_sec" validate:"gte=0"`
	CASFailuresPerSec           float64 `json:"cas_failures_per_sec" validate:"gte=0"`
	SerializationFailuresPerSec float64 `json:"serialization_failures_per_sec" validate:"gte=0"`
}

// ConnectionPoolAmplifiers: saturation and churn of database connections.
type ConnectionPoolAmplifiers struct {
	UtilizationPct  float64 `json:"utilization_pct" validate:"gte=0,lte=100"`
	WaitCount       int     `json:"wait_count" validate:"gte=0"`
	WaitDurationMs  float64 `json:"wait_duration_ms" validate:"gte=0"`
	ChurnRatePerSec float64 `json:"churn_rate_per_sec" validate:"gte=0"`
	OpensPerSec     float64 `json:"opens_per_sec" validate:"gte=0"`
	ClosesPerSec    float64 `json:"closes_per_sec" validate:"gte=0"`
}

// QueueAmplifiers: depth tells "how much work to drain", retry time is the
// amplification meter.
type QueueAmplifiers struct {
	TaskBacklogDepth  int     `json:"task_backlog_depth" validate:"gte=0"`
	RetryTimeSpentSec float64 `json:"retry_time_spent_sec" validate:"gte=0"`
}

// WorkerAmplifiers: worker-side saturation seen from the server.
type WorkerAmplifiers struct {
	PollerConcurrency  int `json:"poller_concurrency" validate:"gte=0"`
	TaskSlotsAvailable int `json:"task_slots_available" validate:"gte=0"`
	TaskSlotsUsed      int `json:"task_slots_used" validate:"gte=0"`
}

// CacheAmplifiers: history cache thrash is a common silent multiplier.
type CacheAmplifiers struct {
	HitRate         float64 `json:"hit_rate" validate:"gte=0,lte=1"`
	EvictionsPerSec float64 `json:"evictions_per_sec" validate:"gte=0"`
	SizeBytes       int64   `json:"size_bytes" validate:"gte=0"`
}

// ShardAmplifiers: one hot shard can dominate tail latency cluster-wide.
type ShardAmplifiers struct {
	HotShardRatio   float64 `json:"hot_shard_ratio" validate:"gte=0"`
	MaxShardLoadPct float64 `json:"max_shard_load_pct" validate:"gte=0,lte=100"`
}

// TransportAmplifiers: RPC-layer saturation; tail latency can be
// network/serialization rather than persistence.
type TransportAmplifiers struct {
	InFlightRequests int `json:"in_flight_requests" validate:"gte=0"`
	ServerQueueDepth int `json:"server_queue_depth" validate:"gte=0"`
}

// RuntimeAmplifiers: internal starvation before external symptoms.
type RuntimeAmplifiers struct {
	Goroutines        int `json:"goroutines" validate:"gte=0"`
	BlockedGoroutines int `json:"blocked_goroutines" validate:"gte=0"`
}

// HostAmplifiers: host resource pressure.
type HostAmplifiers struct {
	CPUThrottlePct float64 `json:"cpu_throttle_pct" validate:"gte=0,lte=100"`
	MemoryRSSBytes int64   `json:"memory_rss_bytes" validate:"gte=0"`
	GCPauseMs      float64 `json:"gc_pause_ms" validate:"gte=0"`
}

// ThrottlingAmplifiers: rate limiting produces "progress continues but
// slower" patterns that look like random latency.
type ThrottlingAmplifiers struct {
	RateLimitEventsPerSec  float64 `json:"rate_limit_events_per_sec" validate:"gte=0"`
	AdmissionRejectsPerSec float64 `json:"admission_rejects_per_sec" validate:"gte=0"`
}

// DeployAmplifiers: change itself is an amplifier.
type DeployAmplifiers struct {
	TaskRestarts            int     `json:"task_restarts" validate:"gte=0"`
	MembershipChangesPerMin float64 `json:"membership_changes_per_min" validate:"gte=0"`
	LeaderChangesPerMin     float64 `json:"leader_changes_per_min" validate:"gte=0"`
}

// AmplifierSignals are resource-pressure context for explanation. They never
// decide state.
type AmplifierSignals struct {
	Persistence    PersistenceAmplifiers    `json:"persistence"`
	ConnectionPool ConnectionPoolAmplifiers `json:"connection_pool"`
	Queue          QueueAmplifiers          `json:"queue"`
	Worker         WorkerAmplifiers         `json:"worker"`
	Cache          CacheAmplifiers          `json:"cache"`
	Shard          ShardAmplifiers          `json:"shard"`
	Transport      TransportAmplifiers      `json:"transport"`
	Runtime        RuntimeAmplifiers        `json:"runtime"`
	Host           HostAmplifiers           `json:"host"`
	Throttling     ThrottlingAmplifiers     `json:"throttling"`
	Deploy         DeployAmplifiers         `json:"deploy"`
}

// LogPattern is a narrative signal: a repeated log message that often
// explains a transition. Produced upstream by the log scanner.
type LogPattern struct {
	Pattern       string `json:"pattern" validate:"required"`
	Service       string `json:"service" validate:"required"`
	Count         int    `json:"count" validate:"gte=0"`
	SampleMessage string `json:"sample_message,omitempty"`
}

// Snapshot is one immutable observation of the cluster, collected once per
// cycle. Values are never mutated after construction.
type Snapshot struct {
	Timestamp  time.Time        `json:"timestamp"`
	Primary    PrimarySignals   `json:"primary"`
	Amplifiers AmplifierSignals `json:"amplifiers"`
	Narrative  []LogPattern     `json:"narrative,omitempty" validate:"dive"`
}

// WorkerSignals answer "can workers make forward progress?". Collected from
// SDK metrics emitted by worker processes. task slots available == 0 means
// the worker stops polling entirely.
type WorkerSignals struct {
	WFTScheduleToStartP95Ms      float64 `json:"wft_schedule_to_start_p95_ms" validate:"gte=0"`
	WFTScheduleToStartP99Ms      float64 `json:"wft_schedule_to_start_p99_ms" validate:"gte=0"`
	ActivityScheduleToStartP95Ms float64 `json:"activity_schedule_to_start_p95_ms" validate:"gte=0"`
	ActivityScheduleToStartP99Ms float64 `json:"activity_schedule_to_start_p99_ms" validate:"gte=0"`
	WorkflowSlotsAvailable       int     `json:"workflow_slots_available" validate:"gte=0"`
	WorkflowSlotsUsed            int     `json:"workflow_slots_used" validate:"gte=0"`
	ActivitySlotsAvailable       int     `json:"activity_slots_available" validate:"gte=0"`
	ActivitySlotsUsed            int     `json:"activity_slots_used" validate:"gte=0"`
	WorkflowPollers              int     `json:"workflow_pollers" validate:"gte=0"`
	ActivityPollers              int     `json:"activity_pollers" validate:"gte=0"`
}

// WorkerCacheAmplifiers: sticky cache misses cause full history replay.
type WorkerCacheAmplifiers struct {
	StickyCacheSize           int     `json:"sticky_cache_size" validate:"gte=0"`
	StickyCacheHitRate        float64 `json:"sticky_cache_hit_rate" validate:"gte=0,lte=1"`
	StickyCacheMissRatePerSec float64 `json:"sticky_cache_miss_rate_per_sec" validate:"gte=0"`
}

// WorkerPollAmplifiers: long-poll pressure between workers and the server.
type WorkerPollAmplifiers struct {
	LongPollLatencyP95Ms      float64 `json:"long_poll_latency_p95_ms" validate:"gte=0"`
	LongPollFailureRatePerSec float64 `json:"long_poll_failure_rate_per_sec" validate:"gte=0"`
}

// WorkerHealth bundles worker-side signals for bottleneck classification and
// readiness rules.
type WorkerHealth struct {
	Timestamp time.Time             `json:"timestamp"`
	Signals   WorkerSignals         `json:"signals"`
	Cache     WorkerCacheAmplifiers `json:"cache"`
	Poll      WorkerPollAmplifiers  `json:"poll"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate enforces the snapshot range invariants (non-negative rates and
// latencies, ratios in [0,1]). The evaluator is never handed a snapshot that
// failed here.
func (s Snapshot) Validate() error {
	if err := validate.Struct(s); err != nil {
		return newValidationError("signal snapshot", err)
	}
	return nil
}

// Validate enforces the worker signal range invariants.
func (w WorkerHealth) Validate() error {
	if err := validate.Struct(w); err != nil {
		return newValidationError("worker health", err)
	}
	return nil
}

// FieldViolation identifies one out-of-invariant field.
type FieldViolation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Value      string `json:"value"`
}

// ValidationError reports malformed signal values rejected at construction.
type ValidationError struct {
	Subject    string
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("invalid %s", e.Subject)
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s violates %s (got %s)", v.Field, v.Constraint, v.Value))
	}
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(parts, "; "))
}

func newValidationError(subject string, err error) error {
	verr := &ValidationError{Subject: subject}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			constraint := fe.Tag()
			if fe.Param() != "" {
				constraint += "=" + fe.Param()
			}
			verr.Violations = append(verr.Violations, FieldViolation{
				Field:      fe.Namespace(),
				Constraint: constraint,
				Value:      fmt.Sprintf("%v", fe.Value()),
			})
		}
	}
	return verr
}
