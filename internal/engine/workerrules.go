package engine

import (
	"fmt"

	"github.com/pulsestack/pulse-engine/internal/models"
)

// ScalingAction is a scaling decision under consideration by the caller.
type ScalingAction string

const (
	ActionNone      ScalingAction = ""
	ActionScaleUp   ScalingAction = "scale_up"
	ActionScaleDown ScalingAction = "scale_down"
)

// ScalingContext carries fleet facts the readiness rules need beyond the
// worker signals themselves: what is being proposed and what the fleet
// looks like.
type ScalingContext struct {
	ProposedAction          ScalingAction
	HasLongRunningWorkflows bool
	StickyCacheHitRate      float64
	WorkerCount             int
	ProposedScaleUpCount    int
}

// EvaluateWorkerRules runs the fixed worker readiness rule set. Each rule is
// an independent deterministic predicate over the worker signals and the
// scaling context; none consults the health state machine. Findings are
// never suppressed by other logic — NeverScaleDownAtZero in particular fires
// whenever any task slot count is zero, regardless of every other signal.
func EvaluateWorkerRules(worker models.WorkerSignals, sc ScalingContext) []models.RuleFinding {
	var findings []models.RuleFinding

	if worker.WorkflowSlotsAvailable == 0 || worker.ActivitySlotsAvailable == 0 {
		findings = append(findings, models.RuleFinding{
			Rule:     models.RuleNeverScaleDownAtZero,
			Severity: models.RuleSeverityBlock,
			Message:  "worker task slots exhausted; never scale down workers in this state, it worsens backlog",
		})
		if sc.ProposedAction == ActionScaleDown {
			findings = append(findings, models.RuleFinding{
				Rule:     models.RuleNeverScaleDownAtZero,
				Severity: models.RuleSeverityBlock,
				Message:  "blocked: cannot scale down workers while task slots available is zero",
			})
		}
	}

	if sc.HasLongRunningWorkflows && sc.ProposedAction == ActionScaleUp {
		msg := "long-running workflows present; new workers will not receive sticky-affinitized work"
		if sc.ProposedScaleUpCount > 0 {
			msg = fmt.Sprintf("long-running workflows present; the %d new workers will not receive sticky-affinitized work", sc.ProposedScaleUpCount)
		}
		findings = append(findings, models.RuleFinding{
			Rule:     models.RuleStickyQueueWarning,
			Severity: models.RuleSeveritySuggestion,
			Message:  msg,
		})
		findings = append(findings, models.RuleFinding{
			Rule:     models.RuleRestartToRedistribute,
			Severity: models.RuleSeveritySuggestion,
			Message:  "consider restarting a share of existing workers to redistribute sticky workflow state to new workers",
		})
	}

	if sc.StickyCacheHitRate < 0.5 && sc.WorkerCount > 1 {
		findings = append(findings, models.RuleFinding{
			Rule:     models.RuleRestartToRedistribute,
			Severity: models.RuleSeveritySuggestion,
			Message:  fmt.Sprintf("sticky cache hit rate is low (%.0f%%); a rolling restart would redistribute workflow state", sc.StickyCacheHitRate*100),
		})
	}

	totalSlots := worker.WorkflowSlotsAvailable + worker.WorkflowSlotsUsed +
		worker.ActivitySlotsAvailable + worker.ActivitySlotsUsed
	totalPollers := worker.WorkflowPollers + worker.ActivityPollers
	if totalSlots > 0 && totalPollers > totalSlots {
		findings = append(findings, models.RuleFinding{
			Rule:     models.RulePollerExecutorMismatch,
			Severity: models.RuleSeveritySuggestion,
			Message:  fmt.Sprintf("pollers (%d) exceed executor slots (%d); more pollers than executor slots cannot help", totalPollers, totalSlots),
		})
	}

	return findings
}
