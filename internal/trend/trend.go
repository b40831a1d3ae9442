// Package trend condenses a window of snapshots into per-signal trend context
// so operators can see whether a cluster is approaching or leaving trouble.
package trend

import (
	"math"
	"sort"

	"github.com/pulsestack/pulse-engine/internal/models"
	"github.com/pulsestack/pulse-engine/internal/utils"
)

// Direction describes how a signal moved across the window.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionSteady  Direction = "steady"
)

// SignalTrend summarises one signal across the window.
type SignalTrend struct {
	Signal    string    `json:"signal"`
	Current   float64   `json:"current"`
	Median    float64   `json:"median"`
	Deviation float64   `json:"deviation"`
	Direction Direction `json:"direction"`
}

// Context carries trend summaries for the signals the health gates read.
type Context struct {
	Samples     int           `json:"samples"`
	SpanSeconds float64       `json:"span_seconds"`
	Signals     []SignalTrend `json:"signals,omitempty"`
}

// directionTolerance is the relative half-window shift below which a signal
// counts as steady.
const directionTolerance = 0.1

// Build derives trend context from a window of snapshots, oldest first. An
// empty window yields an empty context.
func Build(snapshots []models.Snapshot) Context {
	if len(snapshots) == 0 {
		return Context{}
	}

	ctx := Context{
		Samples:     len(snapshots),
		SpanSeconds: utils.SpanSeconds(snapshots[0].Timestamp, snapshots[len(snapshots)-1].Timestamp),
	}

	series := []struct {
		name   string
		values func(models.Snapshot) float64
	}{
		{"state_transition_throughput_per_sec", func(s models.Snapshot) float64 {
			return s.Primary.StateTransitions.ThroughputPerSec
		}},
		{"workflow_completion_rate", func(s models.Snapshot) float64 {
			return s.Primary.WorkflowCompletion.CompletionRate
		}},
		{"history_backlog_age_sec", func(s models.Snapshot) float64 {
			return s.Primary.History.BacklogAgeSec
		}},
		{"persistence_latency_p99_ms", func(s models.Snapshot) float64 {
			return s.Primary.Persistence.LatencyP99Ms
		}},
		{"frontend_latency_p99_ms", func(s models.Snapshot) float64 {
			return s.Primary.Frontend.LatencyP99Ms
		}},
		{"shard_churn_rate_per_sec", func(s models.Snapshot) float64 {
			return s.Primary.History.ShardChurnRatePerSec
		}},
	}

	for _, s := range series {
		values := make([]float64, len(snapshots))
		for i, snap := range snapshots {
			values[i] = s.values(snap)
		}
		ctx.Signals = append(ctx.Signals, summarise(s.name, values))
	}
	return ctx
}

func summarise(name string, values []float64) SignalTrend {
	current := values[len(values)-1]
	median := percentile(values, 0.5)
	mad := meanAbsoluteDeviation(values, median)
	if mad == 0 {
		mad = 1
	}
	return SignalTrend{
		Signal:    name,
		Current:   current,
		Median:    median,
		Deviation: math.Abs(current-median) / mad,
		Direction: direction(values),
	}
}

// direction compares the means of the two window halves. A shift smaller than
// directionTolerance relative to the older half reads as steady.
func direction(values []float64) Direction {
	if len(values) < 2 {
		return DirectionSteady
	}
	mid := len(values) / 2
	older := mean(values[:mid])
	newer := mean(values[mid:])

	scale := math.Abs(older)
	if scale == 0 {
		scale = 1
	}
	shift := (newer - older) / scale
	switch {
	case shift > directionTolerance:
		return DirectionRising
	case shift < -directionTolerance:
		return DirectionFalling
	default:
		return DirectionSteady
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

func meanAbsoluteDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += math.Abs(v - center)
	}
	return total / float64(len(values))
}
