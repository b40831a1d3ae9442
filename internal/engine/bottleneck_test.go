package engine

import (
	"testing"

	"github.com/pulsestack/pulse-engine/internal/models"
)

func idleWorker() models.WorkerSignals {
	return models.WorkerSignals{
		WFTScheduleToStartP95Ms:      10,
		WFTScheduleToStartP99Ms:      20,
		ActivityScheduleToStartP95Ms: 10,
		ActivityScheduleToStartP99Ms: 25,
		WorkflowSlotsAvailable:       80,
		WorkflowSlotsUsed:            20,
		ActivitySlotsAvailable:       90,
		ActivitySlotsUsed:            10,
		WorkflowPollers:              4,
		ActivityPollers:              4,
	}
}

func TestClassifyHealthy(t *testing.T) {
	c := NewClassifier(DefaultThresholds().Bottleneck)
	got := c.Classify(nominalPrimary(), idleWorker())
	if got != models.BottleneckHealthy {
		t.Fatalf("expected healthy, got %s", got)
	}
}

func TestClassifyWorkerLimitedOnZeroSlots(t *testing.T) {
	// Backlog age 20s is below the 30s stressed ceiling and persistence is
	// nominal, so the server predicate is false; zero workflow slots makes
	// the worker predicate true.
	primary := nominalPrimary()
	primary.History.BacklogAgeSec = 20

	worker := idleWorker()
	worker.WorkflowSlotsAvailable = 0

	c := NewClassifier(DefaultThresholds().Bottleneck)
	if got := c.Classify(primary, worker); got != models.BottleneckWorkerLimited {
		t.Fatalf("expected worker_limited, got %s", got)
	}
}

func TestClassifyServerLimited(t *testing.T) {
	primary := nominalPrimary()
	primary.Persistence.LatencyP95Ms = 250

	c := NewClassifier(DefaultThresholds().Bottleneck)
	if got := c.Classify(primary, idleWorker()); got != models.BottleneckServerLimited {
		t.Fatalf("expected server_limited, got %s", got)
	}
}

func TestClassifyMixedIffBothStressed(t *testing.T) {
	c := NewClassifier(DefaultThresholds().Bottleneck)

	primary := nominalPrimary()
	primary.History.BacklogAgeSec = 90
	worker := idleWorker()
	worker.ActivitySlotsAvailable = 0

	if got := c.Classify(primary, worker); got != models.BottleneckMixed {
		t.Fatalf("expected mixed, got %s", got)
	}

	// Relaxing either side must drop out of Mixed.
	if got := c.Classify(nominalPrimary(), worker); got == models.BottleneckMixed {
		t.Fatalf("mixed requires server side to be stressed too")
	}
	if got := c.Classify(primary, idleWorker()); got == models.BottleneckMixed {
		t.Fatalf("mixed requires worker side to be stressed too")
	}
}

func TestClassifyTotality(t *testing.T) {
	c := NewClassifier(DefaultThresholds().Bottleneck)
	known := map[models.BottleneckClassification]bool{
		models.BottleneckServerLimited: true,
		models.BottleneckWorkerLimited: true,
		models.BottleneckMixed:         true,
		models.BottleneckHealthy:       true,
	}

	primaries := []models.PrimarySignals{nominalPrimary()}
	stressedPrimary := nominalPrimary()
	stressedPrimary.History.BacklogAgeSec = 90
	primaries = append(primaries, stressedPrimary)

	workers := []models.WorkerSignals{idleWorker()}
	slow := idleWorker()
	slow.WFTScheduleToStartP95Ms = 120
	workers = append(workers, slow)

	for _, p := range primaries {
		for _, w := range workers {
			if got := c.Classify(p, w); !known[got] {
				t.Fatalf("classification outside the closed set: %q", got)
			}
		}
	}
}
