package engine

import (
	"github.com/pulsestack/pulse-engine/internal/models"
)

// Classifier labels whether constrained capacity sits server-side or
// worker-side. The verdict guides remediation: server limited means scale
// server capacity or tune persistence, worker limited means scale workers or
// raise executor slots.
//
// Callers only invoke Classify while the server state is Happy or Stressed;
// once the server itself has stopped progressing, worker-side advice is
// irrelevant and classification is skipped upstream.
type Classifier struct {
	th BottleneckThresholds
}

// NewClassifier builds a classifier parameterised by the supplied cutoffs.
func NewClassifier(th BottleneckThresholds) *Classifier {
	return &Classifier{th: th}
}

// Classify evaluates the server and worker stress predicates independently.
// They are not mutually exclusive by construction: both true is exactly the
// Mixed case.
func (c *Classifier) Classify(primary models.PrimarySignals, worker models.WorkerSignals) models.BottleneckClassification {
	server := c.serverStressed(primary)
	workers := c.workerStressed(worker)

	switch {
	case server && workers:
		return models.BottleneckMixed
	case server:
		return models.BottleneckServerLimited
	case workers:
		return models.BottleneckWorkerLimited
	default:
		return models.BottleneckHealthy
	}
}

func (c *Classifier) serverStressed(primary models.PrimarySignals) bool {
	return primary.History.BacklogAgeSec > c.th.HistoryBacklogAgeStressSec ||
		primary.Persistence.LatencyP95Ms > c.th.PersistenceLatencyP95MaxMs
}

func (c *Classifier) workerStressed(worker models.WorkerSignals) bool {
	if worker.WorkflowSlotsAvailable == 0 {
		return true
	}
	if worker.ActivitySlotsAvailable == 0 {
		return true
	}
	return worker.WFTScheduleToStartP95Ms > c.th.WFTScheduleToStartP95MaxMs
}
