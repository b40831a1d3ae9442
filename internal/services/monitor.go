package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsestack/pulse-engine/internal/cache"
	"github.com/pulsestack/pulse-engine/internal/config"
	"github.com/pulsestack/pulse-engine/internal/engine"
	"github.com/pulsestack/pulse-engine/internal/metrics"
	"github.com/pulsestack/pulse-engine/internal/models"
	"github.com/pulsestack/pulse-engine/internal/store"
	"github.com/pulsestack/pulse-engine/internal/utils"
)

// Publisher receives every completed assessment, e.g. for fan-out to
// websocket subscribers. Implementations must not block.
type Publisher interface {
	Publish(assessment models.Assessment)
}

// clusterTracker holds the per-cluster evaluation state.
type clusterTracker struct {
	mu     sync.Mutex
	state  models.HealthState
	window *engine.Window
	config config.ClusterConfig
}

// Monitor runs evaluation cycles: state machine, bottleneck classification
// and worker readiness rules, then fans the assessment out to the store,
// the shared cache and any publisher.
type Monitor struct {
	logger     *slog.Logger
	store      *store.Store
	cache      *cache.AssessmentCache
	publisher  Publisher
	latencies  *utils.LatencyTracker
	windowSize int

	mu         sync.RWMutex
	thresholds engine.Thresholds
	classifier *engine.Classifier
	clusters   map[string]*clusterTracker
}

// NewMonitor constructs a Monitor for the configured clusters. Unknown
// clusters submitted later are tracked on first sight with defaults.
func NewMonitor(logger *slog.Logger, th engine.Thresholds, windowSize int, clusters []config.ClusterConfig, assessments *store.Store, shared *cache.AssessmentCache, publisher Publisher) (*Monitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if windowSize < 1 {
		windowSize = 10
	}
	if assessments == nil {
		assessments = store.New(0, 0)
	}
	if shared == nil {
		shared = cache.NewAssessmentCache(nil, 0)
	}

	m := &Monitor{
		logger:     logger,
		store:      assessments,
		cache:      shared,
		publisher:  publisher,
		latencies:  utils.NewLatencyTracker(1024),
		windowSize: windowSize,
		thresholds: th,
		classifier: engine.NewClassifier(th.Bottleneck),
		clusters:   make(map[string]*clusterTracker),
	}
	for _, cc := range clusters {
		window, err := engine.NewWindow(windowSize)
		if err != nil {
			return nil, err
		}
		m.clusters[cc.Name] = &clusterTracker{
			state:  models.StateHappy,
			window: window,
			config: cc,
		}
	}
	return m, nil
}

// SetThresholds swaps the evaluation cutoffs. Used by config hot reload; the
// caller validates before swapping.
func (m *Monitor) SetThresholds(th engine.Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = th
	m.classifier = engine.NewClassifier(th.Bottleneck)
	m.logger.Info("thresholds updated")
}

func (m *Monitor) snapshotThresholds() (engine.Thresholds, *engine.Classifier) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds, m.classifier
}

func (m *Monitor) tracker(cluster string) *clusterTracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	tracker, ok := m.clusters[cluster]
	if !ok {
		window, _ := engine.NewWindow(m.windowSize)
		tracker = &clusterTracker{
			state:  models.StateHappy,
			window: window,
			config: config.ClusterConfig{Name: cluster},
		}
		m.clusters[cluster] = tracker
	}
	return tracker
}

// RunCycle evaluates one snapshot for a cluster and records the outcome.
func (m *Monitor) RunCycle(ctx context.Context, cluster string, snapshot models.Snapshot, worker models.WorkerHealth, trigger string) (models.Assessment, error) {
	start := time.Now()
	th, classifier := m.snapshotThresholds()
	tracker := m.tracker(cluster)

	tracker.mu.Lock()
	previous := tracker.state
	tracker.window.Push(snapshot)
	next := engine.Evaluate(snapshot.Primary, previous, th)
	tracker.state = next
	scaling := engine.ScalingContext{
		HasLongRunningWorkflows: tracker.config.HasLongRunningWorkflows,
		StickyCacheHitRate:      worker.Cache.StickyCacheHitRate,
		WorkerCount:             tracker.config.WorkerCount,
	}
	tracker.mu.Unlock()

	assessment := m.assess(cluster, snapshot, worker, trigger, previous, next, scaling, classifier)

	m.store.Put(assessment)
	if err := m.cache.Store(ctx, assessment); err != nil {
		m.logger.Warn("assessment cache write failed", slog.String("cluster", cluster), slog.Any("error", err))
	}
	if m.publisher != nil {
		m.publisher.Publish(assessment)
	}

	duration := time.Since(start)
	metrics.ObserveEvaluation(cluster, string(next), duration)
	metrics.ObserveTransition(cluster, string(previous), string(next))
	m.latencies.Observe(duration)
	if count := m.latencies.Count(); count >= 20 && count%20 == 0 {
		m.logger.Info("evaluation latency", slog.Duration("p95", m.latencies.Percentile(95)), slog.Int("samples", count))
	}

	m.logger.Debug("evaluation cycle complete",
		slog.String("cluster", cluster),
		slog.String("previous", string(previous)),
		slog.String("state", string(next)),
		slog.Bool("bottleneck_evaluated", assessment.BottleneckEvaluated),
		slog.Int("rules", len(assessment.Rules)))

	return assessment, nil
}

// DryRun evaluates a snapshot without touching windows, stores or state. The
// caller supplies the current state and any proposed scaling action.
func (m *Monitor) DryRun(cluster string, snapshot models.Snapshot, worker models.WorkerHealth, current models.HealthState, scaling engine.ScalingContext) models.Assessment {
	th, classifier := m.snapshotThresholds()
	if !current.Valid() {
		current = models.StateHappy
	}
	if scaling.StickyCacheHitRate == 0 {
		scaling.StickyCacheHitRate = worker.Cache.StickyCacheHitRate
	}
	if scaling.WorkerCount == 0 || !scaling.HasLongRunningWorkflows {
		if cc, ok := m.clusterConfig(cluster); ok {
			if scaling.WorkerCount == 0 {
				scaling.WorkerCount = cc.WorkerCount
			}
			if !scaling.HasLongRunningWorkflows {
				scaling.HasLongRunningWorkflows = cc.HasLongRunningWorkflows
			}
		}
	}

	next := engine.Evaluate(snapshot.Primary, current, th)
	return m.assess(cluster, snapshot, worker, models.TriggerManual, current, next, scaling, classifier)
}

func (m *Monitor) assess(cluster string, snapshot models.Snapshot, worker models.WorkerHealth, trigger string, previous, next models.HealthState, scaling engine.ScalingContext, classifier *engine.Classifier) models.Assessment {
	assessment := models.Assessment{
		Cluster:       cluster,
		Timestamp:     snapshot.Timestamp,
		Trigger:       trigger,
		PreviousState: previous,
		State:         next,
	}

	// Bottleneck attribution is unreliable while the server itself is
	// critical, so classification is skipped there.
	if next != models.StateCritical {
		assessment.BottleneckEvaluated = true
		assessment.Bottleneck = classifier.Classify(snapshot.Primary, worker.Signals)
		metrics.ObserveBottleneck(string(assessment.Bottleneck))
	}

	assessment.Rules = engine.EvaluateWorkerRules(worker.Signals, scaling)
	for _, finding := range assessment.Rules {
		metrics.ObserveRule(string(finding.Rule))
	}
	return assessment
}

// State returns the current health state for a cluster.
func (m *Monitor) State(cluster string) models.HealthState {
	m.mu.RLock()
	tracker, ok := m.clusters[cluster]
	m.mu.RUnlock()
	if !ok {
		return models.StateHappy
	}
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.state
}

// WindowSnapshots returns the retained snapshots for a cluster, oldest first.
func (m *Monitor) WindowSnapshots(cluster string) []models.Snapshot {
	m.mu.RLock()
	tracker, ok := m.clusters[cluster]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.window.Snapshots()
}

// Clusters lists the clusters the monitor tracks.
func (m *Monitor) Clusters() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.clusters))
	for name := range m.clusters {
		names = append(names, name)
	}
	return names
}

func (m *Monitor) clusterConfig(cluster string) (config.ClusterConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tracker, ok := m.clusters[cluster]
	if !ok {
		return config.ClusterConfig{}, false
	}
	return tracker.config, true
}
