package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulsestack/pulse-engine/internal/config"
	"github.com/pulsestack/pulse-engine/internal/engine"
	"github.com/pulsestack/pulse-engine/internal/models"
	"github.com/pulsestack/pulse-engine/internal/services"
	"github.com/pulsestack/pulse-engine/internal/store"
)

func healthySnapshot(ts time.Time) models.Snapshot {
	var snap models.Snapshot
	snap.Timestamp = ts
	snap.Primary.StateTransitions.ThroughputPerSec = 60
	snap.Primary.WorkflowCompletion.CompletionRate = 0.98
	snap.Primary.History.BacklogAgeSec = 5
	snap.Narrative = []models.LogPattern{{Pattern: "shard rebalance", Service: "history", Count: 3}}
	return snap
}

func idleWorkerHealth() models.WorkerHealth {
	var health models.WorkerHealth
	health.Timestamp = time.Now().UTC()
	health.Signals.WorkflowSlotsAvailable = 10
	health.Signals.ActivitySlotsAvailable = 10
	health.Signals.WorkflowPollers = 2
	health.Signals.ActivityPollers = 2
	health.Cache.StickyCacheHitRate = 0.9
	return health
}

func newTestHandler(t *testing.T) (http.Handler, *services.Monitor, *store.Store) {
	t.Helper()
	assessments := store.New(50, time.Hour)
	clusters := []config.ClusterConfig{{Name: "prod", WorkerCount: 3}}
	monitor, err := services.NewMonitor(nil, engine.DefaultThresholds(), 10, clusters, assessments, nil, nil)
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	return NewHandler(nil, monitor, assessments, nil), monitor, assessments
}

func runCycle(t *testing.T, monitor *services.Monitor, ts time.Time) {
	t.Helper()
	if _, err := monitor.RunCycle(context.Background(), "prod", healthySnapshot(ts), idleWorkerHealth(), models.TriggerScheduled); err != nil {
		t.Fatalf("RunCycle() error: %v", err)
	}
}

func doRequest(t *testing.T, handler http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	rec := doRequest(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListClusters(t *testing.T) {
	handler, monitor, _ := newTestHandler(t)
	runCycle(t, monitor, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/clusters", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var clusters []ClusterStatus
	if err := json.NewDecoder(rec.Body).Decode(&clusters); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(clusters) != 1 || clusters[0].Name != "prod" {
		t.Fatalf("unexpected clusters: %+v", clusters)
	}
	if clusters[0].State != models.StateHappy {
		t.Fatalf("state = %s", clusters[0].State)
	}
	if clusters[0].LastEvaluated == nil {
		t.Fatal("last evaluated missing after a cycle")
	}
}

func TestClusterStatus(t *testing.T) {
	handler, monitor, _ := newTestHandler(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	runCycle(t, monitor, base)
	runCycle(t, monitor, base.Add(30*time.Second))

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/status/prod", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != models.StateHappy {
		t.Fatalf("state = %s", resp.State)
	}
	if resp.Assessment == nil || !resp.Assessment.BottleneckEvaluated {
		t.Fatalf("assessment missing or unclassified: %+v", resp.Assessment)
	}
	if resp.Trend.Samples != 2 {
		t.Fatalf("trend samples = %d, want 2", resp.Trend.Samples)
	}
	if len(resp.Narrative) == 0 {
		t.Fatal("narrative rollup missing")
	}
}

func TestClusterStatusNotFound(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	rec := doRequest(t, handler, http.MethodGet, "/api/v1/status/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestClusterHistorySinceFilter(t *testing.T) {
	handler, monitor, _ := newTestHandler(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	runCycle(t, monitor, base)
	runCycle(t, monitor, base.Add(time.Minute))
	runCycle(t, monitor, base.Add(2*time.Minute))

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/history/prod?since="+base.Add(time.Minute).Format(time.RFC3339), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var history []models.Assessment
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want since filter to keep 2", len(history))
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/history/prod?since=not-a-time", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for invalid since", rec.Code)
	}
}

func TestEvaluateDryRun(t *testing.T) {
	handler, monitor, _ := newTestHandler(t)

	snap := healthySnapshot(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	snap.Primary.StateTransitions.ThroughputPerSec = 5
	snap.Primary.History.BacklogAgeSec = 200

	body, err := json.Marshal(EvaluateRequest{
		Cluster:      "prod",
		CurrentState: models.StateStressed,
		Snapshot:     snap,
		Worker:       idleWorkerHealth(),
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/evaluate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var assessment models.Assessment
	if err := json.NewDecoder(rec.Body).Decode(&assessment); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if assessment.State != models.StateCritical {
		t.Fatalf("state = %s, want critical from stressed", assessment.State)
	}
	if assessment.BottleneckEvaluated {
		t.Fatal("critical dry run must skip classification")
	}

	// Dry runs never mutate tracked state.
	if monitor.State("prod") != models.StateHappy {
		t.Fatalf("dry run mutated state to %s", monitor.State("prod"))
	}
}

func TestEvaluateRejectsInvalidSignals(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	snap := healthySnapshot(time.Now().UTC())
	snap.Primary.WorkflowCompletion.CompletionRate = 1.4

	body, err := json.Marshal(EvaluateRequest{Cluster: "prod", Snapshot: snap, Worker: idleWorkerHealth()})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/evaluate", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp struct {
		Error      string                  `json:"error"`
		Violations []models.FieldViolation `json:"violations"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Violations) == 0 {
		t.Fatalf("expected field violations, got %+v", resp)
	}
}

func TestEvaluateRejectsMalformedBody(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/evaluate", []byte("{not json"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEvaluateRequiresCluster(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	body, _ := json.Marshal(EvaluateRequest{Snapshot: healthySnapshot(time.Now().UTC()), Worker: idleWorkerHealth()})
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/evaluate", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
