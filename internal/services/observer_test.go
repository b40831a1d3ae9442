package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsestack/pulse-engine/internal/models"
)

type fakeSource struct {
	snapshots map[string]models.Snapshot
	workers   map[string]models.WorkerHealth
	failFor   string
	calls     int
}

func (f *fakeSource) FetchClusterSignals(_ context.Context, cluster string) (models.Snapshot, error) {
	f.calls++
	if cluster == f.failFor {
		return models.Snapshot{}, errors.New("collector unavailable")
	}
	return f.snapshots[cluster], nil
}

func (f *fakeSource) FetchWorkerSignals(_ context.Context, cluster string) (models.WorkerHealth, error) {
	return f.workers[cluster], nil
}

func TestObserverSweepEvaluatesAllClusters(t *testing.T) {
	monitor := newTestMonitor(t, nil)
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{
		snapshots: map[string]models.Snapshot{
			"prod":    healthySnapshot(ts),
			"staging": criticalSnapshot(ts),
		},
		workers: map[string]models.WorkerHealth{
			"prod":    idleWorkerHealth(),
			"staging": idleWorkerHealth(),
		},
	}

	observer := NewObserver(nil, source, monitor, time.Minute, []string{"prod", "staging"})
	observer.sweep(context.Background())

	if monitor.State("prod") != models.StateHappy {
		t.Fatalf("prod state = %s", monitor.State("prod"))
	}
	if monitor.State("staging") != models.StateStressed {
		t.Fatalf("staging state = %s, want stressed on first critical signals", monitor.State("staging"))
	}
}

func TestObserverFailingClusterDoesNotBlockOthers(t *testing.T) {
	monitor := newTestMonitor(t, nil)
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{
		snapshots: map[string]models.Snapshot{"prod": criticalSnapshot(ts)},
		workers:   map[string]models.WorkerHealth{"prod": idleWorkerHealth()},
		failFor:   "broken",
	}

	observer := NewObserver(nil, source, monitor, time.Minute, []string{"broken", "prod"})
	observer.sweep(context.Background())

	if monitor.State("prod") != models.StateStressed {
		t.Fatalf("prod state = %s, failing cluster must not block the sweep", monitor.State("prod"))
	}
	if len(monitor.WindowSnapshots("broken")) != 0 {
		t.Fatal("failed fetch must not record a snapshot")
	}
}

func TestObserverRunStopsOnCancel(t *testing.T) {
	monitor := newTestMonitor(t, nil)
	source := &fakeSource{
		snapshots: map[string]models.Snapshot{"prod": healthySnapshot(time.Now().UTC())},
		workers:   map[string]models.WorkerHealth{"prod": idleWorkerHealth()},
	}

	observer := NewObserver(nil, source, monitor, 10*time.Millisecond, []string{"prod"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		observer.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer did not stop after cancellation")
	}
	if source.calls == 0 {
		t.Fatal("observer never fetched signals")
	}
}
