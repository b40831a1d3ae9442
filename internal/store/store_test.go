package store

import (
	"testing"
	"time"

	"github.com/pulsestack/pulse-engine/internal/models"
)

func assessmentAt(cluster string, ts time.Time, state models.HealthState) models.Assessment {
	return models.Assessment{Cluster: cluster, Timestamp: ts, State: state}
}

func TestStorePutAndLatest(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s := New(10, time.Hour, WithNow(func() time.Time { return base }))

	s.Put(assessmentAt("prod", base.Add(-2*time.Minute), models.StateHappy))
	s.Put(assessmentAt("prod", base.Add(-1*time.Minute), models.StateStressed))

	latest, ok := s.Latest("prod")
	if !ok {
		t.Fatal("expected latest assessment")
	}
	if latest.State != models.StateStressed {
		t.Fatalf("latest state = %s, want stressed", latest.State)
	}

	if _, ok := s.Latest("unknown"); ok {
		t.Fatal("unknown cluster should have no assessment")
	}
}

func TestStoreHistoryOrderAndBound(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s := New(3, time.Hour, WithNow(func() time.Time { return base }))

	for i := 0; i < 5; i++ {
		s.Put(assessmentAt("prod", base.Add(time.Duration(i)*time.Second), models.StateHappy))
	}

	history := s.History("prod")
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Fatal("history must be ordered oldest first")
		}
	}
	if !history[0].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("oldest retained = %s, want the third put", history[0].Timestamp)
	}
}

func TestStoreRetention(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s := New(10, 10*time.Minute, WithNow(func() time.Time { return now }))

	s.Put(assessmentAt("prod", now.Add(-30*time.Minute), models.StateCritical))
	s.Put(assessmentAt("prod", now.Add(-5*time.Minute), models.StateStressed))

	history := s.History("prod")
	if len(history) != 1 {
		t.Fatalf("history length = %d, want expired entry pruned", len(history))
	}
	if history[0].State != models.StateStressed {
		t.Fatalf("retained state = %s", history[0].State)
	}
}

func TestStoreClusters(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s := New(10, time.Hour, WithNow(func() time.Time { return now }))

	s.Put(assessmentAt("a", now, models.StateHappy))
	s.Put(assessmentAt("b", now, models.StateHappy))

	clusters := s.Clusters()
	if len(clusters) != 2 {
		t.Fatalf("clusters = %v, want 2 entries", clusters)
	}
}
