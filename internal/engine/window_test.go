package engine

import (
	"testing"
	"time"

	"github.com/pulsestack/pulse-engine/internal/models"
)

func snapshotAt(sec int) models.Snapshot {
	return models.Snapshot{
		Timestamp: time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC),
		Primary:   nominalPrimary(),
	}
}

func TestNewWindowRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := NewWindow(0); err == nil {
		t.Fatalf("expected error for capacity 0")
	}
	if _, err := NewWindow(-3); err == nil {
		t.Fatalf("expected error for negative capacity")
	}
}

func TestWindowLengthIsMinOfPushesAndCapacity(t *testing.T) {
	w, err := NewWindow(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 4; i++ {
		w.Push(snapshotAt(i))
	}
	if w.Len() != 4 {
		t.Fatalf("expected 4 retained snapshots, got %d", w.Len())
	}

	for i := 4; i < 15; i++ {
		w.Push(snapshotAt(i))
	}
	if w.Len() != 10 {
		t.Fatalf("expected capacity-bound length 10, got %d", w.Len())
	}
}

func TestWindowRetainsLastCapacityPushesInOrder(t *testing.T) {
	w, _ := NewWindow(10)
	for i := 0; i < 15; i++ {
		w.Push(snapshotAt(i))
	}

	got := w.Snapshots()
	if len(got) != 10 {
		t.Fatalf("expected 10 snapshots, got %d", len(got))
	}
	for i, snap := range got {
		want := snapshotAt(5 + i).Timestamp
		if !snap.Timestamp.Equal(want) {
			t.Fatalf("position %d: expected %s, got %s", i, want, snap.Timestamp)
		}
	}
}

func TestWindowReadsDoNotMutate(t *testing.T) {
	w, _ := NewWindow(3)
	w.Push(snapshotAt(1))
	w.Push(snapshotAt(2))

	before := w.Snapshots()
	_ = w.Snapshots()
	latest, ok := w.Latest()
	if !ok {
		t.Fatalf("expected a latest snapshot")
	}
	if !latest.Timestamp.Equal(snapshotAt(2).Timestamp) {
		t.Fatalf("unexpected latest timestamp %s", latest.Timestamp)
	}

	after := w.Snapshots()
	if len(before) != len(after) {
		t.Fatalf("reads mutated window length: %d then %d", len(before), len(after))
	}
	for i := range before {
		if !before[i].Timestamp.Equal(after[i].Timestamp) {
			t.Fatalf("reads reordered window at %d", i)
		}
	}
}

func TestWindowLatestEmpty(t *testing.T) {
	w, _ := NewWindow(2)
	if _, ok := w.Latest(); ok {
		t.Fatalf("empty window must report no latest snapshot")
	}
}
