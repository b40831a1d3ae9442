package engine

import (
	"fmt"

	"github.com/pulsestack/pulse-engine/internal/models"
)

// Window is a bounded FIFO history of signal snapshots used for trend
// context. It is a fixed-size ring: push and eviction are O(1), and once at
// capacity each insertion evicts exactly the oldest element.
//
// A Window provides no internal locking; the owner serialises access.
type Window struct {
	buf  []models.Snapshot
	head int // index of the oldest element
	size int
}

// NewWindow creates a window retaining up to capacity snapshots.
func NewWindow(capacity int) (*Window, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("window capacity must be at least 1, got %d", capacity)
	}
	return &Window{buf: make([]models.Snapshot, capacity)}, nil
}

// Push appends a snapshot, evicting the oldest when full.
func (w *Window) Push(s models.Snapshot) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = s
		w.size++
		return
	}
	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
}

// Snapshots returns the retained history in insertion order, most recent
// last. The returned slice is a copy; reads never mutate the window.
func (w *Window) Snapshots() []models.Snapshot {
	out := make([]models.Snapshot, 0, w.size)
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[(w.head+i)%len(w.buf)])
	}
	return out
}

// Latest returns the most recent snapshot, if any.
func (w *Window) Latest() (models.Snapshot, bool) {
	if w.size == 0 {
		return models.Snapshot{}, false
	}
	return w.buf[(w.head+w.size-1)%len(w.buf)], true
}

// Len reports the number of retained snapshots.
func (w *Window) Len() int { return w.size }

// Cap reports the fixed capacity.
func (w *Window) Cap() int { return len(w.buf) }
