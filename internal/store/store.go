// Package store keeps recent assessments in memory for the status API.
package store

import (
	"sync"
	"time"

	"github.com/pulsestack/pulse-engine/internal/models"
)

// Store retains a bounded history of assessments per cluster. Entries older
// than the retention period are pruned lazily on read and write.
type Store struct {
	mu        sync.RWMutex
	history   map[string][]models.Assessment
	maxPerKey int
	retention time.Duration
	now       func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store keeping up to maxPerCluster assessments per cluster for
// at most retention. Non-positive arguments fall back to sane defaults.
func New(maxPerCluster int, retention time.Duration, opts ...Option) *Store {
	if maxPerCluster <= 0 {
		maxPerCluster = 100
	}
	if retention <= 0 {
		retention = time.Hour
	}
	s := &Store{
		history:   make(map[string][]models.Assessment),
		maxPerKey: maxPerCluster,
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put appends an assessment to its cluster history.
func (s *Store) Put(assessment models.Assessment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assessment.Cluster
	entries := s.prune(s.history[key])
	entries = append(entries, assessment)
	if len(entries) > s.maxPerKey {
		entries = entries[len(entries)-s.maxPerKey:]
	}
	s.history[key] = entries
}

// Latest returns the most recent assessment for a cluster.
func (s *Store) Latest(cluster string) (models.Assessment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.prune(s.history[cluster])
	s.history[cluster] = entries
	if len(entries) == 0 {
		return models.Assessment{}, false
	}
	return entries[len(entries)-1], true
}

// History returns the retained assessments for a cluster, oldest first.
func (s *Store) History(cluster string) []models.Assessment {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.prune(s.history[cluster])
	s.history[cluster] = entries
	out := make([]models.Assessment, len(entries))
	copy(out, entries)
	return out
}

// Clusters lists the clusters with at least one retained assessment.
func (s *Store) Clusters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.history))
	for name, entries := range s.history {
		if len(entries) > 0 {
			names = append(names, name)
		}
	}
	return names
}

func (s *Store) prune(entries []models.Assessment) []models.Assessment {
	cutoff := s.now().Add(-s.retention)
	idx := 0
	for idx < len(entries) && entries[idx].Timestamp.Before(cutoff) {
		idx++
	}
	return entries[idx:]
}
