// Package narrative aggregates log pattern evidence across a window of
// snapshots. The rollup feeds status responses; it never influences the
// health gates.
package narrative

import (
	"sort"
	"time"

	"github.com/pulsestack/pulse-engine/internal/models"
)

// PatternSummary aggregates one (service, pattern) pair across the window.
type PatternSummary struct {
	Pattern       string    `json:"pattern"`
	Service       string    `json:"service"`
	TotalCount    int       `json:"total_count"`
	Occurrences   int       `json:"occurrences"`
	Prevalence    float64   `json:"prevalence"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	SampleMessage string    `json:"sample_message,omitempty"`
}

type patternAggregate struct {
	total     int
	snapshots int
	firstSeen time.Time
	lastSeen  time.Time
	sample    string
}

type patternKey struct {
	service string
	pattern string
}

// Rollup aggregates log patterns across snapshots, most frequent first.
// limit truncates the result; a non-positive limit keeps everything.
func Rollup(snapshots []models.Snapshot, limit int) []PatternSummary {
	if len(snapshots) == 0 {
		return nil
	}

	aggregates := make(map[patternKey]*patternAggregate)
	for _, snap := range snapshots {
		seen := make(map[patternKey]struct{})
		for _, entry := range snap.Narrative {
			key := patternKey{service: entry.Service, pattern: entry.Pattern}
			agg, ok := aggregates[key]
			if !ok {
				agg = &patternAggregate{firstSeen: snap.Timestamp}
				aggregates[key] = agg
			}
			agg.total += entry.Count
			if snap.Timestamp.Before(agg.firstSeen) {
				agg.firstSeen = snap.Timestamp
			}
			if snap.Timestamp.After(agg.lastSeen) {
				agg.lastSeen = snap.Timestamp
			}
			if entry.SampleMessage != "" {
				agg.sample = entry.SampleMessage
			}
			if _, dup := seen[key]; !dup {
				agg.snapshots++
				seen[key] = struct{}{}
			}
		}
	}

	summaries := make([]PatternSummary, 0, len(aggregates))
	for key, agg := range aggregates {
		summaries = append(summaries, PatternSummary{
			Pattern:       key.pattern,
			Service:       key.service,
			TotalCount:    agg.total,
			Occurrences:   agg.snapshots,
			Prevalence:    float64(agg.snapshots) / float64(len(snapshots)),
			FirstSeen:     agg.firstSeen,
			LastSeen:      agg.lastSeen,
			SampleMessage: agg.sample,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalCount != summaries[j].TotalCount {
			return summaries[i].TotalCount > summaries[j].TotalCount
		}
		if summaries[i].Service != summaries[j].Service {
			return summaries[i].Service < summaries[j].Service
		}
		return summaries[i].Pattern < summaries[j].Pattern
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}
