package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pulsestack/pulse-engine/internal/models"
	"github.com/pulsestack/pulse-engine/internal/utils"
)

// AssessmentCache shares the latest assessment per cluster through a Provider
// so sidecars and dashboards can read cluster health without hitting the API.
type AssessmentCache struct {
	provider Provider
	ttl      time.Duration
}

// NewAssessmentCache wraps a Provider with assessment serialisation. A nil
// provider degrades to the noop cache.
func NewAssessmentCache(provider Provider, ttl time.Duration) *AssessmentCache {
	if provider == nil {
		provider = NoopProvider{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AssessmentCache{provider: provider, ttl: ttl}
}

func assessmentKey(cluster string) string {
	return "pulse:assessment:" + cluster
}

// Store writes the assessment for its cluster, replacing any previous one.
func (c *AssessmentCache) Store(ctx context.Context, assessment models.Assessment) error {
	payload, err := json.Marshal(assessment)
	if err != nil {
		return utils.NewAppError("cache.store", "marshal assessment", err)
	}
	if err := c.provider.Set(ctx, assessmentKey(assessment.Cluster), payload, c.ttl); err != nil {
		return utils.NewAppError("cache.store", "write assessment for "+assessment.Cluster, err)
	}
	return nil
}

// Latest returns the cached assessment for a cluster. ErrCacheMiss surfaces
// unchanged when no assessment has been stored or the TTL expired.
func (c *AssessmentCache) Latest(ctx context.Context, cluster string) (models.Assessment, error) {
	payload, err := c.provider.Get(ctx, assessmentKey(cluster))
	if err != nil {
		return models.Assessment{}, err
	}
	var assessment models.Assessment
	if err := json.Unmarshal(payload, &assessment); err != nil {
		return models.Assessment{}, utils.NewAppError("cache.latest", "decode cached assessment", err)
	}
	return assessment, nil
}

// Invalidate drops the cached assessment for a cluster.
func (c *AssessmentCache) Invalidate(ctx context.Context, cluster string) error {
	return c.provider.Del(ctx, assessmentKey(cluster))
}

// Close releases the underlying provider.
func (c *AssessmentCache) Close() error {
	return c.provider.Close()
}
