package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsestack/pulse-engine/internal/models"
)

type memoryProvider struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	payload, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return payload, nil
}

func (m *memoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.entries[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryProvider) Del(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memoryProvider) Close() error { return nil }

func TestAssessmentCacheRoundTrip(t *testing.T) {
	provider := newMemoryProvider()
	c := NewAssessmentCache(provider, time.Minute)

	assessment := models.Assessment{
		Cluster:   "prod-east",
		Timestamp: time.Now().UTC(),
		State:     models.StateStressed,
	}
	if err := c.Store(context.Background(), assessment); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if ttl := provider.ttls["pulse:assessment:prod-east"]; ttl != time.Minute {
		t.Fatalf("stored TTL = %s, want 1m", ttl)
	}

	got, err := c.Latest(context.Background(), "prod-east")
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if got.Cluster != "prod-east" || got.State != models.StateStressed {
		t.Fatalf("unexpected cached assessment: %+v", got)
	}
}

func TestAssessmentCacheMiss(t *testing.T) {
	c := NewAssessmentCache(newMemoryProvider(), time.Minute)
	if _, err := c.Latest(context.Background(), "unknown"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestAssessmentCacheInvalidate(t *testing.T) {
	c := NewAssessmentCache(newMemoryProvider(), time.Minute)
	assessment := models.Assessment{Cluster: "prod", State: models.StateHappy}
	if err := c.Store(context.Background(), assessment); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if err := c.Invalidate(context.Background(), "prod"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, err := c.Latest(context.Background(), "prod"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after invalidate, got %v", err)
	}
}

func TestAssessmentCacheNilProvider(t *testing.T) {
	c := NewAssessmentCache(nil, 0)
	if err := c.Store(context.Background(), models.Assessment{Cluster: "x"}); err != nil {
		t.Fatalf("noop Store() error: %v", err)
	}
	if _, err := c.Latest(context.Background(), "x"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss from noop provider, got %v", err)
	}
}
