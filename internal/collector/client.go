// Package collector fetches signal snapshots from the cluster's signal
// aggregation endpoints.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pulsestack/pulse-engine/internal/models"
)

// Client wraps the signal collector APIs emitting cluster and worker signals.
type Client struct {
	baseURL     string
	clusterPath string
	workerPath  string
	httpClient  *http.Client
	now         func() time.Time
}

// NewClient constructs a client targeting the configured collector instance.
func NewClient(baseURL, clusterPath, workerPath string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		clusterPath: clusterPath,
		workerPath:  workerPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// FetchClusterSignals retrieves the current signal snapshot for a cluster.
// Snapshots that violate signal range constraints are rejected here so
// malformed telemetry never reaches the evaluator.
func (c *Client) FetchClusterSignals(ctx context.Context, cluster string) (models.Snapshot, error) {
	if c == nil {
		return models.Snapshot{}, fmt.Errorf("collector client not initialised")
	}
	if c.baseURL == "" {
		return models.Snapshot{}, fmt.Errorf("collector base URL not configured")
	}

	payload := map[string]interface{}{
		"cluster": cluster,
		"as_of":   c.now().UTC().Format(time.RFC3339),
	}

	var snapshot models.Snapshot
	if err := c.postJSON(ctx, c.clusterURL(), payload, &snapshot); err != nil {
		return models.Snapshot{}, fmt.Errorf("collector cluster signals request failed: %w", err)
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = c.now().UTC()
	}
	if err := snapshot.Validate(); err != nil {
		return models.Snapshot{}, err
	}
	return snapshot, nil
}

// FetchWorkerSignals retrieves the aggregated worker fleet signals for a
// cluster, validated the same way as cluster snapshots.
func (c *Client) FetchWorkerSignals(ctx context.Context, cluster string) (models.WorkerHealth, error) {
	if c == nil {
		return models.WorkerHealth{}, fmt.Errorf("collector client not initialised")
	}
	if c.baseURL == "" {
		return models.WorkerHealth{}, fmt.Errorf("collector base URL not configured")
	}

	payload := map[string]interface{}{
		"cluster": cluster,
		"as_of":   c.now().UTC().Format(time.RFC3339),
	}

	var health models.WorkerHealth
	if err := c.postJSON(ctx, c.workerURL(), payload, &health); err != nil {
		return models.WorkerHealth{}, fmt.Errorf("collector worker signals request failed: %w", err)
	}
	if health.Timestamp.IsZero() {
		health.Timestamp = c.now().UTC()
	}
	if err := health.Validate(); err != nil {
		return models.WorkerHealth{}, err
	}
	return health, nil
}

func (c *Client) clusterURL() string { return c.resolvePath(c.clusterPath) }
func (c *Client) workerURL() string  { return c.resolvePath(c.workerPath) }

func (c *Client) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
