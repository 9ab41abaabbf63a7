package embedding

import (
	"context"
	"net/http"
	"time"
)

// AvailabilityChecker probes a single target's reachability. HTTPChecker
// is the production implementation; tests supply a fake.
type AvailabilityChecker interface {
	Check(ctx context.Context, baseURL string) bool
}

// HTTPChecker probes a target with a short GET /api/version, grounded on
// pkg/mcp/health.go's checkServer: a bounded-timeout liveness probe whose
// only signal is "did this succeed," not response content.
type HTTPChecker struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPChecker builds an HTTPChecker with the given per-request timeout.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPChecker{client: &http.Client{Timeout: timeout}, timeout: timeout}
}

// Check returns true if baseURL + "/api/version" answers with a 2xx
// status within the configured timeout.
func (c *HTTPChecker) Check(ctx context.Context, baseURL string) bool {
	if baseURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
