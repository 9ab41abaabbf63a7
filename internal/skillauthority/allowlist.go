package skillauthority

import (
	"context"
	"sync"
	"time"
)

// allowlistCache wraps an AllowlistSource with a TTL cache and single-flight
// refresh (spec.md §5: "Allowlist cache: TTL 60s; single-flight refresh"),
// failing closed to an empty allowlist whenever the source errors so a
// classify pass never silently treats an unknown package as safe.
type allowlistCache struct {
	source AllowlistSource
	ttl    time.Duration

	mu        sync.Mutex
	inflight  chan struct{}
	packages  map[string]bool
	fetchedAt time.Time
}

func newAllowlistCache(source AllowlistSource, ttl time.Duration) *allowlistCache {
	return &allowlistCache{source: source, ttl: ttl}
}

// classify returns the PackageStatus of each requested package, refreshing
// the cache if it has expired. A fetch failure (or a nil source) yields an
// empty allowlist for this call — every package classifies as
// non_allowlisted, matching the spec's fail-closed requirement.
func (c *allowlistCache) classify(ctx context.Context, requested []string) map[string]PackageStatus {
	allowed := c.snapshot(ctx)
	result := make(map[string]PackageStatus, len(requested))
	for _, pkg := range requested {
		if allowed[pkg] {
			result[pkg] = PackageAllowlisted
		} else {
			result[pkg] = PackageNonAllowlisted
		}
	}
	return result
}

func (c *allowlistCache) snapshot(ctx context.Context) map[string]bool {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return nil
	}
	if time.Since(c.fetchedAt) < c.ttl && c.packages != nil {
		defer c.mu.Unlock()
		return c.packages
	}
	if c.inflight != nil {
		wait := c.inflight
		c.mu.Unlock()
		<-wait
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.packages
	}
	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	names, err := c.source.FetchAllowlist(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// fail-closed: do not cache a successful-looking empty result — try
		// again next call, but this call itself sees nothing allowlisted.
		close(done)
		c.inflight = nil
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	c.packages = set
	c.fetchedAt = time.Now()
	close(done)
	c.inflight = nil
	return c.packages
}
