package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveCPUOnlyWithCPUAvailable(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyCPUOnly, &Availability{CPU: true, GPU: true}, nil)
	assert.Equal(t, TargetCPU, d.EffectiveTarget)
	assert.False(t, d.HardError)
	assert.Equal(t, "info", d.LogLevel)
}

func TestResolveCPUOnlyWithoutCPUIsHardError(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyCPUOnly, &Availability{CPU: false, GPU: true}, nil)
	assert.True(t, d.HardError)
	assert.Equal(t, 503, d.ErrorCode)
	assert.Equal(t, "error", d.LogLevel)
}

func TestResolvePreferGPUUsesGPUWhenHealthy(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	d := r.Resolve(context.Background(), RoleSQLMemoryEmbedding, PolicyPreferGPU, &Availability{CPU: true, GPU: true}, nil)
	assert.Equal(t, TargetGPU, d.EffectiveTarget)
	assert.Equal(t, "info", d.LogLevel)
}

func TestResolvePreferGPUFallsBackToCPU(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	d := r.Resolve(context.Background(), RoleSQLMemoryEmbedding, PolicyPreferGPU, &Availability{CPU: true, GPU: false}, nil)
	assert.Equal(t, TargetCPU, d.EffectiveTarget)
	assert.Equal(t, "gpu_down", d.FallbackReason)
	assert.Equal(t, "warn", d.LogLevel)
}

func TestResolvePreferGPUHardErrorWhenBothDown(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	d := r.Resolve(context.Background(), RoleSQLMemoryEmbedding, PolicyPreferGPU, &Availability{CPU: false, GPU: false}, nil)
	assert.True(t, d.HardError)
	assert.Equal(t, 503, d.ErrorCode)
}

func TestResolveAutoUsesGPUWhenHealthy(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyAuto, &Availability{CPU: true, GPU: true}, nil)
	assert.Equal(t, TargetGPU, d.EffectiveTarget)
}

func TestResolveAutoFallsBackToCPUAtInfoLevel(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyAuto, &Availability{CPU: true, GPU: false}, nil)
	assert.Equal(t, TargetCPU, d.EffectiveTarget)
	assert.Equal(t, "gpu_down", d.FallbackReason)
	assert.Equal(t, "info", d.LogLevel)
}

func TestResolveAutoHardErrorWhenBothDown(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyAuto, &Availability{CPU: false, GPU: false}, nil)
	assert.True(t, d.HardError)
	assert.Equal(t, 503, d.ErrorCode)
}

func TestResolveCPUOnlyNeverReturnsGPU(t *testing.T) {
	for _, avail := range []Availability{{true, true}, {true, false}, {false, true}, {false, false}} {
		r := NewRouter("", "", nil, time.Minute, NewMetrics())
		d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyCPUOnly, &avail, nil)
		assert.NotEqual(t, TargetGPU, d.EffectiveTarget)
	}
}

func TestResolveOptionalPinOverridesPolicyWhenHealthy(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	pin := TargetCPU
	d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyAuto, &Availability{CPU: true, GPU: true}, &pin)
	assert.Equal(t, TargetCPU, d.EffectiveTarget)
	assert.Empty(t, d.FallbackReason)
}

func TestResolveOptionalPinIgnoredWhenUnhealthy(t *testing.T) {
	r := NewRouter("", "", nil, time.Minute, NewMetrics())
	pin := TargetGPU
	d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyAuto, &Availability{CPU: true, GPU: false}, &pin)
	assert.Equal(t, TargetCPU, d.EffectiveTarget)
	assert.Equal(t, "gpu_down", d.FallbackReason)
}

type fakeChecker struct {
	healthy map[string]bool
	calls   int
}

func (f *fakeChecker) Check(_ context.Context, url string) bool {
	f.calls++
	return f.healthy[url]
}

func TestResolveWithoutAvailabilityConsultsCheckerAndCaches(t *testing.T) {
	checker := &fakeChecker{healthy: map[string]bool{"http://cpu": true, "http://gpu": false}}
	r := NewRouter("http://cpu", "http://gpu", checker, time.Minute, NewMetrics())

	d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyAuto, nil, nil)
	assert.Equal(t, TargetCPU, d.EffectiveTarget)
	assert.Equal(t, 2, checker.calls)

	// second call within TTL should hit the cache, not the checker again
	r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyAuto, nil, nil)
	assert.Equal(t, 2, checker.calls)
}

func TestResolveWithoutAvailabilityAndNilCheckerIsOptimistic(t *testing.T) {
	r := NewRouter("http://cpu", "http://gpu", nil, time.Minute, NewMetrics())
	d := r.Resolve(context.Background(), RoleArchiveEmbedding, PolicyPreferGPU, nil, nil)
	assert.Equal(t, TargetGPU, d.EffectiveTarget)
}
