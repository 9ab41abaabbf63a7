package embedding

import (
	"context"
	"log/slog"
	"time"
)

// Router implements Resolve per spec.md §4.7's decision matrix. It holds
// the short-TTL availability cache and the checker used to refresh it
// when a caller doesn't supply Availability directly.
type Router struct {
	cpuURL  string
	gpuURL  string
	checker AvailabilityChecker
	cache   *availabilityCache
	metrics *Metrics
}

// NewRouter builds a Router. checker may be nil (availability always
// resolves optimistic-all-available, per spec.md §4.7). metrics may be
// nil (metrics disabled).
func NewRouter(cpuURL, gpuURL string, checker AvailabilityChecker, cacheTTL time.Duration, metrics *Metrics) *Router {
	return &Router{
		cpuURL:  cpuURL,
		gpuURL:  gpuURL,
		checker: checker,
		cache:   newAvailabilityCache(cacheTTL),
		metrics: metrics,
	}
}

// Resolve decides the effective embedding target for one call. role is
// carried through only for log context. availability, if non-nil,
// overrides the router's own cache/probe (a caller that already knows
// target health, e.g. a just-completed call, can short-circuit the
// probe). optionalPin, if non-nil and healthy per the resolved
// availability, is used directly instead of the policy table — an
// explicit caller override that still respects known-down targets
// rather than blindly honoring a stale pin.
func (r *Router) Resolve(ctx context.Context, role CallerRole, policy Policy, availability *Availability, optionalPin *Target) *Decision {
	start := time.Now()
	avail := r.resolveAvailability(ctx, availability)

	var decision *Decision
	if optionalPin != nil && r.isHealthy(avail, *optionalPin) {
		decision = &Decision{EffectiveTarget: *optionalPin, LogLevel: "info"}
	} else {
		decision = r.decide(policy, avail)
	}

	r.logDecision(role, policy, decision)
	if decision.HardError {
		r.metrics.recordTargetError(errorTarget(policy))
	} else {
		r.metrics.recordLatency(decision.EffectiveTarget, time.Since(start))
		if decision.FallbackReason != "" {
			r.metrics.recordFallback(TargetGPU, TargetCPU)
		}
	}
	return decision
}

// decide implements the policy x availability decision matrix verbatim
// (spec.md §4.7).
func (r *Router) decide(policy Policy, avail Availability) *Decision {
	switch policy {
	case PolicyCPUOnly:
		if avail.CPU {
			return &Decision{EffectiveTarget: TargetCPU, LogLevel: "info"}
		}
		return &Decision{HardError: true, ErrorCode: 503, LogLevel: "error"}

	case PolicyPreferGPU:
		if avail.GPU {
			return &Decision{EffectiveTarget: TargetGPU, LogLevel: "info"}
		}
		if avail.CPU {
			return &Decision{EffectiveTarget: TargetCPU, FallbackReason: "gpu_down", LogLevel: "warn"}
		}
		return &Decision{HardError: true, ErrorCode: 503, LogLevel: "error"}

	case PolicyAuto:
		if avail.GPU {
			return &Decision{EffectiveTarget: TargetGPU, LogLevel: "info"}
		}
		if avail.CPU {
			return &Decision{EffectiveTarget: TargetCPU, FallbackReason: "gpu_down", LogLevel: "info"}
		}
		return &Decision{HardError: true, ErrorCode: 503, LogLevel: "error"}

	default:
		return &Decision{HardError: true, ErrorCode: 503, LogLevel: "error"}
	}
}

// errorTarget labels which target a hard_error metric blames: cpu_only
// only ever fails on cpu, prefer_gpu/auto fail having preferred gpu.
func errorTarget(policy Policy) Target {
	if policy == PolicyCPUOnly {
		return TargetCPU
	}
	return TargetGPU
}

func (r *Router) isHealthy(avail Availability, target Target) bool {
	switch target {
	case TargetCPU:
		return avail.CPU
	case TargetGPU:
		return avail.GPU
	default:
		return false
	}
}

// resolveAvailability honors caller-supplied availability first, else
// consults the cache, probing (and caching) any target the cache
// doesn't have fresh data for. A nil checker means every uncached
// target is assumed available (spec.md §4.7's optimistic default).
func (r *Router) resolveAvailability(ctx context.Context, availability *Availability) Availability {
	if availability != nil {
		return *availability
	}
	return Availability{
		CPU: r.targetAvailable(ctx, TargetCPU, r.cpuURL),
		GPU: r.targetAvailable(ctx, TargetGPU, r.gpuURL),
	}
}

func (r *Router) targetAvailable(ctx context.Context, target Target, url string) bool {
	if healthy, ok := r.cache.Get(target); ok {
		return healthy
	}
	if r.checker == nil {
		return true
	}
	healthy := r.checker.Check(ctx, url)
	r.cache.Set(target, healthy)
	return healthy
}

func (r *Router) logDecision(role CallerRole, policy Policy, decision *Decision) {
	attrs := []any{"role", string(role), "policy", string(policy)}
	if decision.HardError {
		attrs = append(attrs, "hard_error", true, "error_code", decision.ErrorCode)
	} else {
		attrs = append(attrs, "effective_target", string(decision.EffectiveTarget))
		if decision.FallbackReason != "" {
			attrs = append(attrs, "fallback_reason", decision.FallbackReason)
		}
	}

	switch decision.LogLevel {
	case "error":
		slog.Error("embedding routing decision", attrs...)
	case "warn":
		slog.Warn("embedding routing decision", attrs...)
	default:
		slog.Info("embedding routing decision", attrs...)
	}
}
