package command

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ErrRateLimited indicates a command was rejected because its target is
// receiving operations faster than the configured dispatch rate.
var ErrRateLimited = errors.New("command: dispatch rate limit exceeded for target")

// maxTrackedTargets bounds the per-target limiter map. When exceeded the map
// is reset wholesale; a brief window of unthrottled targets is acceptable,
// unbounded memory growth from topic churn is not.
const maxTrackedTargets = 1024

// DispatchPolicy throttles command dispatch per target topic.
//
// Rapid repeated operations against the same machine or slot are usually a
// stuck UI button or a runaway script, not operator intent. The policy is
// explicit and injected — callers that need it ask for it, nothing is
// throttled implicitly.
//
// Thread Safety:
//   - Allow is safe for concurrent use.
type DispatchPolicy struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewDispatchPolicy creates a per-target rate limiter.
//
// Parameters:
//   - opsPerSec: Sustained operations per second allowed per target
//   - burst: Maximum operations allowed in a single burst per target
func NewDispatchPolicy(opsPerSec float64, burst int) *DispatchPolicy {
	if opsPerSec <= 0 {
		opsPerSec = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &DispatchPolicy{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(opsPerSec),
		burst:    burst,
	}
}

// Allow reports whether a command for the given target may be dispatched now.
// The target is typically the destination topic. Rejected commands should be
// reported to the caller as ErrRateLimited, never silently dropped.
func (p *DispatchPolicy) Allow(target string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.limiters) >= maxTrackedTargets {
		p.limiters = make(map[string]*rate.Limiter)
	}

	lim, ok := p.limiters[target]
	if !ok {
		lim = rate.NewLimiter(p.limit, p.burst)
		p.limiters[target] = lim
	}
	return lim.Allow()
}
