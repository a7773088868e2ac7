// File path: internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"time"

	"github.com/launchbase/opsgate/internal/common"
	"github.com/launchbase/opsgate/internal/common/telemetry"
)

// Decision is the outcome of one non-blocking throttle check. Current is
// the true post-increment count even when the check is denied, so callers
// can compute an exact retry-after.
type Decision struct {
	Allowed bool
	Current int64
	Limit   int
	ResetAt time.Time
}

// RetryAfter returns the whole seconds until the window resets, at least 1
// for a denied decision whose window has not yet elapsed.
func (d Decision) RetryAfter(now time.Time) int {
	remaining := d.ResetAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	seconds := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		seconds++
	}
	return seconds
}

// Backend is a fixed-window counter store. Each key's window is anchored
// at the key's first observed request, not a wall-clock boundary.
type Backend interface {
	Check(ctx context.Context, key string, max int, window time.Duration) (Decision, error)
}

// Limiter is the two-variant throttle strategy selected once at
// construction: an optional primary backend (Redis) with an in-process
// counter map behind it. A primary error is never surfaced to callers;
// the check silently degrades to the in-process counter. Throttling fails
// open, access control never does.
type Limiter struct {
	primary  Backend
	fallback *MemoryBackend
}

// New builds a Limiter. A nil primary means the in-process counter is the
// only backend.
func New(primary Backend, sweepInterval time.Duration) *Limiter {
	return &Limiter{
		primary:  primary,
		fallback: NewMemoryBackend(sweepInterval),
	}
}

// Start launches the in-process sweep task.
func (l *Limiter) Start() {
	if l == nil || l.fallback == nil {
		return
	}
	l.fallback.Start()
}

// Stop cancels the sweep task.
func (l *Limiter) Stop() {
	if l == nil || l.fallback == nil {
		return
	}
	l.fallback.Stop()
}

// Check consumes one unit from the key's current window and reports the
// resulting decision. It never blocks waiting for capacity and never fails
// a request because the primary backend is unreachable.
func (l *Limiter) Check(ctx context.Context, key string, max int, window time.Duration) Decision {
	decision := l.check(ctx, key, max, window)
	telemetry.RecordLimiterCheck(decision.Allowed)
	return decision
}

func (l *Limiter) check(ctx context.Context, key string, max int, window time.Duration) Decision {
	if l.primary != nil {
		decision, err := l.primary.Check(ctx, key, max, window)
		if err == nil {
			return decision
		}
		common.Logger().Warn("ratelimit: primary backend error, using in-process counter", "key", key, "error", err)
		telemetry.RecordLimiterFallback()
	}
	decision, _ := l.fallback.Check(ctx, key, max, window)
	return decision
}

// Key builds a scope-qualified limiter key for one identity.
func Key(scope, id string) string {
	return scope + ":" + id
}
