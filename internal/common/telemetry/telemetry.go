// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/launchbase/opsgate/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

var (
	initOnce sync.Once

	artifactResolutions *expvar.Map
	signedURLTotal      *expvar.Int
	streamBytesTotal    *expvar.Int

	liveStateTotal *expvar.Int

	limiterChecksTotal   *expvar.Int
	limiterDeniedTotal   *expvar.Int
	limiterFallbackTotal *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		artifactResolutions = expvar.NewMap("opsgate_artifact_resolutions_total")
		signedURLTotal = expvar.NewInt("opsgate_signed_urls_total")
		streamBytesTotal = expvar.NewInt("opsgate_stream_bytes_total")

		liveStateTotal = expvar.NewInt("opsgate_live_state_total")

		limiterChecksTotal = expvar.NewInt("opsgate_limiter_checks_total")
		limiterDeniedTotal = expvar.NewInt("opsgate_limiter_denied_total")
		limiterFallbackTotal = expvar.NewInt("opsgate_limiter_fallback_total")
	})
}

// StartSpan records a debug-level trace span around an operation. The
// returned func ends the span and logs its duration with any extra attrs.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		if sp == nil {
			return
		}
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// RecordArtifactResolution counts a resolution by outcome (streamed,
// redirected, not_found, denied, path_escape).
func RecordArtifactResolution(outcome string) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(outcome))
	if key == "" {
		key = "unknown"
	}
	artifactResolutions.Add(key, 1)
}

// RecordSignedURL counts an issued remote-object redirect.
func RecordSignedURL() {
	ensureInit()
	signedURLTotal.Add(1)
}

// RecordStreamedBytes accumulates bytes served from local artifact storage.
func RecordStreamedBytes(n int64) {
	ensureInit()
	if n > 0 {
		streamBytesTotal.Add(n)
	}
}

// RecordLiveState counts a live-state projection.
func RecordLiveState() {
	ensureInit()
	liveStateTotal.Add(1)
}

// RecordLimiterCheck counts a throttle decision and whether it denied.
func RecordLimiterCheck(allowed bool) {
	ensureInit()
	limiterChecksTotal.Add(1)
	if !allowed {
		limiterDeniedTotal.Add(1)
	}
}

// RecordLimiterFallback counts a silent switch from the Redis backend to
// the in-process counter.
func RecordLimiterFallback() {
	ensureInit()
	limiterFallbackTotal.Add(1)
}

// SpanDuration reports elapsed time for the span carried by ctx, if any.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}
