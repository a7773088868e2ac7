// File path: internal/ratelimit/memory.go
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// MemoryBackend is the in-process fixed-window counter map. Increments on
// one key serialise on that key's mutex, held only for the
// read-modify-write; the map mutex is never held across I/O. A periodic
// sweep evicts expired keys to bound memory.
type MemoryBackend struct {
	mu       sync.Mutex
	counters map[string]*windowCounter

	sweepInterval time.Duration
	stopCh        chan struct{}
	startOnce     sync.Once
	stopOnce      sync.Once
}

type windowCounter struct {
	mu      sync.Mutex
	count   int64
	resetAt time.Time
}

// NewMemoryBackend constructs a backend sweeping at the given interval.
func NewMemoryBackend(sweepInterval time.Duration) *MemoryBackend {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	return &MemoryBackend{
		counters:      make(map[string]*windowCounter),
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the sweep goroutine. Safe to call once per backend.
func (b *MemoryBackend) Start() {
	b.startOnce.Do(func() {
		go b.sweepLoop()
	})
}

// Stop cancels the sweep goroutine.
func (b *MemoryBackend) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// Check implements Backend. It never returns an error.
func (b *MemoryBackend) Check(ctx context.Context, key string, max int, window time.Duration) (Decision, error) {
	counter := b.counter(key)
	now := time.Now()

	counter.mu.Lock()
	if counter.resetAt.IsZero() || !now.Before(counter.resetAt) {
		// First use, or the window elapsed: a fresh window anchored now.
		counter.count = 1
		counter.resetAt = now.Add(window)
	} else {
		counter.count++
	}
	decision := Decision{
		Allowed: counter.count <= int64(max),
		Current: counter.count,
		Limit:   max,
		ResetAt: counter.resetAt,
	}
	counter.mu.Unlock()
	return decision, nil
}

func (b *MemoryBackend) counter(key string) *windowCounter {
	b.mu.Lock()
	defer b.mu.Unlock()
	counter, ok := b.counters[key]
	if !ok {
		counter = &windowCounter{}
		b.counters[key] = counter
	}
	return counter
}

func (b *MemoryBackend) sweepLoop() {
	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case now := <-ticker.C:
			b.sweep(now)
		}
	}
}

func (b *MemoryBackend) sweep(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, counter := range b.counters {
		counter.mu.Lock()
		expired := !counter.resetAt.IsZero() && !now.Before(counter.resetAt)
		counter.mu.Unlock()
		if expired {
			delete(b.counters, key)
		}
	}
}

// size reports the live counter count. Test hook.
func (b *MemoryBackend) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.counters)
}
