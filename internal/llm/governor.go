package llm

import (
	"context"
	"sync"
	"time"
)

// recheckInterval is how long the governor sleeps between window re-checks
// when the per-minute budget is exhausted.
const recheckInterval = 200 * time.Millisecond

// Governor bounds concurrent model calls with a permit pool and smooths
// request rate with a sliding 60-second window of call timestamps. State is
// process-local; replicas each carry their own budget.
type Governor struct {
	permits chan struct{}

	mu           sync.Mutex
	window       []time.Time
	maxPerMinute int

	// Injected for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGovernor creates a governor admitting maxConcurrent in-flight calls and
// maxPerMinute call starts per sliding minute.
func NewGovernor(maxConcurrent, maxPerMinute int) *Governor {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxPerMinute <= 0 {
		maxPerMinute = 60
	}
	return &Governor{
		permits:      make(chan struct{}, maxConcurrent),
		maxPerMinute: maxPerMinute,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// Acquire blocks until a concurrency permit and a rate-window slot are both
// available, then records the call timestamp. There is no permit timeout:
// concurrency is soft backpressure, not a deadline. Release must be called
// once per successful Acquire.
func (g *Governor) Acquire(ctx context.Context) error {
	select {
	case g.permits <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		if g.admit() {
			return nil
		}
		if err := g.sleep(ctx, recheckInterval); err != nil {
			g.Release()
			return err
		}
	}
}

// Release returns a concurrency permit.
func (g *Governor) Release() {
	select {
	case <-g.permits:
	default:
	}
}

// admit prunes stamps older than a minute and claims a slot if one is free.
func (g *Governor) admit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-time.Minute)
	kept := g.window[:0]
	for _, ts := range g.window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	g.window = kept

	if len(g.window) >= g.maxPerMinute {
		return false
	}
	g.window = append(g.window, now)
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
