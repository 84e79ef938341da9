package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Operation is a single model call attempt.
type Operation func(ctx context.Context) (Response, error)

// Invoker retries rate-limited model calls with truncated exponential backoff
// plus jitter, honoring any server-advertised retry delay when it is larger.
// Non-rate-limit errors propagate immediately.
type Invoker struct {
	maxAttempts    int
	baseDelay      time.Duration
	maxDelay       time.Duration
	attemptTimeout time.Duration

	// Injected for deterministic tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64 // uniform in [0,1)

	log zerolog.Logger
}

// Policy tunes the retry loop. Zero fields take the standard defaults.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// NewInvoker creates an invoker with the standard policy: 8 attempts, 1s base
// delay doubling per attempt, 12s per-wait cap, 60s attempt watchdog.
func NewInvoker(log zerolog.Logger) *Invoker {
	return NewInvokerWithPolicy(log, Policy{})
}

// NewInvokerWithPolicy creates an invoker with an explicit retry policy.
func NewInvokerWithPolicy(log zerolog.Logger, p Policy) *Invoker {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 8
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 12 * time.Second
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = 60 * time.Second
	}
	return &Invoker{
		maxAttempts:    p.MaxAttempts,
		baseDelay:      p.BaseDelay,
		maxDelay:       p.MaxDelay,
		attemptTimeout: p.AttemptTimeout,
		sleep:          sleepCtx,
		jitter:         rand.Float64,
		log:            log,
	}
}

// Do runs op until it succeeds, fails hard, or exhausts the retry budget.
// Exhaustion wraps ErrSaturated so callers can distinguish transient overload
// from other failures.
func (inv *Invoker) Do(ctx context.Context, op Operation) (Response, error) {
	var lastErr error

	for attempt := 0; attempt < inv.maxAttempts; attempt++ {
		resp, err := inv.attempt(ctx, op)
		if err == nil {
			return resp, nil
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) {
			return Response{}, err
		}
		lastErr = err

		if attempt == inv.maxAttempts-1 {
			break
		}

		wait := inv.backoff(attempt)
		if rle.RetryAfter > wait {
			wait = rle.RetryAfter
		}

		inv.log.Warn().
			Int("attempt", attempt+1).
			Int("max_attempts", inv.maxAttempts).
			Dur("wait", wait).
			Msg("Model rate limited, backing off")

		if err := inv.sleep(ctx, wait); err != nil {
			return Response{}, err
		}
	}

	return Response{}, fmt.Errorf("%w after %d attempts: %v", ErrSaturated, inv.maxAttempts, lastErr)
}

// attempt runs op under a watchdog. A timed-out attempt is a generic failure,
// never retried as a rate-limit case. The in-flight call is not cancelled;
// its eventual result is discarded (one abandoned call per timed-out request
// is accepted at this scale).
func (inv *Invoker) attempt(ctx context.Context, op Operation) (Response, error) {
	type outcome struct {
		resp Response
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		resp, err := op(ctx)
		done <- outcome{resp, err}
	}()

	timer := time.NewTimer(inv.attemptTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.resp, out.err
	case <-timer.C:
		return Response{}, fmt.Errorf("model call timed out after %s", inv.attemptTimeout)
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// backoff computes min(maxDelay, base*2^attempt + jitter·base).
func (inv *Invoker) backoff(attempt int) time.Duration {
	d := time.Duration(float64(inv.baseDelay) * math.Pow(2, float64(attempt)))
	d += time.Duration(inv.jitter() * float64(inv.baseDelay))
	if d > inv.maxDelay {
		d = inv.maxDelay
	}
	return d
}
