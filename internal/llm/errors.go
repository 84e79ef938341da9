package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrSaturated indicates the model kept rate-limiting until every retry was
// spent. Callers surface it as "overloaded, retry later", distinct from hard
// failures.
var ErrSaturated = errors.New("model service temporarily saturated")

// RateLimitError marks a rate-limited model call, optionally carrying the
// server-advertised retry delay.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration // zero when the server gave no hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("model rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("model rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
