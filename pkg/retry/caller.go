// Package retry wraps a transport call in a bounded retry loop that only
// tolerates provider rate-limit failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jxzhangjhu/guidance/pkg/models"
	"github.com/jxzhangjhu/guidance/pkg/ratelimit"
	"github.com/jxzhangjhu/guidance/pkg/transport"
)

// DefaultBackoff is the fixed pause between rate-limited attempts.
const DefaultBackoff = 3 * time.Second

// ErrTooManyRetries matches any *TooManyRetriesError via errors.Is.
var ErrTooManyRetries = errors.New("too many retries")

// TooManyRetriesError reports that the provider kept rate limiting.
type TooManyRetriesError struct {
	MaxRetries int
	Last       error
}

func (e *TooManyRetriesError) Error() string {
	return fmt.Sprintf("too many (more than %d) rate limit errors in a row: %v", e.MaxRetries, e.Last)
}

func (e *TooManyRetriesError) Unwrap() error { return e.Last }

// Is implements errors.Is support for TooManyRetriesError.
func (e *TooManyRetriesError) Is(target error) bool {
	return target == ErrTooManyRetries
}

// State is a step of the retry state machine.
type State int

const (
	StateIdle State = iota
	StateCalling
	StateBackoff
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalling:
		return "calling"
	case StateBackoff:
		return "backoff"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Caller retries rate-limited transport calls up to MaxRetries times.
// A Caller holds no per-call state and may be shared between goroutines.
type Caller struct {
	MaxRetries int
	Backoff    time.Duration
	// OnAttempt runs before every transport invocation, retries included.
	OnAttempt func()
	Sleep     func(context.Context, time.Duration) error
	Logger    *slog.Logger
}

// Result describes how a call went.
type Result struct {
	Response *models.Response
	Attempts int
	State    State
}

// Call invokes t until it succeeds, fails with a non rate-limit error, or
// has been rate limited more than MaxRetries times.
func (c *Caller) Call(ctx context.Context, t transport.Transport, req *models.CompletionRequest) (Result, error) {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = ratelimit.Sleep
	}

	var (
		state    = StateIdle
		failures int
		attempts int
		lastErr  error
	)
	for {
		switch state {
		case StateIdle, StateCalling:
			if c.OnAttempt != nil {
				c.OnAttempt()
			}
			attempts++
			resp, err := t.Complete(ctx, req)
			if err == nil {
				return Result{Response: resp, Attempts: attempts, State: StateSuccess}, nil
			}
			if !transport.IsRateLimit(err) {
				return Result{Attempts: attempts, State: StateFailed}, err
			}
			lastErr = err
			failures++
			if failures > c.MaxRetries {
				state = StateFailed
				continue
			}
			state = StateBackoff

		case StateBackoff:
			c.logger().Warn("rate limited, backing off", "failures", failures, "backoff", backoff)
			if err := sleep(ctx, backoff); err != nil {
				return Result{Attempts: attempts, State: StateFailed}, err
			}
			state = StateCalling

		case StateFailed:
			return Result{Attempts: attempts, State: StateFailed}, &TooManyRetriesError{MaxRetries: c.MaxRetries, Last: lastErr}
		}
	}
}

func (c *Caller) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}
