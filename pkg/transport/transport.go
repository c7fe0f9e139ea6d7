// Package transport performs single completion calls against a provider,
// either through the go-openai client or a generic JSON-over-HTTP endpoint.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

// Transport performs exactly one provider invocation per call.
// Implementations signal provider throttling with *RateLimitError.
type Transport interface {
	Complete(ctx context.Context, req *models.CompletionRequest) (*models.Response, error)
}

// ErrRateLimited matches any *RateLimitError via errors.Is.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitError is a transient provider rate-limit failure.
type RateLimitError struct {
	Message string
	Err     error
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimited.Error()
	}
	return "rate limit exceeded: " + e.Message
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Is implements errors.Is support for RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimited {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// IsRateLimit reports whether err is a provider rate-limit failure.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Error is a fatal transport failure: a non-200 status or any failure that
// is not a rate limit. It is never retried.
type Error struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("response is not 200: status %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return "transport: " + e.Err.Error()
	default:
		return "transport error"
	}
}

func (e *Error) Unwrap() error { return e.Err }
