package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

// BreakerSettings controls the circuit breaker around a transport.
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
	Logger           *slog.Logger
}

// Breaker stops calling a failing provider for a while. Rate-limit errors
// count as successes so they still reach the retry loop unchanged.
type Breaker struct {
	next Transport
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Transport, s BreakerSettings) *Breaker {
	if s.ReadyToTripRatio <= 0 {
		s.ReadyToTripRatio = 0.6
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= s.ReadyToTripRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsRateLimit(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// Complete implements Transport. An open breaker yields a fatal *Error.
func (b *Breaker) Complete(ctx context.Context, req *models.CompletionRequest) (*models.Response, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Err: err}
		}
		return nil, err
	}
	return out.(*models.Response), nil
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
