// Package ratelimit tracks outbound calls over a sliding window and applies
// a soft throttle when the configured per-minute ceiling is exceeded.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultWindow is the sliding window over which calls are counted.
	DefaultWindow = time.Minute
	// DefaultDelay is the single pause taken when the ceiling is exceeded.
	DefaultDelay = time.Second
)

// Limiter counts call timestamps in a ring buffer. Timestamps are appended in
// non-decreasing order, so expired entries are always at the front.
type Limiter struct {
	mu      sync.Mutex
	buf     []time.Time
	head    int
	size    int
	ceiling int
	window  time.Duration
	delay   time.Duration
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow overrides the sliding window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

// WithDelay overrides the throttle pause.
func WithDelay(d time.Duration) Option {
	return func(l *Limiter) { l.delay = d }
}

// WithClock replaces the time source and the sleep function.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New creates a Limiter allowing callsPerMinute calls before throttling.
func New(callsPerMinute int, opts ...Option) *Limiter {
	l := &Limiter{
		buf:     make([]time.Time, 16),
		ceiling: callsPerMinute,
		window:  DefaultWindow,
		delay:   DefaultDelay,
		now:     time.Now,
		sleep:   Sleep,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Record appends the current time to the call history.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size == len(l.buf) {
		l.grow()
	}
	l.buf[(l.head+l.size)%len(l.buf)] = l.now()
	l.size++
}

// CurrentLoad drops calls older than the window and returns how many remain.
func (l *Limiter) CurrentLoad() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trim()
}

// Ceiling returns the configured per-minute ceiling.
func (l *Limiter) Ceiling() int {
	return l.ceiling
}

// Throttle sleeps once for the configured delay when the current load is
// above the ceiling. It reports whether it slept. This is best effort: a
// burst of concurrent callers may still exceed the ceiling.
func (l *Limiter) Throttle(ctx context.Context) (bool, error) {
	if l.CurrentLoad() <= l.ceiling {
		return false, nil
	}
	if err := l.sleep(ctx, l.delay); err != nil {
		return true, err
	}
	return true, nil
}

func (l *Limiter) trim() int {
	cutoff := l.now().Add(-l.window)
	for l.size > 0 && l.buf[l.head].Before(cutoff) {
		l.buf[l.head] = time.Time{}
		l.head = (l.head + 1) % len(l.buf)
		l.size--
	}
	return l.size
}

func (l *Limiter) grow() {
	next := make([]time.Time, len(l.buf)*2)
	for i := 0; i < l.size; i++ {
		next[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	l.buf = next
	l.head = 0
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
