// Package retry polls an operation with exponential backoff.  It is
// used to wait for a USB network interface to re-enumerate after the
// device has been switched into Ethernet mode.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// PermanentError wraps an error to signal that retrying will not help.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  Do returns the inner error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Backoff describes a retry schedule.  The zero value retries every
// 100ms, doubling up to 2s, without an attempt or time limit.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// MaxAttempts counts the first try.  Zero means unlimited.
	MaxAttempts int

	// Deadline bounds the total time spent waiting.  Zero means none.
	Deadline time.Duration

	// Jitter adds ±25% randomisation to each wait.
	Jitter bool
}

// DefaultBackoff returns the schedule used while waiting for devices.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       true,
	}
}

// Within returns a schedule that keeps trying until total has elapsed.
// A non-positive total yields a single attempt.
func Within(total time.Duration) *Backoff {
	b := DefaultBackoff()
	b.MaxAttempts = 0
	b.Deadline = total
	if total <= 0 {
		b.MaxAttempts = 1
	}
	return b
}

func (b *Backoff) settings() (delay, maxDelay time.Duration, mult float64) {
	delay, maxDelay, mult = b.InitialDelay, b.MaxDelay, b.Multiplier
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if mult <= 1 {
		mult = 2.0
	}
	return delay, maxDelay, mult
}

// Do runs fn until it returns nil, returns a [Permanent] error, or the
// schedule is exhausted.  attempt is 1-based.  The last error from fn
// is wrapped in the returned error.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay, maxDelay, mult := b.settings()

	var deadline time.Time
	if b.Deadline > 0 {
		deadline = time.Now().Add(b.Deadline)
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return fmt.Errorf("gave up after %v: %w", b.Deadline, err)
			}
			if wait > left {
				wait = left
			}
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * mult)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	return time.Duration(math.Max(float64(d)+delta, float64(time.Millisecond)))
}
