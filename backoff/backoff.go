// Package backoff computes the delay runner.Runner waits between one
// failed job attempt and the next, up to function.Descriptor.Retries.
// Every Strategy is stateless and safe for concurrent use across
// simultaneously retrying jobs.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry attempt n (1-indexed; 1 is
// the first retry after the initial failure).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// capped clamps d to max, treating a zero or negative max as unbounded.
func capped(d time.Duration, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

// Constant waits the same interval before every retry.
type Constant struct {
	Interval time.Duration
}

func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Linear grows the delay by Initial per attempt, capped at Max.
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

func NewLinear(initial, max time.Duration) *Linear {
	return &Linear{Initial: initial, Max: max}
}

func (l *Linear) Delay(attempt int) time.Duration {
	return capped(l.Initial*time.Duration(attempt), l.Max)
}

// Exponential doubles the delay every attempt, capped at Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

func NewExponential(initial, max time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: max}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	return capped(e.scale(attempt), e.Max)
}

func (e *Exponential) scale(attempt int) time.Duration {
	return time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
}

// ExponentialWithJitter picks a random delay in [0, Exponential's delay]
// for the same attempt, spreading out retries that would otherwise all
// wake at once.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

func NewExponentialWithJitter(initial, max time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: max}
}

func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := (&Exponential{Initial: e.Initial, Max: e.Max}).Delay(attempt)
	return time.Duration(rand.Float64() * float64(base))
}

// DefaultStrategy is ExponentialWithJitter seeded at 1s, capped at 1m —
// the Runner default when a Client is built without an explicit one.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(1*time.Second, 1*time.Minute)
}
