package simctl

import (
	"math"
	"time"
)

// RetryDelay calculates the wait between failed start attempts. With the
// default multiplier of 1.0 the delay is fixed; a larger multiplier gives
// exponential growth capped at Max.
type RetryDelay struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	attempts int
}

// NewRetryDelay returns a delay policy with a fixed interval.
func NewRetryDelay(interval time.Duration) *RetryDelay {
	return &RetryDelay{
		Initial:    interval,
		Max:        interval,
		Multiplier: 1.0,
	}
}

// Next returns the next delay and advances the attempt counter.
func (d *RetryDelay) Next() time.Duration {
	delay := float64(d.Initial) * math.Pow(d.Multiplier, float64(d.attempts))
	if d.Max > 0 && delay > float64(d.Max) {
		delay = float64(d.Max)
	}
	d.attempts++
	return time.Duration(delay)
}

// Reset resets the attempt counter to zero.
func (d *RetryDelay) Reset() {
	d.attempts = 0
}

// Attempts returns how many delays have been handed out.
func (d *RetryDelay) Attempts() int {
	return d.attempts
}
