// Package backoff centralizes retry delay computation. Strategies are pure
// functions of the attempt number and the configured bounds, so they can be
// shared between the retry handler and the connector without duplicating the
// growth/cap/jitter logic.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before a retry attempt. Attempt is zero-based:
// attempt 0 yields the initial delay.
type Strategy interface {
	Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration
}

// Exponential grows the delay by multiplier per attempt, optionally adding
// uniform jitter, and never exceeds max.
type Exponential struct{}

func (Exponential) Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the exponent so the float math cannot overflow into negatives.
	if attempt > 30 {
		attempt = 30
	}

	d := time.Duration(float64(initial) * Pow(multiplier, attempt))
	if d < 0 || d > max {
		d = max
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		extra := time.Duration(float64(d) * jitter * rand.Float64())
		if d+extra > max {
			d = max
		} else {
			d += extra
		}
	}
	return d
}

// Decorrelated implements decorrelated jitter following the AWS architecture
// blog: each delay is drawn from [initial, min(max, initial*3^attempt)].
// It spreads contending clients more evenly than plain exponential jitter.
type Decorrelated struct{}

func (Decorrelated) Calculate(attempt int, initial, max time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initial)
	upper := base * Pow(3.0, attempt)
	if upper > float64(max) || upper < 0 {
		upper = float64(max)
	}
	if upper < base {
		upper = base
	}

	d := time.Duration(base + rand.Float64()*(upper-base))
	if d < 0 || d > max {
		d = max
	}
	return d
}

// Pow computes base^exponent by repeated multiplication. Exponents seen here
// are small, so this avoids pulling in math.Pow for integer powers.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}
