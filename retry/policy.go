package retry

import (
	"math"
	"time"
)

const (
	// Malformed policies are clamped into these bounds instead of erroring.
	minFactor = 1.0
	maxFactor = 10.0
	maxJitter = 1.0
)

// Policy describes the backoff schedule for one call site. The zero value
// is normalized to a single attempt with no backoff. Policies are immutable
// and safe to share.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int
	// BackoffBase is the sleep before the second attempt.
	BackoffBase time.Duration
	// BackoffFactor multiplies the sleep after each further attempt.
	// Clamped into [1, 10].
	BackoffFactor float64
	// Jitter widens each sleep by a uniform random multiplier in
	// [1, 1+Jitter]. Clamped into [0, 1].
	Jitter float64
}

// normalized returns a copy with every field clamped into its legal range.
func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BackoffBase < 0 {
		p.BackoffBase = 0
	}
	if p.BackoffFactor < minFactor {
		p.BackoffFactor = minFactor
	} else if p.BackoffFactor > maxFactor {
		p.BackoffFactor = maxFactor
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	} else if p.Jitter > maxJitter {
		p.Jitter = maxJitter
	}
	return p
}

// delay returns the sleep before attempt i+1, given the completed attempt i
// (1-based) and a random sample in [0, 1):
//
//	base * factor^(i-1) * uniform(1, 1+jitter)
func (p Policy) delay(attempt int, sample float64) time.Duration {
	exp := math.Pow(p.BackoffFactor, float64(attempt-1))
	mult := 1 + p.Jitter*sample
	return time.Duration(float64(p.BackoffBase) * exp * mult)
}
