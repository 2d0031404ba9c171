package retry

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/slok/inflight/internal/model"
)

const (
	DefaultBackoffBase           = time.Second
	DefaultBackoffCap            = 30 * time.Second
	DefaultBackoffJitterFraction = 0.25
	DefaultMaxAttempts           = 3
)

// Backoff computes the delay before the next attempt. attempt is the number of
// attempts already made, it starts at 1.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// BackoffFunc is a helper to use functions as Backoff.
type BackoffFunc func(attempt int) time.Duration

func (f BackoffFunc) Delay(attempt int) time.Duration { return f(attempt) }

// ConstantBackoff waits the same delay between attempts.
type ConstantBackoff struct {
	Wait time.Duration
}

func (c ConstantBackoff) Delay(int) time.Duration {
	if c.Wait < 0 {
		return 0
	}
	return c.Wait
}

// ExponentialBackoff doubles the delay on each attempt up to a cap, and adds a random
// jitter on top so retries of operations failing at the same time get spread:
//
//	delay = min(Cap, Base * 2^(attempt-1)) * (1 + JitterFraction * rand())
//
// Zero values use the defaults, a negative JitterFraction disables jitter.
type ExponentialBackoff struct {
	Base           time.Duration
	Cap            time.Duration
	JitterFraction float64
	// Rand returns a number in [0,1), used for testing.
	Rand func() float64
}

// NewExponentialBackoff returns an exponential backoff with the default settings.
func NewExponentialBackoff() ExponentialBackoff {
	return ExponentialBackoff{
		Base:           DefaultBackoffBase,
		Cap:            DefaultBackoffCap,
		JitterFraction: DefaultBackoffJitterFraction,
	}
}

func (e ExponentialBackoff) Delay(attempt int) time.Duration {
	d := e.BaseDelay(attempt)

	jitter := e.JitterFraction
	if jitter == 0 {
		jitter = DefaultBackoffJitterFraction
	}
	if jitter < 0 {
		return d
	}

	rnd := rand.Float64
	if e.Rand != nil {
		rnd = e.Rand
	}

	jittered := float64(d) * (1 + jitter*rnd())
	if jittered >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(jittered)
}

// BaseDelay returns the capped delay without jitter.
func (e ExponentialBackoff) BaseDelay(attempt int) time.Duration {
	base := e.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	maxDelay := e.Cap
	if maxDelay <= 0 {
		maxDelay = DefaultBackoffCap
	}
	if attempt < 1 {
		attempt = 1
	}

	d := float64(base) * math.Pow(2, float64(attempt-1))
	if d > float64(maxDelay) || math.IsInf(d, 0) {
		return maxDelay
	}
	return time.Duration(d)
}

// Policy is how a unit of work is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	Backoff     Backoff
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     NewExponentialBackoff(),
	}
}

// Validate validates the policy.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d: %w", p.MaxAttempts, model.ErrNotValid)
	}
	if p.Backoff == nil {
		return fmt.Errorf("backoff is required: %w", model.ErrNotValid)
	}
	return nil
}
