package retry_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/retry"
)

func TestExponentialBackoffDelay(t *testing.T) {
	tests := map[string]struct {
		backoff  retry.ExponentialBackoff
		attempt  int
		expDelay time.Duration
	}{
		"The first attempt should wait the base": {
			backoff:  retry.ExponentialBackoff{Base: 100 * time.Millisecond, Cap: 10 * time.Second, JitterFraction: -1},
			attempt:  1,
			expDelay: 100 * time.Millisecond,
		},
		"The delay should double on every attempt": {
			backoff:  retry.ExponentialBackoff{Base: 100 * time.Millisecond, Cap: 10 * time.Second, JitterFraction: -1},
			attempt:  4,
			expDelay: 800 * time.Millisecond,
		},
		"The delay should be capped": {
			backoff:  retry.ExponentialBackoff{Base: time.Second, Cap: 5 * time.Second, JitterFraction: -1},
			attempt:  10,
			expDelay: 5 * time.Second,
		},
		"Huge attempts should not overflow": {
			backoff:  retry.ExponentialBackoff{Base: time.Second, Cap: 5 * time.Second, JitterFraction: -1},
			attempt:  5000,
			expDelay: 5 * time.Second,
		},
		"Jitter should be added on top of the capped delay": {
			backoff:  retry.ExponentialBackoff{Base: time.Second, Cap: 4 * time.Second, JitterFraction: 0.5, Rand: func() float64 { return 0.5 }},
			attempt:  2,
			expDelay: 2500 * time.Millisecond,
		},
		"Jitter on a huge cap should be clamped instead of overflowing": {
			backoff:  retry.ExponentialBackoff{Base: time.Second, Cap: time.Duration(math.MaxInt64), JitterFraction: 1, Rand: func() float64 { return 0.99 }},
			attempt:  200,
			expDelay: time.Duration(math.MaxInt64),
		},
		"Zero values should use the defaults": {
			backoff:  retry.ExponentialBackoff{Rand: func() float64 { return 0 }},
			attempt:  1,
			expDelay: retry.DefaultBackoffBase,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expDelay, test.backoff.Delay(test.attempt))
		})
	}
}

func TestExponentialBackoffGrowth(t *testing.T) {
	b := retry.ExponentialBackoff{Base: 50 * time.Millisecond, Cap: 3 * time.Second, JitterFraction: 0.25}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		base := b.BaseDelay(attempt)
		assert.GreaterOrEqual(t, base, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, base, 3*time.Second)

		// Jitter is bounded.
		d := b.Delay(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, time.Duration(float64(base)*1.25))

		prev = base
	}
}

func TestConstantBackoff(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(time.Second, retry.ConstantBackoff{Wait: time.Second}.Delay(1))
	assert.Equal(time.Second, retry.ConstantBackoff{Wait: time.Second}.Delay(7))
	assert.Equal(time.Duration(0), retry.ConstantBackoff{Wait: -time.Second}.Delay(1))
}

func TestPolicyValidate(t *testing.T) {
	tests := map[string]struct {
		policy retry.Policy
		expErr bool
	}{
		"The default policy should be valid": {
			policy: retry.DefaultPolicy(),
		},
		"Zero attempts should fail": {
			policy: retry.Policy{MaxAttempts: 0, Backoff: retry.ConstantBackoff{}},
			expErr: true,
		},
		"Missing backoff should fail": {
			policy: retry.Policy{MaxAttempts: 3},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.policy.Validate()
			if test.expErr {
				assert.True(t, errors.Is(err, model.ErrNotValid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
