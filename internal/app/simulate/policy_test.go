package simulate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/retry"
)

func TestPolicyFor(t *testing.T) {
	tests := map[string]struct {
		policy    model.ScenarioRetryPolicy
		expPolicy retry.Policy
	}{
		"An empty policy should use the scheduler defaults": {
			policy:    model.ScenarioRetryPolicy{Backoff: model.BackoffKindExponential},
			expPolicy: retry.Policy{},
		},
		"A constant backoff should wait the base": {
			policy:    model.ScenarioRetryPolicy{MaxAttempts: 4, Backoff: model.BackoffKindConstant, Base: time.Second},
			expPolicy: retry.Policy{MaxAttempts: 4, Backoff: retry.ConstantBackoff{Wait: time.Second}},
		},
		"A constant backoff without base should wait the default base": {
			policy:    model.ScenarioRetryPolicy{Backoff: model.BackoffKindConstant},
			expPolicy: retry.Policy{Backoff: retry.ConstantBackoff{Wait: retry.DefaultBackoffBase}},
		},
		"A customized exponential backoff should be used": {
			policy:    model.ScenarioRetryPolicy{MaxAttempts: 2, Backoff: model.BackoffKindExponential, Base: time.Millisecond, Cap: time.Second, Jitter: -1},
			expPolicy: retry.Policy{MaxAttempts: 2, Backoff: retry.ExponentialBackoff{Base: time.Millisecond, Cap: time.Second, JitterFraction: -1}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expPolicy, policyFor(test.policy))
		})
	}
}
