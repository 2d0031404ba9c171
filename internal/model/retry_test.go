package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/inflight/internal/model"
)

func TestSuccessRate(t *testing.T) {
	tests := map[string]struct {
		successful int
		total      int
		expRate    float64
	}{
		"No retries should not divide by zero": {
			successful: 0,
			total:      0,
			expRate:    0,
		},
		"Half of the retries succeeding should be 50": {
			successful: 2,
			total:      4,
			expRate:    50,
		},
		"All retries succeeding should be 100": {
			successful: 3,
			total:      3,
			expRate:    100,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, test.expRate, model.SuccessRate(test.successful, test.total), 0.0001)
		})
	}
}

func TestRetryStatusTerminal(t *testing.T) {
	assert := assert.New(t)

	assert.False(model.RetryStatusExecuting.Terminal())
	assert.False(model.RetryStatusWaiting.Terminal())
	assert.True(model.RetryStatusSucceeded.Terminal())
	assert.True(model.RetryStatusFailed.Terminal())
	assert.True(model.RetryStatusCancelled.Terminal())
}
