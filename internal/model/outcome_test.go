package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/inflight/internal/model"
)

func TestOutcomeValidate(t *testing.T) {
	start := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)

	tests := map[string]struct {
		outcome model.Outcome
		expErr  bool
	}{
		"A completed operation outcome should be valid": {
			outcome: model.Outcome{ID: "op-1", Kind: model.OutcomeKindOperation, Category: model.CategoryGeneral, Status: "completed", StartedAt: start, EndedAt: end},
		},
		"A failed retry outcome should be valid": {
			outcome: model.Outcome{ID: "r-1", Kind: model.OutcomeKindRetry, Category: model.CategoryNetwork, Status: "failed", Attempts: 3, StartedAt: start, EndedAt: end},
		},
		"Missing ID should fail": {
			outcome: model.Outcome{Kind: model.OutcomeKindRetry, Category: model.CategoryNetwork, Status: "failed", StartedAt: start, EndedAt: end},
			expErr:  true,
		},
		"A non terminal retry status should fail": {
			outcome: model.Outcome{ID: "r-1", Kind: model.OutcomeKindRetry, Category: model.CategoryNetwork, Status: "waiting", StartedAt: start, EndedAt: end},
			expErr:  true,
		},
		"An active operation status should fail": {
			outcome: model.Outcome{ID: "op-1", Kind: model.OutcomeKindOperation, Category: model.CategoryGeneral, Status: "active", StartedAt: start, EndedAt: end},
			expErr:  true,
		},
		"An unknown kind should fail": {
			outcome: model.Outcome{ID: "x", Kind: "job", Category: model.CategoryGeneral, Status: "completed", StartedAt: start, EndedAt: end},
			expErr:  true,
		},
		"Missing times should fail": {
			outcome: model.Outcome{ID: "op-1", Kind: model.OutcomeKindOperation, Category: model.CategoryGeneral, Status: "completed"},
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.outcome.Validate()
			if test.expErr {
				assert.True(t, errors.Is(err, model.ErrNotValid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryOutcome(t *testing.T) {
	assert := assert.New(t)

	start := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Second)
	got := model.RetryOutcome(model.RetryableOperation{
		ID:        "r-1",
		Label:     "Publish to Facebook",
		Category:  model.CategoryNetwork,
		Attempts:  3,
		Status:    model.RetryStatusFailed,
		LastError: &model.RetryError{Code: "rate_limited", Message: "too many requests"},
		CreatedAt: start,
		EndTime:   &end,
	})

	assert.Equal(model.OutcomeKindRetry, got.Kind)
	assert.Equal("failed", got.Status)
	assert.Equal(3, got.Attempts)
	assert.Equal("rate_limited", got.ErrorCode)
	assert.Equal(4*time.Second, got.Duration())
}
