package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/inflight/internal/retry"
)

func TestErrorCode(t *testing.T) {
	tests := map[string]struct {
		err     error
		expCode string
	}{
		"A regular error should have the generic code": {
			err:     errors.New("whatever"),
			expCode: retry.ErrorCodeGeneric,
		},
		"A coded error should use its code": {
			err:     retry.WithCode("rate_limited", errors.New("too many requests")),
			expCode: "rate_limited",
		},
		"A wrapped coded error should use its code": {
			err:     fmt.Errorf("publishing: %w", retry.WithCode("unauthorized", errors.New("token expired"))),
			expCode: "unauthorized",
		},
		"A deadline error should be a timeout": {
			err:     fmt.Errorf("calling API: %w", context.DeadlineExceeded),
			expCode: retry.ErrorCodeTimeout,
		},
		"A canceled context error should be canceled": {
			err:     context.Canceled,
			expCode: retry.ErrorCodeCanceled,
		},
		"A panic error should be a panic": {
			err:     &retry.PanicError{Value: "boom"},
			expCode: retry.ErrorCodePanic,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expCode, retry.ErrorCode(test.err))
		})
	}
}

func TestPermanent(t *testing.T) {
	assert := assert.New(t)

	base := errors.New("invalid content")
	err := fmt.Errorf("generating: %w", retry.Permanent(base))

	assert.True(retry.IsPermanent(err))
	assert.True(errors.Is(err, base))
	assert.False(retry.IsPermanent(base))
	assert.Nil(retry.Permanent(nil))
}
