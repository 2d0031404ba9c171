package retry

import (
	"context"
	"errors"
	"fmt"
)

const (
	ErrorCodeGeneric  = "error"
	ErrorCodeTimeout  = "timeout"
	ErrorCodeCanceled = "canceled"
	ErrorCodePanic    = "panic"
	ErrorCodeInvalid  = "invalid"
)

// permanentError marks an error as not retryable.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps an error so the scheduler doesn't retry it, the retryable operation
// fails on the attempt that returned it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent returns true if the error has been marked as permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// coder is implemented by errors that carry a failure code (e.g: "rate_limited").
type coder interface {
	Code() string
}

// CodedError is an error with a failure code.
type CodedError struct {
	ErrCode string
	Err     error
}

func (c *CodedError) Error() string { return fmt.Sprintf("%s: %s", c.ErrCode, c.Err) }
func (c *CodedError) Unwrap() error { return c.Err }
func (c *CodedError) Code() string  { return c.ErrCode }

// WithCode returns an error with a failure code.
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	return &CodedError{ErrCode: code, Err: err}
}

// ErrorCode returns the failure code of an error.
func ErrorCode(err error) string {
	var c coder
	switch {
	case errors.As(err, &c) && c.Code() != "":
		return c.Code()
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeTimeout
	case errors.Is(err, context.Canceled):
		return ErrorCodeCanceled
	}
	return ErrorCodeGeneric
}

// PanicError is returned when the retried work panics.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string { return fmt.Sprintf("work panicked: %v", p.Value) }
func (p *PanicError) Code() string  { return ErrorCodePanic }
