package outcome

import (
	"context"
	"errors"

	"github.com/slok/inflight/internal/model"
)

// Recorder receives the outcome of every unit of work that reaches a terminal state.
type Recorder interface {
	Record(ctx context.Context, o model.Outcome) error
}

// RecorderFunc is a helper to use functions as recorders.
type RecorderFunc func(ctx context.Context, o model.Outcome) error

func (f RecorderFunc) Record(ctx context.Context, o model.Outcome) error { return f(ctx, o) }

// Noop recorder discards all the outcomes.
var Noop = RecorderFunc(func(context.Context, model.Outcome) error { return nil })

// MultiRecorder fans out outcomes to multiple recorders. All recorders are called even if
// some of them fail.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, o model.Outcome) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
