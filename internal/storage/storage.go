package storage

import (
	"context"

	"github.com/slok/inflight/internal/model"
)

// ListOptions are the filters used to list outcomes. Empty filters match everything.
type ListOptions struct {
	Kind     model.OutcomeKind
	Category model.Category
	Status   string
	// Limit is the maximum number of outcomes returned, 0 means no limit.
	Limit int
}

// Match returns true if the outcome matches the filters (the limit is not checked).
func (l ListOptions) Match(o model.Outcome) bool {
	if l.Kind != "" && l.Kind != o.Kind {
		return false
	}
	if l.Category != "" && l.Category != o.Category {
		return false
	}
	if l.Status != "" && l.Status != o.Status {
		return false
	}
	return true
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name Repository

// Repository is the interface for the outcome history persistence. It satisfies
// outcome.Recorder so it can be plugged directly in the registry and the scheduler.
type Repository interface {
	Record(ctx context.Context, o model.Outcome) error
	// ListOutcomes returns the outcomes, newest first.
	ListOutcomes(ctx context.Context, opts ListOptions) ([]model.Outcome, error)
}
