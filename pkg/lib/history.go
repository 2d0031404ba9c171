package lib

import (
	"context"
	"fmt"

	"github.com/slok/inflight/internal/app/history"
)

// HistoryOpts filters the outcome history. Empty fields don't filter.
type HistoryOpts struct {
	Kind     OutcomeKind
	Category Category
	// Status is the terminal status (e.g: completed, failed).
	Status string
	// Limit is the maximum number of outcomes, 0 returns all of them.
	Limit int
}

// History returns the recorded outcomes, newest first. Pass nil opts to list everything.
//
// Returns [ErrNotValid] when the history is disabled or the filters are not valid.
func (c *Client) History(ctx context.Context, opts *HistoryOpts) ([]Outcome, error) {
	if c.history == nil {
		return nil, fmt.Errorf("outcome history is disabled: %w", ErrNotValid)
	}

	req := history.Request{}
	if opts != nil {
		req = history.Request{
			Kind:     string(opts.Kind),
			Category: string(opts.Category),
			Status:   opts.Status,
			Limit:    opts.Limit,
		}
	}

	outcomes, err := c.history.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return outcomes, nil
}
