package lib

import (
	"context"
)

// Track starts tracking a unit of work: an operation is registered in the overlay and
// the work is run with retries. The first attempt starts right away, the call doesn't
// wait for the work to finish.
//
// The operation is completed when the work succeeds and cancelled when it fails or
// is cancelled. Returns [ErrNotValid] when the request is not valid.
func (c *Client) Track(ctx context.Context, req TrackRequest) (*Tracked, error) {
	t, err := c.tracker.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

// Wait blocks until the tracked work reaches a terminal state or the context ends.
func (c *Client) Wait(ctx context.Context, t *Tracked) (RetryableOperation, error) {
	return c.tracker.Wait(ctx, t)
}

// TrackAndWait tracks a unit of work and waits for its terminal state.
func (c *Client) TrackAndWait(ctx context.Context, req TrackRequest) (RetryableOperation, error) {
	op, err := c.tracker.RunAndWait(ctx, req)
	if err != nil {
		return op, mapError(err)
	}
	return op, nil
}

// Cancel cancels tracked work, its waiters are released with a cancelled result.
func (c *Client) Cancel(t *Tracked) { c.tracker.Cancel(t) }

// CancelAll cancels all the tracked work.
func (c *Client) CancelAll() { c.tracker.CancelAll() }

// Overlay returns the current loading overlay.
func (c *Client) Overlay() OverlaySnapshot { return c.registry.Overlay() }

// Dashboard returns the current retry dashboard.
func (c *Client) Dashboard() DashboardSnapshot { return c.scheduler.Dashboard() }

// SubscribeOverlay calls fn with a new overlay on every change. The listener is called
// synchronously, outside the client locks, and must not block.
func (c *Client) SubscribeOverlay(fn func(OverlaySnapshot)) (unsubscribe func()) {
	return c.registry.Subscribe(fn)
}

// SubscribeDashboard calls fn with a new dashboard on every change. The listener is called
// synchronously, outside the client locks, and must not block.
func (c *Client) SubscribeDashboard(fn func(DashboardSnapshot)) (unsubscribe func()) {
	return c.scheduler.Subscribe(fn)
}
