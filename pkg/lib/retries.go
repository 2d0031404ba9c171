package lib

import "time"

// Retry returns a pending retryable operation.
func (c *Client) Retry(id string) (RetryableOperation, bool) {
	op, ok := c.scheduler.Get(id)
	if !ok {
		return RetryableOperation{}, false
	}
	return *op, true
}

// PendingRetries returns the non terminal retryable operations, oldest first.
func (c *Client) PendingRetries() []RetryableOperation { return c.scheduler.Pending() }

// TimeUntilRetry returns the wait until the next attempt of a retryable operation, zero
// when it's not waiting or it's unknown.
func (c *Client) TimeUntilRetry(id string) time.Duration { return c.scheduler.TimeUntilRetry(id) }

// RetryCounters returns the raw retry tallies.
func (c *Client) RetryCounters() RetryCounters { return c.scheduler.Counters() }

// RetryStats returns the derived retry statistics.
func (c *Client) RetryStats() RetryStats { return c.scheduler.Stats() }

// CancelRetry cancels a retryable operation by ID (see [Tracked].RetryID). The operation
// of the tracked work is cancelled too and its waiters are released.
func (c *Client) CancelRetry(id string) { c.scheduler.Cancel(id) }
