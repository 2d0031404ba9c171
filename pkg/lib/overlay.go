package lib

// Register adds an overlay-only operation and returns its ID. The operation has no work
// nor retries, the caller reports its progress and must finish or cancel it.
func (c *Client) Register(label string, opts RegisterOpts) string {
	return c.registry.Register(label, opts)
}

// UpdateProgress sets the progress (clamped to 0-100) of an active operation, an empty
// label keeps the current one. Unknown or finished operations are ignored.
func (c *Client) UpdateProgress(id string, progress float64, label string) {
	c.registry.UpdateProgress(id, progress, label)
}

// Annotate sets the compliance attributes of an active operation.
func (c *Client) Annotate(id string, level ComplianceLevel, sensitive bool) {
	c.registry.Annotate(id, level, sensitive)
}

// Finish completes an active operation.
func (c *Client) Finish(id string) { c.registry.Finish(id) }

// CancelOperation cancels an active operation. Only the overlay is affected, to cancel
// tracked work use [Client.Cancel].
func (c *Client) CancelOperation(id string) { c.registry.Cancel(id) }

// StopAllLoading cancels all the active operations of the overlay. The retries of the
// tracked work are not affected, use [Client.CancelAll] for that.
func (c *Client) StopAllLoading() { c.registry.StopAll() }

// Operation returns an active operation.
func (c *Client) Operation(id string) (Operation, bool) {
	op, ok := c.registry.Get(id)
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// OperationsByCategory returns the active operations of a category.
func (c *Client) OperationsByCategory(category Category) []Operation {
	return c.registry.OperationsByCategory(category)
}

// LateOperations returns the active operations that exceeded their timeout.
func (c *Client) LateOperations() []Operation { return c.registry.LateOperations() }

// OperationStats returns the aggregated operation statistics.
func (c *Client) OperationStats() OperationStats { return c.registry.Stats() }
