package operation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/inflight/internal/log"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/outcome"
)

// RegistryConfig is the configuration for the operation registry.
type RegistryConfig struct {
	Logger   log.Logger
	Recorder outcome.Recorder
	// Now returns the current time, used for testing.
	Now func() time.Time
}

func (c *RegistryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "operation.Registry"})

	if c.Recorder == nil {
		c.Recorder = outcome.Noop
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return nil
}

// RegisterOptions are the optional attributes of a registered operation.
type RegisterOptions struct {
	// ID is an optional caller supplied ID. If missing, or it's already used by a
	// live operation, a new one will be generated.
	ID              string
	Category        model.Category
	ComplianceLevel model.ComplianceLevel
	Sensitive       bool
	Timeout         time.Duration
	EstimatedTime   string
	// Progress is the initial progress, nil means indeterminate.
	Progress *float64
}

// Registry is the in-memory table of in-flight operations. It's pure bookkeeping, none
// of its mutators fail: unknown IDs are ignored because updates racing with termination
// are expected.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	active    map[string]*model.Operation
	total     int
	completed int
	cancelled int
	// completedDuration is the sum of the durations of all completed operations.
	completedDuration time.Duration

	listeners      map[uint64]func(model.OverlaySnapshot)
	nextListenerID uint64

	logger   log.Logger
	recorder outcome.Recorder
	now      func() time.Time
}

// NewRegistry creates a new operation registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Registry{
		active:    map[string]*model.Operation{},
		listeners: map[uint64]func(model.OverlaySnapshot){},
		logger:    cfg.Logger,
		recorder:  cfg.Recorder,
		now:       cfg.Now,
	}, nil
}

// Register adds a new active operation and returns its ID.
func (r *Registry) Register(label string, opts RegisterOptions) string {
	level := opts.ComplianceLevel
	if !level.Valid() {
		r.logger.Warningf("Ignoring unknown compliance level %q for operation %q", level, label)
		level = model.ComplianceLevelNone
	}

	op := &model.Operation{
		Label:           label,
		Category:        opts.Category.Normalize(),
		ComplianceLevel: level,
		Sensitive:       opts.Sensitive,
		Timeout:         opts.Timeout,
		EstimatedTime:   opts.EstimatedTime,
		Status:          model.OperationStatusActive,
	}
	if opts.Progress != nil {
		p := model.ClampProgress(*opts.Progress)
		op.Progress = &p
	}

	r.mu.Lock()
	id := strings.TrimSpace(opts.ID)
	if _, ok := r.active[id]; ok {
		r.logger.Warningf("Operation ID %q already in use, generating a new one", id)
		id = ""
	}
	if id == "" {
		id = ulid.Make().String()
	}
	op.ID = id
	op.StartTime = r.now()
	r.active[id] = op
	r.total++
	snap, listeners := r.overlayAndListeners()
	r.mu.Unlock()

	r.logger.Debugf("Registered operation %s: %s", id, label)
	notify(listeners, snap)

	return id
}

// UpdateProgress sets the progress of an active operation, the value is clamped to [0,100].
// An empty label keeps the current one. Unknown IDs are ignored.
func (r *Registry) UpdateProgress(id string, progress float64, label string) {
	r.mu.Lock()
	op, ok := r.active[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Debugf("Ignoring progress update of unknown operation %s", id)
		return
	}

	p := model.ClampProgress(progress)
	op.Progress = &p
	if label != "" {
		op.Label = label
	}
	snap, listeners := r.overlayAndListeners()
	r.mu.Unlock()

	notify(listeners, snap)
}

// Annotate changes the compliance annotations of an active operation. Unknown IDs are ignored.
func (r *Registry) Annotate(id string, level model.ComplianceLevel, sensitive bool) {
	if !level.Valid() {
		r.logger.Warningf("Ignoring unknown compliance level %q for operation %s", level, id)
		return
	}

	r.mu.Lock()
	op, ok := r.active[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Debugf("Ignoring annotation of unknown operation %s", id)
		return
	}

	op.ComplianceLevel = level
	op.Sensitive = sensitive
	snap, listeners := r.overlayAndListeners()
	r.mu.Unlock()

	notify(listeners, snap)
}

// Finish marks an operation as completed. It's idempotent.
func (r *Registry) Finish(id string) {
	r.terminate([]string{id}, model.OperationStatusCompleted)
}

// Cancel marks an operation as cancelled. It's idempotent.
func (r *Registry) Cancel(id string) {
	r.terminate([]string{id}, model.OperationStatusCancelled)
}

// StopAll cancels all the active operations.
func (r *Registry) StopAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	if len(ids) == 0 {
		return
	}

	r.terminate(ids, model.OperationStatusCancelled)
	r.logger.Infof("Stopped %d active operations", len(ids))
}

func (r *Registry) terminate(ids []string, status model.OperationStatus) {
	r.mu.Lock()
	now := r.now()
	ended := make([]model.Operation, 0, len(ids))
	for _, id := range ids {
		op, ok := r.active[id]
		if !ok {
			continue
		}

		delete(r.active, id)
		end := now
		if end.Before(op.StartTime) {
			end = op.StartTime
		}
		op.EndTime = &end
		op.Status = status

		switch status {
		case model.OperationStatusCompleted:
			r.completed++
			r.completedDuration += end.Sub(op.StartTime)
		case model.OperationStatusCancelled:
			r.cancelled++
		}

		ended = append(ended, *op)
	}

	if len(ended) == 0 {
		r.mu.Unlock()
		r.logger.Debugf("Ignoring %s of unknown or already ended operations: %v", status, ids)
		return
	}

	snap, listeners := r.overlayAndListeners()
	r.mu.Unlock()

	for _, op := range ended {
		r.logger.Debugf("Operation %s %s after %s", op.ID, op.Status, op.Elapsed(now))
		if err := r.recorder.Record(context.Background(), model.OperationOutcome(op)); err != nil {
			r.logger.Errorf("Could not record operation %s outcome: %s", op.ID, err)
		}
	}

	notify(listeners, snap)
}

// Get returns a copy of an active operation.
func (r *Registry) Get(id string) (*model.Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.active[id]
	if !ok {
		return nil, false
	}

	opCopy := copyOperation(*op)
	return &opCopy, true
}

// OperationsByCategory returns a snapshot of the active operations of a category.
func (r *Registry) OperationsByCategory(category model.Category) []model.Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := []model.Operation{}
	for _, op := range r.sortedOperations() {
		if op.Category == category {
			ops = append(ops, op)
		}
	}

	return ops
}

// LateOperations returns a snapshot of the active operations that are taking longer
// than their advisory timeout.
func (r *Registry) LateOperations() []model.Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	ops := []model.Operation{}
	for _, op := range r.sortedOperations() {
		if model.IsRunningLate(op, now) {
			ops = append(ops, op)
		}
	}

	return ops
}

// Stats returns the aggregated registry statistics.
func (r *Registry) Stats() model.OperationStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := model.OperationStats{
		ActiveOperations:    len(r.active),
		CompletedOperations: r.completed,
	}
	if r.completed > 0 {
		stats.AverageDuration = r.completedDuration / time.Duration(r.completed)
	}

	return stats
}

// Overlay returns the global loading overlay read surface.
func (r *Registry) Overlay() model.OverlaySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.overlay()
}

// Subscribe registers a listener that will receive an overlay snapshot after every
// registry change. Listeners are called outside the registry lock, so they can use the
// registry. The returned function removes the listener.
func (r *Registry) Subscribe(fn func(model.OverlaySnapshot)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextListenerID
	r.nextListenerID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// overlay must be called with the lock held.
func (r *Registry) overlay() model.OverlaySnapshot {
	ops := r.sortedOperations()
	return model.OverlaySnapshot{
		IsLoading:           len(ops) > 0,
		Operations:          ops,
		GlobalProgress:      model.GlobalProgress(ops),
		TotalOperations:     r.total,
		CompletedOperations: r.completed,
		CancelledOperations: r.cancelled,
	}
}

// overlayAndListeners must be called with the lock held.
func (r *Registry) overlayAndListeners() (model.OverlaySnapshot, []func(model.OverlaySnapshot)) {
	if len(r.listeners) == 0 {
		return model.OverlaySnapshot{}, nil
	}

	ids := make([]uint64, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	listeners := make([]func(model.OverlaySnapshot), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, r.listeners[id])
	}

	return r.overlay(), listeners
}

// sortedOperations must be called with the lock held.
func (r *Registry) sortedOperations() []model.Operation {
	ops := make([]model.Operation, 0, len(r.active))
	for _, op := range r.active {
		ops = append(ops, copyOperation(*op))
	}

	slices.SortFunc(ops, func(a, b model.Operation) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return ops
}

func notify(listeners []func(model.OverlaySnapshot), snap model.OverlaySnapshot) {
	for _, l := range listeners {
		l(snap)
	}
}

func copyOperation(op model.Operation) model.Operation {
	if op.Progress != nil {
		p := *op.Progress
		op.Progress = &p
	}
	if op.EndTime != nil {
		t := *op.EndTime
		op.EndTime = &t
	}
	return op
}
