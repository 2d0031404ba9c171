package retry

import (
	"context"
	"errors"
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

// Work is the unit of work that will be retried. The context is cancelled when the
// retryable operation is cancelled.
type Work func(ctx context.Context) error

// SchedulerConfig is the configuration for the retry scheduler.
type SchedulerConfig struct {
	Logger   log.Logger
	Recorder outcome.Recorder
	// DefaultPolicy is used by the schedules that don't set a policy.
	DefaultPolicy Policy
	// Now returns the current time, used for testing.
	Now func() time.Time
}

func (c *SchedulerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "retry.Scheduler"})

	if c.Recorder == nil {
		c.Recorder = outcome.Noop
	}

	def := DefaultPolicy()
	if c.DefaultPolicy.MaxAttempts == 0 {
		c.DefaultPolicy.MaxAttempts = def.MaxAttempts
	}
	if c.DefaultPolicy.Backoff == nil {
		c.DefaultPolicy.Backoff = def.Backoff
	}
	if err := c.DefaultPolicy.Validate(); err != nil {
		return fmt.Errorf("invalid default policy: %w", err)
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return nil
}

// ScheduleOptions are the options of a scheduled retryable operation.
type ScheduleOptions struct {
	Label    string
	Category model.Category
	// Policy is the retry policy. A zero MaxAttempts or a nil Backoff use the ones
	// from the scheduler default policy.
	Policy Policy
	// OnComplete is called once when the operation succeeds or fails, it's not called
	// on cancellation.
	OnComplete func(model.RetryableOperation)
	// OnCancel is called once when the operation is cancelled, after the outcome has been
	// recorded. It's called by the goroutine that cancelled the operation.
	OnCancel func(model.RetryableOperation)
}

type entry struct {
	op         model.RetryableOperation
	work       Work
	policy     Policy
	ctx        context.Context
	cancel     context.CancelFunc
	timer      *time.Timer
	onComplete func(model.RetryableOperation)
	onCancel   func(model.RetryableOperation)
}

// Scheduler re-invokes failing units of work after a backoff delay, up to a maximum
// number of attempts, and keeps the statistics of the outcomes.
//
// Errors of the retried work are captured, never returned to the scheduling caller,
// that observes the outcome using the read methods or the completion callback.
//
// A Scheduler is safe for concurrent use.
type Scheduler struct {
	mu         sync.RWMutex
	pending    map[string]*entry
	total      int
	successful int
	failed     int
	cancelled  int
	// terminalAttempts is the sum of the attempts of succeeded and failed operations.
	terminalAttempts int

	listeners      map[uint64]func(model.DashboardSnapshot)
	nextListenerID uint64

	defaultPolicy Policy
	logger        log.Logger
	recorder      outcome.Recorder
	now           func() time.Time
}

// NewScheduler returns a new retry scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Scheduler{
		pending:       map[string]*entry{},
		listeners:     map[uint64]func(model.DashboardSnapshot){},
		defaultPolicy: cfg.DefaultPolicy,
		logger:        cfg.Logger,
		recorder:      cfg.Recorder,
		now:           cfg.Now,
	}, nil
}

// Schedule starts tracking a unit of work and performs its first attempt right away
// (without waiting for a backoff). It returns the generated ID of the retryable operation.
//
// The work context keeps the values of ctx but not its cancellation, the work is only
// cancelled using Cancel or CancelAll.
func (s *Scheduler) Schedule(ctx context.Context, work Work, opts ScheduleOptions) string {
	pol := opts.Policy
	if pol.MaxAttempts == 0 {
		pol.MaxAttempts = s.defaultPolicy.MaxAttempts
	}
	if pol.Backoff == nil {
		pol.Backoff = s.defaultPolicy.Backoff
	}

	now := s.now()
	e := &entry{
		op: model.RetryableOperation{
			ID:          ulid.Make().String(),
			Label:       opts.Label,
			Category:    opts.Category.Normalize(),
			MaxAttempts: max(pol.MaxAttempts, 0),
			CreatedAt:   now,
		},
		work:       work,
		policy:     pol,
		onComplete: opts.OnComplete,
		onCancel:   opts.OnCancel,
	}

	err := pol.Validate()
	if err == nil && work == nil {
		err = fmt.Errorf("work is required: %w", model.ErrNotValid)
	}
	if err != nil {
		s.rejectInvalid(e, err)
		return e.op.ID
	}

	e.ctx, e.cancel = context.WithCancel(context.WithoutCancel(ctx))
	e.op.Status = model.RetryStatusExecuting
	e.op.Attempts = 1

	s.mu.Lock()
	s.pending[e.op.ID] = e
	s.total++
	snap, listeners := s.dashboardAndListeners()
	s.mu.Unlock()

	s.logger.Debugf("Scheduled retryable operation %s: %s", e.op.ID, e.op.Label)
	notify(listeners, snap)

	go s.runAttempt(e)

	return e.op.ID
}

// rejectInvalid terminates an operation that can't be executed as failed.
func (s *Scheduler) rejectInvalid(e *entry, err error) {
	now := s.now()
	e.op.Status = model.RetryStatusFailed
	e.op.EndTime = &now
	e.op.LastError = &model.RetryError{Code: ErrorCodeInvalid, Message: err.Error()}

	s.mu.Lock()
	s.total++
	s.failed++
	s.terminalAttempts += e.op.Attempts
	snap, listeners := s.dashboardAndListeners()
	s.mu.Unlock()

	s.logger.Warningf("Retryable operation %s (%s) rejected: %s", e.op.ID, e.op.Label, err)
	s.finalize([]model.RetryableOperation{e.op}, listeners, snap)
	if e.onComplete != nil {
		e.onComplete(e.op)
	}
}

func (s *Scheduler) runAttempt(e *entry) {
	err := callWork(e.ctx, e.work)
	s.handleResult(e, err)
}

func callWork(ctx context.Context, w Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	return w(ctx)
}

func (s *Scheduler) handleResult(e *entry, err error) {
	s.mu.Lock()

	// Cancelled while the attempt was in flight, the result is discarded.
	if cur, ok := s.pending[e.op.ID]; !ok || cur != e || e.op.Status != model.RetryStatusExecuting {
		s.mu.Unlock()
		s.logger.Debugf("Discarding late attempt result of retryable operation %s", e.op.ID)
		return
	}

	now := s.now()

	if err == nil {
		e.op.Status = model.RetryStatusSucceeded
		e.op.EndTime = &now
		e.cancel()
		delete(s.pending, e.op.ID)
		s.successful++
		s.terminalAttempts += e.op.Attempts
		op := e.op
		snap, listeners := s.dashboardAndListeners()
		s.mu.Unlock()

		s.logger.Debugf("Retryable operation %s succeeded after %d attempts", op.ID, op.Attempts)
		s.finalize([]model.RetryableOperation{op}, listeners, snap)
		if e.onComplete != nil {
			e.onComplete(op)
		}
		return
	}

	e.op.LastError = &model.RetryError{Code: ErrorCode(err), Message: err.Error()}

	if e.op.Attempts < e.op.MaxAttempts && !IsPermanent(err) {
		delay := max(e.policy.Backoff.Delay(e.op.Attempts), 0)
		next := now.Add(delay)
		e.op.Status = model.RetryStatusWaiting
		e.op.NextRetryAt = &next
		e.timer = time.AfterFunc(delay, func() { s.fire(e) })
		attempts := e.op.Attempts
		snap, listeners := s.dashboardAndListeners()
		s.mu.Unlock()

		s.logger.Debugf("Attempt %d of retryable operation %s failed, retrying in %s: %s", attempts, e.op.ID, delay, err)
		notify(listeners, snap)
		return
	}

	e.op.Status = model.RetryStatusFailed
	e.op.EndTime = &now
	e.cancel()
	delete(s.pending, e.op.ID)
	s.failed++
	s.terminalAttempts += e.op.Attempts
	op := e.op
	snap, listeners := s.dashboardAndListeners()
	s.mu.Unlock()

	s.logger.Warningf("Retryable operation %s (%s) failed after %d attempts: %s", op.ID, op.Label, op.Attempts, err)
	s.finalize([]model.RetryableOperation{op}, listeners, snap)
	if e.onComplete != nil {
		e.onComplete(op)
	}
}

// fire starts the next attempt once the backoff has elapsed.
func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	if cur, ok := s.pending[e.op.ID]; !ok || cur != e || e.op.Status != model.RetryStatusWaiting {
		s.mu.Unlock()
		return
	}

	e.timer = nil
	e.op.NextRetryAt = nil
	e.op.Status = model.RetryStatusExecuting
	e.op.Attempts++
	snap, listeners := s.dashboardAndListeners()
	s.mu.Unlock()

	notify(listeners, snap)
	s.runAttempt(e)
}

// Cancel cancels a pending retryable operation: the scheduled attempt is cleared and the
// context of an in-flight attempt is cancelled. Its result will be ignored. Unknown or
// already terminated IDs are ignored.
func (s *Scheduler) Cancel(id string) {
	s.cancel([]string{id})
}

// CancelAll cancels all the pending retryable operations.
func (s *Scheduler) CancelAll() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	if len(ids) == 0 {
		return
	}

	s.cancel(ids)
	s.logger.Infof("Cancelled %d pending retries", len(ids))
}

// Close cancels all the pending retryable operations.
func (s *Scheduler) Close() error {
	s.CancelAll()
	return nil
}

func (s *Scheduler) cancel(ids []string) {
	s.mu.Lock()
	now := s.now()
	cancelled := make([]model.RetryableOperation, 0, len(ids))
	var hooks []func()
	for _, id := range ids {
		e, ok := s.pending[id]
		if !ok {
			continue
		}

		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.cancel()
		e.op.Status = model.RetryStatusCancelled
		e.op.NextRetryAt = nil
		e.op.EndTime = &now
		delete(s.pending, id)
		s.cancelled++
		cancelled = append(cancelled, e.op)
		if e.onCancel != nil {
			op, onCancel := e.op, e.onCancel
			hooks = append(hooks, func() { onCancel(op) })
		}
	}

	if len(cancelled) == 0 {
		s.mu.Unlock()
		s.logger.Debugf("Ignoring cancellation of unknown or terminated retries: %v", ids)
		return
	}

	snap, listeners := s.dashboardAndListeners()
	s.mu.Unlock()

	s.finalize(cancelled, listeners, snap)
	for _, hook := range hooks {
		hook()
	}
}

// finalize records the terminated operations and notifies the listeners.
func (s *Scheduler) finalize(ops []model.RetryableOperation, listeners []func(model.DashboardSnapshot), snap model.DashboardSnapshot) {
	var errs []error
	for _, op := range ops {
		if err := s.recorder.Record(context.Background(), model.RetryOutcome(op)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", op.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Errorf("Could not record retry outcomes: %s", err)
	}

	notify(listeners, snap)
}

// Get returns a copy of a pending retryable operation.
func (s *Scheduler) Get(id string) (*model.RetryableOperation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.pending[id]
	if !ok {
		return nil, false
	}

	op := copyRetryableOperation(e.op)
	return &op, true
}

// Pending returns a snapshot of the non terminal retryable operations.
func (s *Scheduler) Pending() []model.RetryableOperation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedPending()
}

// TimeUntilRetry returns the time left for the next attempt. It's 0 when the operation
// is executing, the backoff already elapsed, or the ID is unknown.
func (s *Scheduler) TimeUntilRetry(id string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.pending[id]
	if !ok || e.op.Status != model.RetryStatusWaiting || e.op.NextRetryAt == nil {
		return 0
	}

	return max(e.op.NextRetryAt.Sub(s.now()), 0)
}

// Counters returns the raw retry tallies.
func (s *Scheduler) Counters() model.RetryCounters {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counters()
}

// Stats returns the derived retry statistics.
func (s *Scheduler) Stats() model.RetryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stats()
}

// Dashboard returns the retry dashboard read surface.
func (s *Scheduler) Dashboard() model.DashboardSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dashboard()
}

// Subscribe registers a listener that will receive a dashboard snapshot after every
// scheduler change. Listeners are called outside the scheduler lock. The returned
// function removes the listener.
func (s *Scheduler) Subscribe(fn func(model.DashboardSnapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// counters must be called with the lock held.
func (s *Scheduler) counters() model.RetryCounters {
	return model.RetryCounters{
		ActiveRetries:     len(s.pending),
		TotalRetries:      s.total,
		SuccessfulRetries: s.successful,
		FailedRetries:     s.failed,
		CancelledRetries:  s.cancelled,
	}
}

// stats must be called with the lock held.
func (s *Scheduler) stats() model.RetryStats {
	stats := model.RetryStats{
		SuccessRate:   model.SuccessRate(s.successful, s.total),
		CategoryStats: map[model.Category]int{},
	}

	if terminated := s.successful + s.failed; terminated > 0 {
		stats.AverageAttempts = float64(s.terminalAttempts) / float64(terminated)
	}

	for _, e := range s.pending {
		stats.CategoryStats[e.op.Category]++
	}

	return stats
}

// dashboard must be called with the lock held.
func (s *Scheduler) dashboard() model.DashboardSnapshot {
	return model.DashboardSnapshot{
		RetryCounters: s.counters(),
		Pending:       s.sortedPending(),
		Stats:         s.stats(),
	}
}

// dashboardAndListeners must be called with the lock held.
func (s *Scheduler) dashboardAndListeners() (model.DashboardSnapshot, []func(model.DashboardSnapshot)) {
	if len(s.listeners) == 0 {
		return model.DashboardSnapshot{}, nil
	}

	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	listeners := make([]func(model.DashboardSnapshot), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}

	return s.dashboard(), listeners
}

// sortedPending must be called with the lock held.
func (s *Scheduler) sortedPending() []model.RetryableOperation {
	ops := make([]model.RetryableOperation, 0, len(s.pending))
	for _, e := range s.pending {
		ops = append(ops, copyRetryableOperation(e.op))
	}

	slices.SortFunc(ops, func(a, b model.RetryableOperation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return ops
}

func notify(listeners []func(model.DashboardSnapshot), snap model.DashboardSnapshot) {
	for _, l := range listeners {
		l(snap)
	}
}

func copyRetryableOperation(op model.RetryableOperation) model.RetryableOperation {
	if op.LastError != nil {
		e := *op.LastError
		op.LastError = &e
	}
	if op.NextRetryAt != nil {
		t := *op.NextRetryAt
		op.NextRetryAt = &t
	}
	if op.EndTime != nil {
		t := *op.EndTime
		op.EndTime = &t
	}
	return op
}
