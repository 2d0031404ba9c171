package track

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/inflight/internal/log"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/operation"
	"github.com/slok/inflight/internal/retry"
)

// OperationRegistry is the operation bookkeeping used by the service.
type OperationRegistry interface {
	Register(label string, opts operation.RegisterOptions) string
	UpdateProgress(id string, progress float64, label string)
	Finish(id string)
	Cancel(id string)
	StopAll()
	Get(id string) (*model.Operation, bool)
}

// RetryScheduler is the retry orchestration used by the service.
type RetryScheduler interface {
	Schedule(ctx context.Context, work retry.Work, opts retry.ScheduleOptions) string
	Cancel(id string)
	CancelAll()
}

var (
	_ OperationRegistry = &operation.Registry{}
	_ RetryScheduler    = &retry.Scheduler{}
)

// ServiceConfig is the configuration for the track service.
type ServiceConfig struct {
	Registry  OperationRegistry
	Scheduler RetryScheduler
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}

	if c.Scheduler == nil {
		return fmt.Errorf("scheduler is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Track"})

	return nil
}

// Service tracks units of work with both the operation registry (progress) and the retry
// scheduler (resilience). The operation is finished when the work succeeds and cancelled
// when the retries are exhausted or cancelled.
type Service struct {
	registry  OperationRegistry
	scheduler RetryScheduler
	logger    log.Logger
}

// NewService creates a new track service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		registry:  cfg.Registry,
		scheduler: cfg.Scheduler,
		logger:    cfg.Logger,
	}, nil
}

// ProgressFunc reports the progress of the tracked operation, an empty label keeps the
// current one.
type ProgressFunc func(progress float64, label string)

// Work is the tracked unit of work, it's called once per attempt.
type Work func(ctx context.Context, report ProgressFunc) error

// Request represents the track request parameters.
type Request struct {
	Label           string
	Category        model.Category
	ComplianceLevel model.ComplianceLevel
	Sensitive       bool
	Timeout         time.Duration
	EstimatedTime   string
	// Policy is the retry policy, zero values use the scheduler defaults.
	Policy retry.Policy
	Work   Work
	// OnComplete is called when the work succeeds or fails, after the operation bookkeeping
	// and before the waiters are released.
	OnComplete func(model.RetryableOperation)
}

func (r Request) validate() error {
	if r.Label == "" {
		return fmt.Errorf("label is required: %w", model.ErrNotValid)
	}
	if r.Work == nil {
		return fmt.Errorf("work is required: %w", model.ErrNotValid)
	}
	if !r.ComplianceLevel.Valid() {
		return fmt.Errorf("unknown compliance level %q: %w", r.ComplianceLevel, model.ErrNotValid)
	}
	return nil
}

// Response is a tracked unit of work.
type Response struct {
	OperationID string
	RetryID     string

	once   sync.Once
	done   chan struct{}
	result model.RetryableOperation
}

func newResponse() *Response {
	return &Response{done: make(chan struct{})}
}

func (r *Response) resolve(op model.RetryableOperation) (resolved bool) {
	r.once.Do(func() {
		r.result = op
		close(r.done)
		resolved = true
	})
	return resolved
}

// Done is closed when the tracked work reaches a terminal state.
func (r *Response) Done() <-chan struct{} { return r.done }

// Result returns the terminal retryable operation, only valid after Done is closed.
func (r *Response) Result() model.RetryableOperation {
	<-r.done
	return r.result
}

// Run starts tracking a unit of work. The first attempt starts right away and the call
// doesn't wait for it.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	resp := newResponse()
	resp.OperationID = s.registry.Register(req.Label, operation.RegisterOptions{
		Category:        req.Category,
		ComplianceLevel: req.ComplianceLevel,
		Sensitive:       req.Sensitive,
		Timeout:         req.Timeout,
		EstimatedTime:   req.EstimatedTime,
	})

	opID := resp.OperationID
	report := func(progress float64, label string) { s.registry.UpdateProgress(opID, progress, label) }

	retryID := s.scheduler.Schedule(ctx, func(ctx context.Context) error {
		return req.Work(ctx, report)
	}, retry.ScheduleOptions{
		Label:    req.Label,
		Category: req.Category,
		Policy:   req.Policy,
		OnComplete: func(op model.RetryableOperation) {
			s.complete(resp, op, req.OnComplete)
		},
		OnCancel: func(op model.RetryableOperation) {
			s.cancelled(resp, op)
		},
	})
	resp.RetryID = retryID

	// The operation was stopped (e.g: CancelAll) before its retry existed.
	if _, ok := s.registry.Get(opID); !ok && !isResolved(resp) {
		s.logger.Debugf("Operation %s stopped while scheduling, cancelling retry %s", opID, retryID)
		s.scheduler.Cancel(retryID)
	}

	s.logger.Debugf("Tracking %q as operation %s and retry %s", req.Label, opID, retryID)

	return resp, nil
}

func (s *Service) complete(resp *Response, op model.RetryableOperation, onComplete func(model.RetryableOperation)) {
	switch op.Status {
	case model.RetryStatusSucceeded:
		s.registry.Finish(resp.OperationID)
	default:
		s.registry.Cancel(resp.OperationID)
	}

	if onComplete != nil {
		onComplete(op)
	}

	resp.resolve(op)
}

func (s *Service) cancelled(resp *Response, op model.RetryableOperation) {
	s.registry.Cancel(resp.OperationID)
	if resp.resolve(op) {
		s.logger.Debugf("Cancelled tracked operation %s", resp.OperationID)
	}
}

// Wait blocks until the tracked work reaches a terminal state or the context ends. In the
// latter case the tracked work keeps running.
func (s *Service) Wait(ctx context.Context, resp *Response) (model.RetryableOperation, error) {
	select {
	case <-resp.Done():
		return resp.Result(), nil
	case <-ctx.Done():
		return model.RetryableOperation{}, ctx.Err()
	}
}

// RunAndWait tracks a unit of work and waits until it reaches a terminal state.
func (s *Service) RunAndWait(ctx context.Context, req Request) (model.RetryableOperation, error) {
	resp, err := s.Run(ctx, req)
	if err != nil {
		return model.RetryableOperation{}, err
	}

	return s.Wait(ctx, resp)
}

// Cancel cancels a tracked unit of work: both the retry and the operation are cancelled.
// Cancelling the retry directly on the scheduler has the same effect.
func (s *Service) Cancel(resp *Response) {
	s.scheduler.Cancel(resp.RetryID)
	s.registry.Cancel(resp.OperationID)
}

// CancelAll cancels all the pending retries and stops all the active operations.
func (s *Service) CancelAll() {
	s.scheduler.CancelAll()
	s.registry.StopAll()
}

func isResolved(resp *Response) bool {
	select {
	case <-resp.done:
		return true
	default:
		return false
	}
}
