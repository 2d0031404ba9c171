package simulate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slok/inflight/internal/app/track"
	"github.com/slok/inflight/internal/log"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/retry"
)

// Tracker tracks units of work.
type Tracker interface {
	Run(ctx context.Context, req track.Request) (*track.Response, error)
	Wait(ctx context.Context, resp *track.Response) (model.RetryableOperation, error)
	Cancel(resp *track.Response)
	CancelAll()
}

var _ Tracker = &track.Service{}

// ServiceConfig is the configuration for the simulate service.
type ServiceConfig struct {
	Tracker Tracker
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Simulate"})

	return nil
}

// Service runs scenarios of synthetic units of work through the tracker.
type Service struct {
	tracker Tracker
	logger  log.Logger
}

// NewService creates a new simulate service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		tracker: cfg.Tracker,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the simulate request parameters.
type Request struct {
	Scenario model.Scenario
	// CancelAfter cancels all the in-flight work after the duration, 0 disables it.
	CancelAfter time.Duration
}

// UnitResult is the result of a scenario unit.
type UnitResult struct {
	Label string
	// Started is false when the unit was cancelled before starting.
	Started bool
	Retry   model.RetryableOperation
}

// Response is the result of a scenario run, with the units in scenario order.
type Response struct {
	Units []UnitResult
}

// Run runs a scenario and blocks until all its units reach a terminal state. When the
// context ends, all the in-flight work is cancelled.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if len(req.Scenario.Units) == 0 {
		return nil, fmt.Errorf("scenario without units: %w", model.ErrNotValid)
	}

	s.logger.Infof("Running scenario %q with %d units", req.Scenario.Name, len(req.Scenario.Units))

	stopped := make(chan struct{})
	var stopOnce sync.Once
	stop := func(reason string) {
		stopOnce.Do(func() {
			s.logger.Infof("Cancelling all in-flight work: %s", reason)
			close(stopped)
			s.tracker.CancelAll()
		})
	}

	if req.CancelAfter > 0 {
		t := time.AfterFunc(req.CancelAfter, func() { stop(fmt.Sprintf("cancel after %s", req.CancelAfter)) })
		defer t.Stop()
	}

	resp := &Response{Units: make([]UnitResult, len(req.Scenario.Units))}
	g := errgroup.Group{}
	for i, unit := range req.Scenario.Units {
		resp.Units[i].Label = unit.Label
		g.Go(func() error {
			res, err := s.runUnit(ctx, stopped, unit)
			if err != nil {
				return fmt.Errorf("unit %q: %w", unit.Label, err)
			}
			resp.Units[i] = res
			return nil
		})
	}

	// Waiting stops as soon as the context ends, the cancellation releases the waiters.
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			stop(ctx.Err().Error())
		case <-stopped:
		case <-finished:
		}
	}()

	err := g.Wait()
	if ctx.Err() != nil {
		return resp, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *Service) runUnit(ctx context.Context, stopped <-chan struct{}, unit model.ScenarioUnit) (UnitResult, error) {
	res := UnitResult{Label: unit.Label}

	if unit.StartAfter > 0 {
		t := time.NewTimer(unit.StartAfter)
		defer t.Stop()
		select {
		case <-t.C:
		case <-stopped:
			return res, nil
		}
	}
	select {
	case <-stopped:
		return res, nil
	default:
	}

	tr, err := s.tracker.Run(ctx, track.Request{
		Label:           unit.Label,
		Category:        unit.Category,
		ComplianceLevel: unit.ComplianceLevel,
		Sensitive:       unit.Sensitive,
		Timeout:         unit.Timeout,
		EstimatedTime:   unit.EstimatedTime,
		Policy:          policyFor(unit.Retry),
		Work:            syntheticWork(unit),
	})
	if err != nil {
		return res, err
	}
	res.Started = true

	// The stop could have happened while the unit was starting.
	select {
	case <-stopped:
		s.tracker.Cancel(tr)
	default:
	}

	// The tracker resolves cancelled work, the wait can't block after a stop.
	op, err := s.tracker.Wait(context.Background(), tr)
	if err != nil {
		return res, err
	}
	res.Retry = op

	return res, nil
}

// syntheticWork returns the work of a scenario unit: every attempt takes the unit duration
// reporting the progress in steps, and fails until the configured number of failures.
func syntheticWork(unit model.ScenarioUnit) track.Work {
	var attempts atomic.Int32

	return func(ctx context.Context, report track.ProgressFunc) error {
		attempt := int(attempts.Add(1))

		if unit.Steps == 0 {
			if err := sleep(ctx, unit.Duration); err != nil {
				return err
			}
		} else {
			report(0, "")
			step := unit.Duration / time.Duration(unit.Steps)
			for i := 1; i <= unit.Steps; i++ {
				if err := sleep(ctx, step); err != nil {
					return err
				}
				report(float64(i)*100/float64(unit.Steps), "")
			}
		}

		if unit.FailuresBeforeSuccess >= 0 && attempt > unit.FailuresBeforeSuccess {
			return nil
		}

		err := fmt.Errorf("attempt %d of %q failed", attempt, unit.Label)
		if unit.ErrorCode != "" {
			err = retry.WithCode(unit.ErrorCode, err)
		}
		if unit.PermanentFailure {
			err = retry.Permanent(err)
		}
		return err
	}
}

func policyFor(p model.ScenarioRetryPolicy) retry.Policy {
	pol := retry.Policy{MaxAttempts: p.MaxAttempts}

	switch p.Backoff {
	case model.BackoffKindConstant:
		wait := p.Base
		if wait == 0 {
			wait = retry.DefaultBackoffBase
		}
		pol.Backoff = retry.ConstantBackoff{Wait: wait}
	default:
		if p.Base != 0 || p.Cap != 0 || p.Jitter != 0 {
			pol.Backoff = retry.ExponentialBackoff{Base: p.Base, Cap: p.Cap, JitterFraction: p.Jitter}
		}
	}

	return pol
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
