package history

import (
	"context"
	"fmt"

	"github.com/slok/inflight/internal/log"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})

	return nil
}

// Service lists the recorded outcomes of the finished units of work.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters. Filters are raw user input.
type Request struct {
	Kind     string
	Category string
	Status   string
	Limit    int
}

func (r Request) toListOptions() (storage.ListOptions, error) {
	opts := storage.ListOptions{Status: r.Status, Limit: r.Limit}

	switch k := model.OutcomeKind(r.Kind); k {
	case "":
	case model.OutcomeKindOperation, model.OutcomeKindRetry:
		opts.Kind = k
	default:
		return opts, fmt.Errorf("unknown kind %q: %w", r.Kind, model.ErrNotValid)
	}

	if r.Category != "" {
		c, err := model.ParseCategory(r.Category)
		if err != nil {
			return opts, err
		}
		opts.Category = c
	}

	if r.Limit < 0 {
		return opts, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	return opts, nil
}

// Run lists the outcomes, newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Outcome, error) {
	opts, err := req.toListOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	s.logger.Debugf("listing outcomes with filters: %+v", opts)

	outcomes, err := s.repo.ListOutcomes(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("could not list outcomes: %w", err)
	}

	s.logger.Debugf("found %d outcomes", len(outcomes))
	return outcomes, nil
}
