package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/slok/inflight/internal/log"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	outcomes []model.Outcome
	ids      map[string]struct{}
	mu       sync.RWMutex
	logger   log.Logger
}

var _ storage.Repository = &Repository{}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		ids:    map[string]struct{}{},
		logger: cfg.Logger,
	}, nil
}

// Record stores a new outcome.
func (r *Repository) Record(ctx context.Context, o model.Outcome) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid outcome: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[o.ID]; ok {
		return fmt.Errorf("outcome %s: %w", o.ID, model.ErrAlreadyExists)
	}

	r.ids[o.ID] = struct{}{}
	r.outcomes = append(r.outcomes, o)
	r.logger.Debugf("Recorded %s outcome in repository: %s", o.Kind, o.ID)

	return nil
}

// ListOutcomes returns the outcomes that match the options, newest first.
func (r *Repository) ListOutcomes(ctx context.Context, opts storage.ListOptions) ([]model.Outcome, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	outcomes := []model.Outcome{}
	for _, o := range r.outcomes {
		if opts.Match(o) {
			outcomes = append(outcomes, o)
		}
	}

	slices.SortFunc(outcomes, func(a, b model.Outcome) int {
		if c := b.EndedAt.Compare(a.EndedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	if opts.Limit > 0 && len(outcomes) > opts.Limit {
		outcomes = outcomes[:opts.Limit]
	}

	return outcomes, nil
}
