package lib

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/inflight/internal/app/history"
	"github.com/slok/inflight/internal/app/track"
	"github.com/slok/inflight/internal/conventions"
	"github.com/slok/inflight/internal/log"
	inflightprom "github.com/slok/inflight/internal/metrics/prometheus"
	"github.com/slok/inflight/internal/operation"
	"github.com/slok/inflight/internal/outcome"
	"github.com/slok/inflight/internal/retry"
	"github.com/slok/inflight/internal/storage"
	"github.com/slok/inflight/internal/storage/memory"
	"github.com/slok/inflight/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} records the outcome history in
// ~/.inflight/inflight.db and doesn't expose metrics.
type Config struct {
	// HistoryDBPath is the SQLite database path of the outcome history.
	// Default: ~/.inflight/inflight.db.
	HistoryDBPath string

	// DisableHistory disables the outcome history, [Client.History] will fail.
	DisableHistory bool

	// InMemoryHistory keeps the outcome history in memory instead of SQLite, it's lost
	// when the client is closed. HistoryDBPath is ignored.
	InMemoryHistory bool

	// MetricsRegisterer registers the Prometheus metrics of the client. Nil disables
	// the metrics. A registerer can only be used by one client.
	MetricsRegisterer prometheus.Registerer

	// DefaultPolicy is the retry policy used by the tracked work that doesn't set one.
	// Zero values use the package defaults (see [DefaultPolicy]).
	DefaultPolicy Policy

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.HistoryDBPath == "" && !c.DisableHistory && !c.InMemoryHistory {
		home := homedir.HomeDir()
		if home == "" {
			return fmt.Errorf("could not get user home dir")
		}
		c.HistoryDBPath = conventions.DefaultHistoryDBPath(home)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point to track units of asynchronous work.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	registry  *operation.Registry
	scheduler *retry.Scheduler
	tracker   *track.Service
	history   *history.Service
	logger    log.Logger
	closeFns  []func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done to cancel the in-flight work and
// release the history database connection:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{logger: cfg.Logger}
	recorder := outcome.MultiRecorder{}

	if !cfg.DisableHistory {
		var repo storage.Repository
		if cfg.InMemoryHistory {
			memRepo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
			if err != nil {
				return nil, fmt.Errorf("could not create repository: %w", err)
			}
			repo = memRepo
		} else {
			sqliteRepo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
				DBPath: cfg.HistoryDBPath,
				Logger: cfg.Logger,
			})
			if err != nil {
				return nil, fmt.Errorf("could not create repository: %w", err)
			}
			c.closeFns = append(c.closeFns, sqliteRepo.Close)
			repo = sqliteRepo
		}
		recorder = append(recorder, repo)

		var err error
		c.history, err = history.NewService(history.ServiceConfig{
			Repository: repo,
			Logger:     cfg.Logger,
		})
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("could not create history service: %w", err)
		}
	}

	if cfg.MetricsRegisterer != nil {
		promRecorder, err := inflightprom.NewRecorder(inflightprom.RecorderConfig{Registerer: cfg.MetricsRegisterer})
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("could not create metrics recorder: %w", err)
		}
		recorder = append(recorder, promRecorder)
	}

	var err error
	c.registry, err = operation.NewRegistry(operation.RegistryConfig{
		Logger:   cfg.Logger,
		Recorder: recorder,
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("could not create operation registry: %w", err)
	}

	c.scheduler, err = retry.NewScheduler(retry.SchedulerConfig{
		Logger:        cfg.Logger,
		Recorder:      recorder,
		DefaultPolicy: cfg.DefaultPolicy,
	})
	if err != nil {
		_ = c.Close()
		return nil, mapError(fmt.Errorf("could not create retry scheduler: %w", err))
	}

	if cfg.MetricsRegisterer != nil {
		if err := cfg.MetricsRegisterer.Register(inflightprom.NewStateCollector(c.registry, c.scheduler)); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("could not register state collector: %w", err)
		}
	}

	c.tracker, err = track.NewService(track.ServiceConfig{
		Registry:  c.registry,
		Scheduler: c.scheduler,
		Logger:    cfg.Logger,
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("could not create track service: %w", err)
	}

	return c, nil
}

// Close cancels all the in-flight work and releases the resources held by the client.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	// In-flight work is cancelled before the history is closed so its outcomes are recorded.
	if c.tracker != nil {
		c.tracker.CancelAll()
	}

	var errs []error
	for _, fn := range c.closeFns {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closeFns = nil

	return errors.Join(errs...)
}
