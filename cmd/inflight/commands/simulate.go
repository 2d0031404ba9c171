package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slok/inflight/internal/app/simulate"
	"github.com/slok/inflight/internal/app/track"
	"github.com/slok/inflight/internal/conventions"
	inflightprom "github.com/slok/inflight/internal/metrics/prometheus"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/operation"
	"github.com/slok/inflight/internal/outcome"
	"github.com/slok/inflight/internal/printer"
	"github.com/slok/inflight/internal/retry"
	"github.com/slok/inflight/internal/storage/io"
	"github.com/slok/inflight/internal/storage/sqlite"
)

type SimulateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	scenarioFile   string
	cancelAfter    time.Duration
	watchInterval  time.Duration
	metricsAddress string
	noHistory      bool
	format         string
}

// NewSimulateCommand returns the simulate command.
func NewSimulateCommand(rootCmd *RootCommand, app *kingpin.Application) *SimulateCommand {
	c := &SimulateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("simulate", "Run a scenario of synthetic units of work with progress tracking and retries.")
	c.Cmd.Flag("scenario", "Path to the scenario YAML file.").Short('f').Required().StringVar(&c.scenarioFile)
	c.Cmd.Flag("cancel-after", "Cancel all the in-flight work after this duration (0 disables it).").Default("0s").DurationVar(&c.cancelAfter)
	c.Cmd.Flag("watch-interval", "Interval to print the live overlay and dashboard in table format (0 disables it).").Default("1s").DurationVar(&c.watchInterval)
	c.Cmd.Flag("metrics-listen-address", "Address to serve the Prometheus metrics on (e.g: :8081), empty disables it.").StringVar(&c.metricsAddress)
	c.Cmd.Flag("no-history", "Don't record the outcomes in the history database.").BoolVar(&c.noHistory)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c SimulateCommand) Name() string { return c.Cmd.FullCommand() }

func (c SimulateCommand) StructuredOutput() bool { return c.format == formatJSON }

func (c SimulateCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Load scenario.
	scenarioPath, err := filepath.Abs(c.scenarioFile)
	if err != nil {
		return fmt.Errorf("could not resolve scenario path: %w", err)
	}
	scenarioRepo := io.NewScenarioYAMLRepository(os.DirFS("/"))
	scenario, err := scenarioRepo.GetScenario(ctx, scenarioPath[1:])
	if err != nil {
		return fmt.Errorf("could not load scenario: %w", err)
	}

	// Outcome recorders.
	promReg := prometheus.NewRegistry()
	promRecorder, err := inflightprom.NewRecorder(inflightprom.RecorderConfig{Registerer: promReg})
	if err != nil {
		return fmt.Errorf("could not create metrics recorder: %w", err)
	}
	recorder := outcome.MultiRecorder{promRecorder}

	if !c.noHistory {
		repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: c.rootCmd.DBPath,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create repository: %w", err)
		}
		defer repo.Close()
		recorder = append(recorder, repo)
	}

	registry, err := operation.NewRegistry(operation.RegistryConfig{
		Logger:   logger,
		Recorder: recorder,
	})
	if err != nil {
		return fmt.Errorf("could not create operation registry: %w", err)
	}

	scheduler, err := retry.NewScheduler(retry.SchedulerConfig{
		Logger:   logger,
		Recorder: recorder,
	})
	if err != nil {
		return fmt.Errorf("could not create retry scheduler: %w", err)
	}
	defer scheduler.Close()

	if err := promReg.Register(inflightprom.NewStateCollector(registry, scheduler)); err != nil {
		return fmt.Errorf("could not register state collector: %w", err)
	}

	tracker, err := track.NewService(track.ServiceConfig{
		Registry:  registry,
		Scheduler: scheduler,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create track service: %w", err)
	}

	svc, err := simulate.NewService(simulate.ServiceConfig{
		Tracker: tracker,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd)

	var g run.Group
	var resp *simulate.Response

	// Simulation, the other actors are stopped when it ends.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				var err error
				resp, err = svc.Run(ctx, simulate.Request{
					Scenario:    scenario,
					CancelAfter: c.cancelAfter,
				})
				return err
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Live view.
	if c.format == formatTable && c.watchInterval > 0 {
		stopC := make(chan struct{})
		g.Add(
			func() error {
				t := time.NewTicker(c.watchInterval)
				defer t.Stop()
				for {
					select {
					case <-stopC:
						return nil
					case <-t.C:
						now := time.Now()
						if err := p.PrintOverlay(registry.Overlay(), now); err != nil {
							return fmt.Errorf("could not print overlay: %w", err)
						}
						if err := p.PrintDashboard(scheduler.Dashboard(), now); err != nil {
							return fmt.Errorf("could not print dashboard: %w", err)
						}
					}
				}
			},
			func(_ error) {
				close(stopC)
			},
		)
	}

	// Metrics.
	if c.metricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle(conventions.MetricsPath, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		server := &http.Server{
			Addr:              c.metricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Add(
			func() error {
				logger.Infof("Serving metrics on %s%s", c.metricsAddress, conventions.MetricsPath)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					logger.Warningf("Could not shutdown metrics server: %s", err)
				}
			},
		)
	}

	runErr := g.Run()
	if resp == nil {
		return fmt.Errorf("could not run scenario: %w", runErr)
	}

	now := time.Now()
	if err := p.PrintOverlay(registry.Overlay(), now); err != nil {
		return fmt.Errorf("could not print overlay: %w", err)
	}
	if err := p.PrintDashboard(scheduler.Dashboard(), now); err != nil {
		return fmt.Errorf("could not print dashboard: %w", err)
	}
	if c.format == formatTable {
		if err := printUnits(p, resp.Units); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("scenario interrupted: %w", runErr)
	}

	return nil
}

func printUnits(p printer.Printer, units []simulate.UnitResult) error {
	for _, u := range units {
		msg := fmt.Sprintf("%s: not started", u.Label)
		if u.Started {
			msg = fmt.Sprintf("%s: %s after %d/%d attempts", u.Label, u.Retry.Status, u.Retry.Attempts, u.Retry.MaxAttempts)
			if u.Retry.LastError != nil && u.Retry.Status != model.RetryStatusSucceeded {
				msg += fmt.Sprintf(" (%s)", u.Retry.LastError.String())
			}
		}
		if err := p.PrintMessage(msg); err != nil {
			return fmt.Errorf("could not print unit result: %w", err)
		}
	}
	return nil
}
