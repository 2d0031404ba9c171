package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/inflight/internal/app/history"
	"github.com/slok/inflight/internal/printer"
	"github.com/slok/inflight/internal/storage/sqlite"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	kind     string
	category string
	status   string
	limit    int
	format   string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the outcomes of the finished operations and retries.")
	c.Cmd.Flag("kind", "Filter by kind (operation, retry).").StringVar(&c.kind)
	c.Cmd.Flag("category", "Filter by category (healthcare, compliance, auth, data, network, general).").StringVar(&c.category)
	c.Cmd.Flag("status", "Filter by terminal status (completed, cancelled, succeeded, failed).").StringVar(&c.status)
	c.Cmd.Flag("limit", "Maximum number of outcomes, 0 lists all of them.").Default("50").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

// StructuredOutput is always true, the history is printed in both formats.
func (c HistoryCommand) StructuredOutput() bool { return true }

func (c HistoryCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	outcomes, err := svc.Run(ctx, history.Request{
		Kind:     c.kind,
		Category: c.category,
		Status:   c.status,
		Limit:    c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list history: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd).PrintOutcomes(outcomes); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}

func newPrinter(format string, rootCmd *RootCommand) printer.Printer {
	switch format {
	case formatJSON:
		return printer.NewJSONPrinter(rootCmd.Stdout)
	default:
		return printer.NewTablePrinter(rootCmd.Stdout)
	}
}
