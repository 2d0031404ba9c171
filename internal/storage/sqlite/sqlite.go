package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/inflight/internal/log"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/storage"
	"github.com/slok/inflight/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository. It stores the outcome
// history, the live state of in-flight work is never persisted.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.Repository = &Repository{}

// NewRepository creates a new SQLite repository, the schema migrations are applied on creation.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite outcome history initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// Record stores a new outcome.
func (r *Repository) Record(ctx context.Context, o model.Outcome) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid outcome: %w", err)
	}

	query := `
		INSERT INTO outcomes (
			id, kind, label, category,
			compliance_level, sensitive,
			status, attempts,
			error_code, error_message,
			started_at, ended_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		o.ID,
		o.Kind,
		o.Label,
		o.Category,
		o.ComplianceLevel,
		o.Sensitive,
		o.Status,
		o.Attempts,
		o.ErrorCode,
		o.ErrorMessage,
		o.StartedAt.UnixMilli(),
		o.EndedAt.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: outcomes.") {
			return fmt.Errorf("outcome %s: %w", o.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert outcome: %w", err)
	}

	r.logger.Debugf("Recorded %s outcome in repository: %s", o.Kind, o.ID)
	return nil
}

// ListOutcomes returns the outcomes that match the options, newest first.
func (r *Repository) ListOutcomes(ctx context.Context, opts storage.ListOptions) ([]model.Outcome, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	var where []string
	var args []any
	if opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, opts.Kind)
	}
	if opts.Category != "" {
		where = append(where, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT
			id, kind, label, category,
			compliance_level, sensitive,
			status, attempts,
			error_code, error_message,
			started_at, ended_at
		FROM outcomes`)
	if len(where) > 0 {
		sb.WriteString("\n\t\tWHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString("\n\t\tORDER BY ended_at DESC, id DESC")
	if opts.Limit > 0 {
		sb.WriteString("\n\t\tLIMIT ?")
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("could not query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []model.Outcome{}
	for rows.Next() {
		o, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return outcomes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (model.Outcome, error) {
	var o model.Outcome
	var kind, category, level string
	var startedAt, endedAt int64

	err := s.Scan(
		&o.ID,
		&kind,
		&o.Label,
		&category,
		&level,
		&o.Sensitive,
		&o.Status,
		&o.Attempts,
		&o.ErrorCode,
		&o.ErrorMessage,
		&startedAt,
		&endedAt,
	)
	if err != nil {
		return model.Outcome{}, err
	}

	o.Kind = model.OutcomeKind(kind)
	o.Category = model.Category(category)
	o.ComplianceLevel = model.ComplianceLevel(level)
	o.StartedAt = timeFromUnixMilli(startedAt)
	o.EndedAt = timeFromUnixMilli(endedAt)

	return o, nil
}

func timeFromUnixMilli(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
