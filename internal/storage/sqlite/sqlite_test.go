package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/inflight/internal/log"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/storage"
	"github.com/slok/inflight/internal/storage/sqlite"
	"github.com/slok/inflight/internal/storage/sqlite/migrations"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func outcomeFixture(id string, kind model.OutcomeKind, category model.Category, status string, endOffset time.Duration) model.Outcome {
	return model.Outcome{
		ID:        id,
		Kind:      kind,
		Label:     "label " + id,
		Category:  category,
		Status:    status,
		StartedAt: t0,
		EndedAt:   t0.Add(endOffset),
	}
}

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: filepath.Join(t.TempDir(), "history", "test.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestNewRepositoryRequiresDBPath(t *testing.T) {
	_, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{})
	assert.Error(t, err)
}

func TestRepositoryRecordRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	repo := newRepo(t)

	exp := model.Outcome{
		ID:              "r-1",
		Kind:            model.OutcomeKindRetry,
		Label:           "Publish to Facebook",
		Category:        model.CategoryNetwork,
		ComplianceLevel: model.ComplianceLevelHigh,
		Sensitive:       true,
		Status:          "failed",
		Attempts:        3,
		ErrorCode:       "rate_limited",
		ErrorMessage:    "rate_limited: too many requests",
		StartedAt:       t0,
		EndedAt:         t0.Add(1500 * time.Millisecond),
	}
	require.NoError(repo.Record(ctx, exp))

	got, err := repo.ListOutcomes(ctx, storage.ListOptions{})
	require.NoError(err)
	require.Len(got, 1)
	assert.Equal(exp, got[0])
	assert.Equal(1500*time.Millisecond, got[0].Duration())
}

func TestRepositoryRecordErrors(t *testing.T) {
	tests := map[string]struct {
		outcomes []model.Outcome
		expErr   error
	}{
		"Recording an outcome with a duplicated ID should fail": {
			outcomes: []model.Outcome{
				outcomeFixture("op-1", model.OutcomeKindOperation, model.CategoryNetwork, "completed", time.Second),
				outcomeFixture("op-1", model.OutcomeKindOperation, model.CategoryNetwork, "completed", time.Second),
			},
			expErr: model.ErrAlreadyExists,
		},

		"Recording an outcome without ID should fail": {
			outcomes: []model.Outcome{
				outcomeFixture("", model.OutcomeKindOperation, model.CategoryNetwork, "completed", time.Second),
			},
			expErr: model.ErrNotValid,
		},

		"Recording an outcome of an unknown kind should fail": {
			outcomes: []model.Outcome{
				outcomeFixture("x-1", model.OutcomeKind("job"), model.CategoryNetwork, "completed", time.Second),
			},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)

			var err error
			for _, o := range test.outcomes {
				err = repo.Record(context.Background(), o)
			}
			assert.ErrorIs(t, err, test.expErr)
		})
	}
}

func TestRepositoryListOutcomes(t *testing.T) {
	tests := map[string]struct {
		opts   storage.ListOptions
		expIDs []string
		expErr bool
	}{
		"Without filters all outcomes should be returned newest first": {
			opts:   storage.ListOptions{},
			expIDs: []string{"r-2", "op-2", "r-1", "op-1"},
		},

		"Filtering by kind and category should combine the filters": {
			opts:   storage.ListOptions{Kind: model.OutcomeKindRetry, Category: model.CategoryNetwork},
			expIDs: []string{"r-2"},
		},

		"Filtering by status should return only that status": {
			opts:   storage.ListOptions{Status: "cancelled"},
			expIDs: []string{"op-2"},
		},

		"Limit should return the newest outcomes": {
			opts:   storage.ListOptions{Limit: 3},
			expIDs: []string{"r-2", "op-2", "r-1"},
		},

		"Filters without matches should return an empty list": {
			opts:   storage.ListOptions{Category: model.CategoryHealthcare},
			expIDs: []string{},
		},

		"A negative limit should fail": {
			opts:   storage.ListOptions{Limit: -5},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			repo := newRepo(t)
			for _, o := range []model.Outcome{
				outcomeFixture("op-1", model.OutcomeKindOperation, model.CategoryNetwork, "completed", 1*time.Second),
				outcomeFixture("r-1", model.OutcomeKindRetry, model.CategoryCompliance, "failed", 2*time.Second),
				outcomeFixture("op-2", model.OutcomeKindOperation, model.CategoryCompliance, "cancelled", 3*time.Second),
				outcomeFixture("r-2", model.OutcomeKindRetry, model.CategoryNetwork, "succeeded", 4*time.Second),
			} {
				require.NoError(repo.Record(ctx, o))
			}

			got, err := repo.ListOutcomes(ctx, test.opts)
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)

			ids := []string{}
			for _, o := range got {
				ids = append(ids, o.ID)
			}
			assert.Equal(test.expIDs, ids)
		})
	}
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "test.db")
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path})
	require.NoError(err)
	require.NoError(repo.Record(ctx, outcomeFixture("op-1", model.OutcomeKindOperation, model.CategoryAuth, "completed", time.Second)))
	require.NoError(repo.Close())

	repo, err = sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path})
	require.NoError(err)
	defer repo.Close()

	got, err := repo.ListOutcomes(ctx, storage.ListOptions{})
	require.NoError(err)
	require.Len(got, 1)
	assert.Equal(t, "op-1", got[0].ID)
}

func TestMigratorUpAndDown(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrations.db"))
	require.NoError(err)
	defer db.Close()

	m, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(err)

	v, _, err := m.Version(ctx)
	require.NoError(err)
	assert.Equal(uint(0), v)

	require.NoError(m.Up(ctx))
	require.NoError(m.Up(ctx)) // Already applied.

	v, dirty, err := m.Version(ctx)
	require.NoError(err)
	assert.Equal(uint(1), v)
	assert.False(dirty)

	require.NoError(m.Down(ctx))
	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'outcomes'`).Scan(&count)
	require.NoError(err)
	assert.Equal(0, count)
}
