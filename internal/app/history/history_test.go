package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/inflight/internal/app/history"
	"github.com/slok/inflight/internal/log"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/storage"
	"github.com/slok/inflight/internal/storage/storagemock"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config history.ServiceConfig
		expErr bool
	}{
		"valid config should create service": {
			config: history.ServiceConfig{
				Repository: &storagemock.MockRepository{},
				Logger:     log.Noop,
			},
		},
		"missing repository should fail": {
			config: history.ServiceConfig{Logger: log.Noop},
			expErr: true,
		},
		"nil logger should default to noop": {
			config: history.ServiceConfig{Repository: &storagemock.MockRepository{}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			svc, err := history.NewService(test.config)

			if test.expErr {
				require.Error(err)
				require.Nil(svc)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	now := time.Now().UTC()
	outcomes := []model.Outcome{
		{ID: "r-1", Kind: model.OutcomeKindRetry, Category: model.CategoryNetwork, Status: "failed", Attempts: 3, StartedAt: now, EndedAt: now},
		{ID: "op-1", Kind: model.OutcomeKindOperation, Category: model.CategoryNetwork, Status: "completed", StartedAt: now, EndedAt: now},
	}

	tests := map[string]struct {
		req         history.Request
		mock        func(m *storagemock.MockRepository)
		expOutcomes []model.Outcome
		expErr      bool
	}{
		"Listing without filters should return all the outcomes": {
			req: history.Request{},
			mock: func(m *storagemock.MockRepository) {
				m.On("ListOutcomes", mock.Anything, storage.ListOptions{}).Once().Return(outcomes, nil)
			},
			expOutcomes: outcomes,
		},

		"Filters should be parsed and forwarded to the repository": {
			req: history.Request{Kind: "retry", Category: "Network", Status: "failed", Limit: 10},
			mock: func(m *storagemock.MockRepository) {
				exp := storage.ListOptions{Kind: model.OutcomeKindRetry, Category: model.CategoryNetwork, Status: "failed", Limit: 10}
				m.On("ListOutcomes", mock.Anything, exp).Once().Return(outcomes[:1], nil)
			},
			expOutcomes: outcomes[:1],
		},

		"An unknown kind should fail": {
			req:    history.Request{Kind: "job"},
			mock:   func(m *storagemock.MockRepository) {},
			expErr: true,
		},

		"An unknown category should fail": {
			req:    history.Request{Category: "billing"},
			mock:   func(m *storagemock.MockRepository) {},
			expErr: true,
		},

		"A negative limit should fail": {
			req:    history.Request{Limit: -1},
			mock:   func(m *storagemock.MockRepository) {},
			expErr: true,
		},

		"A repository error should fail": {
			req: history.Request{},
			mock: func(m *storagemock.MockRepository) {
				m.On("ListOutcomes", mock.Anything, mock.Anything).Once().Return(nil, fmt.Errorf("something"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mRepo := storagemock.NewMockRepository(t)
			test.mock(mRepo)

			svc, err := history.NewService(history.ServiceConfig{Repository: mRepo, Logger: log.Noop})
			require.NoError(err)

			got, err := svc.Run(context.Background(), test.req)
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expOutcomes, got)
		})
	}
}
