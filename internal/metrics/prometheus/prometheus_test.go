package prometheus_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inflightprom "github.com/slok/inflight/internal/metrics/prometheus"
	"github.com/slok/inflight/internal/model"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestRecorder(t *testing.T) {
	tests := map[string]struct {
		outcomes   []model.Outcome
		expMetrics string
		metrics    []string
	}{
		"Operation outcomes should be counted and measured": {
			outcomes: []model.Outcome{
				{ID: "op-1", Kind: model.OutcomeKindOperation, Category: model.CategoryNetwork, Status: "completed", StartedAt: t0, EndedAt: t0.Add(2 * time.Second)},
				{ID: "op-2", Kind: model.OutcomeKindOperation, Category: model.CategoryNetwork, Status: "cancelled", StartedAt: t0, EndedAt: t0.Add(time.Second)},
			},
			metrics: []string{"inflight_outcomes_total"},
			expMetrics: `
# HELP inflight_outcomes_total Total number of finished units of work by terminal status.
# TYPE inflight_outcomes_total counter
inflight_outcomes_total{category="network",kind="operation",status="cancelled"} 1
inflight_outcomes_total{category="network",kind="operation",status="completed"} 1
`,
		},

		"Retry outcomes should measure the attempts": {
			outcomes: []model.Outcome{
				{ID: "r-1", Kind: model.OutcomeKindRetry, Category: model.CategoryData, Status: "failed", Attempts: 3, StartedAt: t0, EndedAt: t0},
			},
			metrics: []string{"inflight_retry_attempts"},
			expMetrics: `
# HELP inflight_retry_attempts Attempts used by the finished retryable operations.
# TYPE inflight_retry_attempts histogram
inflight_retry_attempts_bucket{category="data",status="failed",le="1"} 0
inflight_retry_attempts_bucket{category="data",status="failed",le="2"} 0
inflight_retry_attempts_bucket{category="data",status="failed",le="3"} 1
inflight_retry_attempts_bucket{category="data",status="failed",le="4"} 1
inflight_retry_attempts_bucket{category="data",status="failed",le="5"} 1
inflight_retry_attempts_bucket{category="data",status="failed",le="7"} 1
inflight_retry_attempts_bucket{category="data",status="failed",le="10"} 1
inflight_retry_attempts_bucket{category="data",status="failed",le="+Inf"} 1
inflight_retry_attempts_sum{category="data",status="failed"} 3
inflight_retry_attempts_count{category="data",status="failed"} 1
`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			reg := prometheus.NewRegistry()
			rec, err := inflightprom.NewRecorder(inflightprom.RecorderConfig{Registerer: reg})
			require.NoError(err)

			for _, o := range test.outcomes {
				require.NoError(rec.Record(context.Background(), o))
			}

			err = testutil.GatherAndCompare(reg, strings.NewReader(test.expMetrics), test.metrics...)
			assert.NoError(t, err)
		})
	}
}

func TestRecorderDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := inflightprom.NewRecorder(inflightprom.RecorderConfig{Registerer: reg})
	require.NoError(t, err)

	_, err = inflightprom.NewRecorder(inflightprom.RecorderConfig{Registerer: reg})
	assert.Error(t, err)
}

type staticOverlay model.OverlaySnapshot

func (s staticOverlay) Overlay() model.OverlaySnapshot { return model.OverlaySnapshot(s) }

type staticDashboard model.DashboardSnapshot

func (s staticDashboard) Dashboard() model.DashboardSnapshot { return model.DashboardSnapshot(s) }

func TestStateCollector(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	overlay := staticOverlay{
		IsLoading:      true,
		Operations:     []model.Operation{{ID: "op-1"}, {ID: "op-2"}},
		GlobalProgress: 42.5,
	}
	dashboard := staticDashboard{
		Stats: model.RetryStats{CategoryStats: map[model.Category]int{model.CategoryNetwork: 2, model.CategoryAuth: 1}},
	}

	reg := prometheus.NewRegistry()
	require.NoError(reg.Register(inflightprom.NewStateCollector(overlay, dashboard)))

	exp := `
# HELP inflight_active_operations Number of active operations.
# TYPE inflight_active_operations gauge
inflight_active_operations 2
# HELP inflight_global_progress Aggregated progress percentage of the active operations.
# TYPE inflight_global_progress gauge
inflight_global_progress 42.5
`
	assert.NoError(testutil.GatherAndCompare(reg, strings.NewReader(exp), "inflight_active_operations", "inflight_global_progress"))

	n, err := testutil.GatherAndCount(reg, "inflight_pending_retries")
	require.NoError(err)
	assert.Equal(len(model.Categories()), n)
}

func TestStateCollectorWithoutSources(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(inflightprom.NewStateCollector(nil, nil)))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
