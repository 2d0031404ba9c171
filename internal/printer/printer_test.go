package printer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/printer"
)

var now = time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

func overlayFixture() model.OverlaySnapshot {
	p := 50.0
	return model.OverlaySnapshot{
		IsLoading: true,
		Operations: []model.Operation{
			{
				ID:              "op-1",
				Label:           "Publish to Facebook",
				Category:        model.CategoryNetwork,
				ComplianceLevel: model.ComplianceLevelHigh,
				Sensitive:       true,
				Progress:        &p,
				StartTime:       now.Add(-10 * time.Second),
				Timeout:         5 * time.Second,
				EstimatedTime:   "~5s",
				Status:          model.OperationStatusActive,
			},
			{
				ID:        "op-2",
				Label:     "Check compliance",
				Category:  model.CategoryCompliance,
				StartTime: now.Add(-time.Second),
				Status:    model.OperationStatusActive,
			},
		},
		GlobalProgress:      50,
		TotalOperations:     4,
		CompletedOperations: 1,
		CancelledOperations: 1,
	}
}

func dashboardFixture() model.DashboardSnapshot {
	next := now.Add(5 * time.Second)
	return model.DashboardSnapshot{
		RetryCounters: model.RetryCounters{ActiveRetries: 1, TotalRetries: 3, SuccessfulRetries: 1, FailedRetries: 1},
		Pending: []model.RetryableOperation{
			{
				ID:          "r-1",
				Label:       "Publish to X",
				Category:    model.CategoryNetwork,
				Attempts:    2,
				MaxAttempts: 3,
				LastError:   &model.RetryError{Code: "rate_limited", Message: "rate_limited: too many requests"},
				NextRetryAt: &next,
				Status:      model.RetryStatusWaiting,
				CreatedAt:   now.Add(-time.Minute),
			},
		},
		Stats: model.RetryStats{
			SuccessRate:     33.333,
			AverageAttempts: 2,
			CategoryStats:   map[model.Category]int{model.CategoryNetwork: 1},
		},
	}
}

func outcomesFixture() []model.Outcome {
	return []model.Outcome{
		{
			ID:           "r-1",
			Kind:         model.OutcomeKindRetry,
			Label:        "Publish to X",
			Category:     model.CategoryNetwork,
			Status:       "failed",
			Attempts:     3,
			ErrorCode:    "rate_limited",
			ErrorMessage: "rate_limited: too many requests",
			StartedAt:    now.Add(-3 * time.Second),
			EndedAt:      now,
		},
		{
			ID:        "op-1",
			Kind:      model.OutcomeKindOperation,
			Label:     "Generate content",
			Category:  model.CategoryData,
			Status:    "completed",
			StartedAt: now.Add(-1500 * time.Millisecond),
			EndedAt:   now,
		},
	}
}

func TestTablePrinterPrintOverlay(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintOverlay(overlayFixture(), now)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Loading:    yes")
	assert.Contains(t, out, "Progress:   [##########----------] 50%")
	assert.Contains(t, out, "Operations: 4 total, 1 completed, 1 cancelled")
	assert.Contains(t, out, "Publish to Facebook (sensitive)")
	assert.Regexp(t, `op-1\s+.*\s+network\s+high\s+50%\s+10s\s+~5s\s+yes`, out)
	assert.Regexp(t, `op-2\s+Check compliance\s+compliance\s+-\s+-\s+1s\s+-\s+no`, out)
}

func TestTablePrinterPrintOverlayIdle(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintOverlay(model.OverlaySnapshot{}, now)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Loading:    no")
	assert.NotContains(t, out, "LABEL")
}

func TestTablePrinterPrintDashboard(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintDashboard(dashboardFixture(), now)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Retries:    1 active, 3 total, 1 succeeded, 1 failed, 0 cancelled")
	assert.Contains(t, out, "Success:    33.3%")
	assert.Contains(t, out, "Attempts:   2.00 average")
	assert.Contains(t, out, "Pending:    network=1")
	assert.Regexp(t, `r-1\s+Publish to X\s+network\s+waiting\s+2/3\s+in 5 seconds\s+rate_limited: too many requests`, out)
}

func TestTablePrinterPrintOutcomes(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintOutcomes(outcomesFixture())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^ID\s+KIND\s+LABEL`, lines[0])
	assert.Regexp(t, `r-1\s+retry\s+Publish to X\s+network\s+failed\s+3\s+3s\s+rate_limited\s+2026-01-30 10:00:00 UTC`, lines[1])
	assert.Regexp(t, `op-1\s+operation\s+Generate content\s+data\s+completed\s+-\s+1.5s\s+-`, lines[2])
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}

func TestJSONPrinterPrintOverlay(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)
	require.NoError(p.PrintOverlay(overlayFixture(), now))

	var got map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(true, got["is_loading"])
	assert.Equal(50.0, got["global_progress"])

	ops := got["operations"].([]any)
	require.Len(ops, 2)
	op1 := ops[0].(map[string]any)
	assert.Equal("op-1", op1["id"])
	assert.Equal(true, op1["late"])
	assert.Equal(10000.0, op1["elapsed_ms"])
	op2 := ops[1].(map[string]any)
	assert.Nil(op2["progress"])
}

func TestJSONPrinterPrintDashboard(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)
	require.NoError(p.PrintDashboard(dashboardFixture(), now))

	out := buf.String()
	assert.Contains(out, `"success_rate": 33.333`)
	assert.Contains(out, `"network": 1`)
	assert.Contains(out, `"code": "rate_limited"`)
	assert.Contains(out, `"next_retry_at": "2026-01-30T10:00:05Z"`)
}

func TestJSONPrinterPrintOutcomes(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)
	require.NoError(p.PrintOutcomes(outcomesFixture()))

	var got []map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &got))
	require.Len(got, 2)
	assert.Equal("r-1", got[0]["id"])
	assert.Equal(3000.0, got[0]["duration_ms"])
	assert.Equal(1500.0, got[1]["duration_ms"])
	assert.NotContains(got[1], "error_code")
}

func TestJSONPrinterPrintOutcomesEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)
	require.NoError(t, p.PrintOutcomes(nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}
