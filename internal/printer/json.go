package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/inflight/internal/model"
)

// JSONPrinter prints the in-flight work information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type operationOutput struct {
	ID              string     `json:"id"`
	Label           string     `json:"label"`
	Category        string     `json:"category"`
	ComplianceLevel string     `json:"compliance_level,omitempty"`
	Sensitive       bool       `json:"sensitive"`
	Progress        *float64   `json:"progress"`
	StartTime       time.Time  `json:"start_time"`
	ElapsedMS       int64      `json:"elapsed_ms"`
	TimeoutMS       int64      `json:"timeout_ms,omitempty"`
	EstimatedTime   string     `json:"estimated_time,omitempty"`
	Late            bool       `json:"late"`
	Status          string     `json:"status"`
	EndTime         *time.Time `json:"end_time,omitempty"`
}

type overlayOutput struct {
	IsLoading           bool              `json:"is_loading"`
	GlobalProgress      float64           `json:"global_progress"`
	TotalOperations     int               `json:"total_operations"`
	CompletedOperations int               `json:"completed_operations"`
	CancelledOperations int               `json:"cancelled_operations"`
	Operations          []operationOutput `json:"operations"`
}

type retryErrorOutput struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type retryOutput struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Category    string            `json:"category"`
	Status      string            `json:"status"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	LastError   *retryErrorOutput `json:"last_error,omitempty"`
	NextRetryAt *time.Time        `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type dashboardOutput struct {
	ActiveRetries     int            `json:"active_retries"`
	TotalRetries      int            `json:"total_retries"`
	SuccessfulRetries int            `json:"successful_retries"`
	FailedRetries     int            `json:"failed_retries"`
	CancelledRetries  int            `json:"cancelled_retries"`
	SuccessRate       float64        `json:"success_rate"`
	AverageAttempts   float64        `json:"average_attempts"`
	CategoryStats     map[string]int `json:"category_stats"`
	Pending           []retryOutput  `json:"pending"`
}

type outcomeOutput struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Label           string    `json:"label"`
	Category        string    `json:"category"`
	ComplianceLevel string    `json:"compliance_level,omitempty"`
	Sensitive       bool      `json:"sensitive"`
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	ErrorCode       string    `json:"error_code,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationMS      int64     `json:"duration_ms"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintOverlay prints the loading overlay in JSON format.
func (j *JSONPrinter) PrintOverlay(snap model.OverlaySnapshot, now time.Time) error {
	out := overlayOutput{
		IsLoading:           snap.IsLoading,
		GlobalProgress:      snap.GlobalProgress,
		TotalOperations:     snap.TotalOperations,
		CompletedOperations: snap.CompletedOperations,
		CancelledOperations: snap.CancelledOperations,
		Operations:          make([]operationOutput, 0, len(snap.Operations)),
	}

	for _, op := range snap.Operations {
		o := operationOutput{
			ID:              op.ID,
			Label:           op.Label,
			Category:        string(op.Category),
			ComplianceLevel: string(op.ComplianceLevel),
			Sensitive:       op.Sensitive,
			Progress:        op.Progress,
			StartTime:       op.StartTime.UTC(),
			ElapsedMS:       op.Elapsed(now).Milliseconds(),
			TimeoutMS:       op.Timeout.Milliseconds(),
			EstimatedTime:   op.EstimatedTime,
			Late:            model.IsRunningLate(op, now),
			Status:          string(op.Status),
		}
		if op.EndTime != nil {
			t := op.EndTime.UTC()
			o.EndTime = &t
		}
		out.Operations = append(out.Operations, o)
	}

	return j.encode(out)
}

// PrintDashboard prints the retry dashboard in JSON format.
func (j *JSONPrinter) PrintDashboard(snap model.DashboardSnapshot, _ time.Time) error {
	out := dashboardOutput{
		ActiveRetries:     snap.ActiveRetries,
		TotalRetries:      snap.TotalRetries,
		SuccessfulRetries: snap.SuccessfulRetries,
		FailedRetries:     snap.FailedRetries,
		CancelledRetries:  snap.CancelledRetries,
		SuccessRate:       snap.Stats.SuccessRate,
		AverageAttempts:   snap.Stats.AverageAttempts,
		CategoryStats:     map[string]int{},
		Pending:           make([]retryOutput, 0, len(snap.Pending)),
	}

	for c, n := range snap.Stats.CategoryStats {
		out.CategoryStats[string(c)] = n
	}

	for _, r := range snap.Pending {
		o := retryOutput{
			ID:          r.ID,
			Label:       r.Label,
			Category:    string(r.Category),
			Status:      string(r.Status),
			Attempts:    r.Attempts,
			MaxAttempts: r.MaxAttempts,
			CreatedAt:   r.CreatedAt.UTC(),
		}
		if r.LastError != nil {
			o.LastError = &retryErrorOutput{Code: r.LastError.Code, Message: r.LastError.Message}
		}
		if r.NextRetryAt != nil {
			t := r.NextRetryAt.UTC()
			o.NextRetryAt = &t
		}
		out.Pending = append(out.Pending, o)
	}

	return j.encode(out)
}

// PrintOutcomes prints the outcome history in JSON format.
func (j *JSONPrinter) PrintOutcomes(outcomes []model.Outcome) error {
	items := make([]outcomeOutput, 0, len(outcomes))
	for _, o := range outcomes {
		items = append(items, outcomeOutput{
			ID:              o.ID,
			Kind:            string(o.Kind),
			Label:           o.Label,
			Category:        string(o.Category),
			ComplianceLevel: string(o.ComplianceLevel),
			Sensitive:       o.Sensitive,
			Status:          o.Status,
			Attempts:        o.Attempts,
			ErrorCode:       o.ErrorCode,
			ErrorMessage:    o.ErrorMessage,
			StartedAt:       o.StartedAt.UTC(),
			EndedAt:         o.EndedAt.UTC(),
			DurationMS:      o.Duration().Milliseconds(),
		})
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
