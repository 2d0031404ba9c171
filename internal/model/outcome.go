package model

import (
	"fmt"
	"time"
)

// OutcomeKind is the kind of unit of work an outcome comes from.
type OutcomeKind string

const (
	OutcomeKindOperation OutcomeKind = "operation"
	OutcomeKindRetry     OutcomeKind = "retry"
)

// Outcome is the record of a finished unit of work.
type Outcome struct {
	ID              string
	Kind            OutcomeKind
	Label           string
	Category        Category
	ComplianceLevel ComplianceLevel
	Sensitive       bool
	// Status is the terminal operation or retry status.
	Status       string
	Attempts     int
	ErrorCode    string
	ErrorMessage string
	StartedAt    time.Time
	EndedAt      time.Time
}

// Duration returns how long the unit of work took.
func (o Outcome) Duration() time.Duration {
	d := o.EndedAt.Sub(o.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Validate validates the outcome.
func (o Outcome) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}

	switch o.Kind {
	case OutcomeKindOperation:
		switch OperationStatus(o.Status) {
		case OperationStatusCompleted, OperationStatusCancelled:
		default:
			return fmt.Errorf("operation outcome status %q is not terminal: %w", o.Status, ErrNotValid)
		}
	case OutcomeKindRetry:
		if !RetryStatus(o.Status).Terminal() {
			return fmt.Errorf("retry outcome status %q is not terminal: %w", o.Status, ErrNotValid)
		}
	default:
		return fmt.Errorf("unknown outcome kind %q: %w", o.Kind, ErrNotValid)
	}

	if !o.Category.Valid() {
		return fmt.Errorf("unknown category %q: %w", o.Category, ErrNotValid)
	}

	if o.StartedAt.IsZero() || o.EndedAt.IsZero() {
		return fmt.Errorf("start and end times are required: %w", ErrNotValid)
	}

	return nil
}

// OperationOutcome creates the outcome of a terminated operation.
func OperationOutcome(op Operation) Outcome {
	o := Outcome{
		ID:              op.ID,
		Kind:            OutcomeKindOperation,
		Label:           op.Label,
		Category:        op.Category,
		ComplianceLevel: op.ComplianceLevel,
		Sensitive:       op.Sensitive,
		Status:          string(op.Status),
		StartedAt:       op.StartTime,
		EndedAt:         op.StartTime,
	}
	if op.EndTime != nil {
		o.EndedAt = *op.EndTime
	}
	return o
}

// RetryOutcome creates the outcome of a terminated retryable operation.
func RetryOutcome(r RetryableOperation) Outcome {
	o := Outcome{
		ID:        r.ID,
		Kind:      OutcomeKindRetry,
		Label:     r.Label,
		Category:  r.Category,
		Status:    string(r.Status),
		Attempts:  r.Attempts,
		StartedAt: r.CreatedAt,
		EndedAt:   r.CreatedAt,
	}
	if r.EndTime != nil {
		o.EndedAt = *r.EndTime
	}
	if r.LastError != nil {
		o.ErrorCode = r.LastError.Code
		o.ErrorMessage = r.LastError.Message
	}
	return o
}
