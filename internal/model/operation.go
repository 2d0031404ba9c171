package model

import (
	"math"
	"time"
)

// OperationStatus is the lifecycle state of a tracked operation.
type OperationStatus string

const (
	OperationStatusActive    OperationStatus = "active"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// Operation is a tracked unit of in-flight asynchronous work with no implied retry behavior.
type Operation struct {
	ID              string
	Label           string
	Category        Category
	ComplianceLevel ComplianceLevel
	Sensitive       bool
	// Progress is nil when the operation progress is indeterminate, otherwise in [0,100].
	Progress  *float64
	StartTime time.Time
	// Timeout is advisory, it only classifies an operation as running late.
	Timeout       time.Duration
	EstimatedTime string
	Status        OperationStatus
	EndTime       *time.Time
}

// Indeterminate returns true when the operation has no numeric progress.
func (o Operation) Indeterminate() bool { return o.Progress == nil }

// ProgressValue returns the progress treating indeterminate as 0.
func (o Operation) ProgressValue() float64 {
	if o.Progress == nil {
		return 0
	}
	return *o.Progress
}

// Elapsed returns the time the operation has been running at now, or its total
// duration if it already ended.
func (o Operation) Elapsed(now time.Time) time.Duration {
	end := now
	if o.EndTime != nil {
		end = *o.EndTime
	}
	d := end.Sub(o.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// IsRunningLate classifies an operation as taking longer than expected. It's advisory
// only, nothing is cancelled based on it.
func IsRunningLate(op Operation, now time.Time) bool {
	if op.Timeout <= 0 || op.Status != OperationStatusActive {
		return false
	}
	return now.Sub(op.StartTime) > op.Timeout
}

// ClampProgress limits a progress value to [0,100].
func ClampProgress(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// OperationStats are the aggregated operation registry statistics.
type OperationStats struct {
	ActiveOperations    int
	CompletedOperations int
	// AverageDuration is computed over completed operations only, zero when there are none.
	AverageDuration time.Duration
}

// OverlaySnapshot is the read surface of the global loading overlay.
type OverlaySnapshot struct {
	IsLoading           bool
	Operations          []Operation
	GlobalProgress      float64
	TotalOperations     int
	CompletedOperations int
	CancelledOperations int
}

// GlobalProgress returns the mean progress of the operations. Indeterminate operations
// contribute 0 but still count in the divisor.
func GlobalProgress(ops []Operation) float64 {
	if len(ops) == 0 {
		return 0
	}
	var total float64
	for _, op := range ops {
		total += op.ProgressValue()
	}
	return total / float64(len(ops))
}
