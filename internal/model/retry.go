package model

import (
	"fmt"
	"time"
)

// RetryStatus is the state of a retryable operation.
type RetryStatus string

const (
	RetryStatusExecuting RetryStatus = "executing"
	RetryStatusWaiting   RetryStatus = "waiting"
	RetryStatusSucceeded RetryStatus = "succeeded"
	RetryStatusFailed    RetryStatus = "failed"
	RetryStatusCancelled RetryStatus = "cancelled"
)

// Terminal returns true when no further transition can happen from the status.
func (s RetryStatus) Terminal() bool {
	switch s {
	case RetryStatusSucceeded, RetryStatusFailed, RetryStatusCancelled:
		return true
	}
	return false
}

// RetryError describes the most recent failure of a retryable operation.
type RetryError struct {
	Code    string
	Message string
}

func (e RetryError) String() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// RetryableOperation is a unit of work wrapped with automatic re-attempt on failure.
type RetryableOperation struct {
	ID          string
	Label       string
	Category    Category
	Attempts    int
	MaxAttempts int
	LastError   *RetryError
	// NextRetryAt is only set while waiting for the next attempt.
	NextRetryAt *time.Time
	Status      RetryStatus
	CreatedAt   time.Time
	EndTime     *time.Time
}

// RetryCounters are the raw retry scheduler tallies.
type RetryCounters struct {
	ActiveRetries     int
	TotalRetries      int
	SuccessfulRetries int
	FailedRetries     int
	CancelledRetries  int
}

// RetryStats are the derived retry scheduler statistics.
type RetryStats struct {
	// SuccessRate is a percentage in [0,100], 0 when nothing has been scheduled.
	SuccessRate float64
	// AverageAttempts is the mean attempts of succeeded and failed retries, cancelled
	// retries are excluded.
	AverageAttempts float64
	// CategoryStats counts the currently pending retries per category.
	CategoryStats map[Category]int
}

// SuccessRate returns the success percentage without dividing by zero.
func SuccessRate(successful, total int) float64 {
	if total <= 0 {
		return 0
	}
	rate := float64(successful) / float64(total) * 100
	if rate > 100 {
		return 100
	}
	return rate
}

// DashboardSnapshot is the read surface of the retry dashboard.
type DashboardSnapshot struct {
	RetryCounters
	Pending []RetryableOperation
	Stats   RetryStats
}
