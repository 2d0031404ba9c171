package model

import "time"

// BackoffKind is the kind of backoff used between retry attempts.
type BackoffKind string

const (
	BackoffKindExponential BackoffKind = "exponential"
	BackoffKindConstant    BackoffKind = "constant"
)

// Scenario is a set of synthetic units of work used to exercise the operation registry
// and the retry scheduler.
type Scenario struct {
	Name  string
	Units []ScenarioUnit
}

// ScenarioUnit is a synthetic unit of work.
type ScenarioUnit struct {
	Label           string
	Category        Category
	ComplianceLevel ComplianceLevel
	Sensitive       bool
	// Timeout is the advisory timeout of the tracked operation.
	Timeout       time.Duration
	EstimatedTime string
	// StartAfter delays the start of the unit.
	StartAfter time.Duration
	// Duration is how long every attempt takes.
	Duration time.Duration
	// Steps is the number of progress updates reported on every attempt, 0 makes the
	// operation indeterminate.
	Steps int
	// FailuresBeforeSuccess is the number of attempts that will fail before one succeeds,
	// negative means it never succeeds.
	FailuresBeforeSuccess int
	// PermanentFailure marks the failures as not retryable.
	PermanentFailure bool
	ErrorCode        string
	Retry            ScenarioRetryPolicy
}

// ScenarioRetryPolicy is the retry policy description of a scenario unit, zero values
// use the defaults.
type ScenarioRetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffKind
	Base        time.Duration
	Cap         time.Duration
	// Jitter is the jitter fraction, 0 uses the default and negative disables it.
	Jitter float64
}
