package lib

import (
	"time"

	"github.com/slok/inflight/internal/app/track"
	"github.com/slok/inflight/internal/model"
	"github.com/slok/inflight/internal/operation"
	"github.com/slok/inflight/internal/retry"
)

// Category is the coarse classification of a unit of work. It drives the display
// priority and never the behavior.
type Category = model.Category

const (
	CategoryHealthcare = model.CategoryHealthcare
	CategoryCompliance = model.CategoryCompliance
	CategoryAuth       = model.CategoryAuth
	CategoryData       = model.CategoryData
	CategoryNetwork    = model.CategoryNetwork
	CategoryGeneral    = model.CategoryGeneral
)

// ComplianceLevel is the informational severity of a regulated operation.
type ComplianceLevel = model.ComplianceLevel

const (
	ComplianceLevelNone     = model.ComplianceLevelNone
	ComplianceLevelCritical = model.ComplianceLevelCritical
	ComplianceLevelHigh     = model.ComplianceLevelHigh
	ComplianceLevelMedium   = model.ComplianceLevelMedium
	ComplianceLevelLow      = model.ComplianceLevelLow
)

// Categories returns all the categories in display priority order.
func Categories() []Category { return model.Categories() }

// OperationStatus is the state of a tracked operation.
type OperationStatus = model.OperationStatus

const (
	OperationStatusActive    = model.OperationStatusActive
	OperationStatusCompleted = model.OperationStatusCompleted
	OperationStatusCancelled = model.OperationStatusCancelled
)

// Operation is a unit of work whose progress is displayed to the user.
type Operation = model.Operation

// RegisterOpts are the optional attributes of an overlay-only operation, see [Client.Register].
type RegisterOpts = operation.RegisterOptions

// OperationStats are the aggregated operation statistics.
type OperationStats = model.OperationStats

// OverlaySnapshot is the loading overlay state: the active operations and the aggregated progress.
type OverlaySnapshot = model.OverlaySnapshot

// IsRunningLate returns true when an active operation has exceeded its timeout.
func IsRunningLate(op Operation, now time.Time) bool { return model.IsRunningLate(op, now) }

// RetryStatus is the state of a retryable operation.
//
// The lifecycle is:
//
//	executing -> waiting -> executing -> ... -> succeeded | failed
//
// Any non terminal state can transition to cancelled.
type RetryStatus = model.RetryStatus

const (
	RetryStatusExecuting = model.RetryStatusExecuting
	RetryStatusWaiting   = model.RetryStatusWaiting
	RetryStatusSucceeded = model.RetryStatusSucceeded
	RetryStatusFailed    = model.RetryStatusFailed
	RetryStatusCancelled = model.RetryStatusCancelled
)

// RetryableOperation is a unit of work wrapped with automatic re-attempt on failure.
type RetryableOperation = model.RetryableOperation

// RetryError describes the most recent failure of a retryable operation.
type RetryError = model.RetryError

// RetryCounters are the raw retry tallies.
type RetryCounters = model.RetryCounters

// RetryStats are the derived retry statistics: success rate, average attempts and the
// pending retries per category.
type RetryStats = model.RetryStats

// DashboardSnapshot is the retry dashboard state: the counters, statistics and pending retries.
type DashboardSnapshot = model.DashboardSnapshot

// OutcomeKind is the kind of unit of work an outcome comes from.
type OutcomeKind = model.OutcomeKind

const (
	OutcomeKindOperation = model.OutcomeKindOperation
	OutcomeKindRetry     = model.OutcomeKindRetry
)

// Outcome is the recorded terminal result of an operation or a retryable operation.
type Outcome = model.Outcome

// Policy is the retry policy of a unit of work.
type Policy = retry.Policy

// Backoff returns the wait before the next attempt.
type Backoff = retry.Backoff

// ExponentialBackoff doubles the wait on every attempt up to a cap, with jitter.
type ExponentialBackoff = retry.ExponentialBackoff

// ConstantBackoff always waits the same time.
type ConstantBackoff = retry.ConstantBackoff

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy { return retry.DefaultPolicy() }

// ProgressFunc reports the progress (0-100) of the tracked work, an empty label keeps the current one.
type ProgressFunc = track.ProgressFunc

// Work is the tracked unit of work, it's called once per attempt. The context is cancelled
// when the work is cancelled.
type Work = track.Work

// TrackRequest describes a unit of work to track.
type TrackRequest = track.Request

// Tracked is a handle of tracked work, see [Client.Wait] and [Client.Cancel].
type Tracked = track.Response

// Permanent marks an error as not retryable, the work fails on the attempt that returned it.
func Permanent(err error) error { return retry.Permanent(err) }

// WithCode returns an error with a failure code (e.g: "rate_limited") that is reported
// as the retry error code.
func WithCode(code string, err error) error { return retry.WithCode(code, err) }
