// Package lib provides a Go SDK to track units of asynchronous work with a loading
// overlay and automatic retries.
//
// Every tracked unit of work is both an operation (progress, category, timeout) shown
// in the overlay and a retryable operation re-attempted with backoff when it fails.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	op, err := client.TrackAndWait(ctx, lib.TrackRequest{
//	    Label:    "Publish to Facebook",
//	    Category: lib.CategoryNetwork,
//	    Timeout:  10 * time.Second,
//	    Policy:   lib.Policy{MaxAttempts: 5},
//	    Work: func(ctx context.Context, report lib.ProgressFunc) error {
//	        report(50, "Uploading")
//	        return publish(ctx)
//	    },
//	})
//	fmt.Println(op.Status, op.Attempts)
//
// # Overlay and Dashboard
//
// [Client.Overlay] returns the active operations with the aggregated progress, and
// [Client.Dashboard] the retry counters, statistics and pending retries. Use
// [Client.SubscribeOverlay] and [Client.SubscribeDashboard] to be notified on changes.
//
// Operations without work or retries can be shown in the overlay with [Client.Register],
// reporting their progress with [Client.UpdateProgress] and ending them with
// [Client.Finish] or [Client.CancelOperation].
//
// # Retries
//
// The first attempt runs right away, the next ones wait for the [Backoff] delay of the
// [Policy]. Errors wrapped with [Permanent] are not retried, and errors created with
// [WithCode] report their code in [RetryError]. Retries can be cancelled at any moment
// with [Client.Cancel], [Client.CancelRetry] or [Client.CancelAll], the late results of
// cancelled work are ignored.
//
// # History
//
// The outcomes of the finished work are recorded in a SQLite database and can be listed
// with [Client.History]. Set [Config].DisableHistory to disable it.
//
// # Metrics
//
// Set [Config].MetricsRegisterer to expose Prometheus metrics of the outcomes and the
// live state.
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotValid]: Invalid input (e.g. a request without work).
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines.
package lib
