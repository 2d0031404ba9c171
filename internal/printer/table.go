package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/slok/inflight/internal/model"
)

// TablePrinter prints the in-flight work information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintOverlay prints the loading overlay summary and the active operations.
func (t *TablePrinter) PrintOverlay(snap model.OverlaySnapshot, now time.Time) error {
	loading := "no"
	if snap.IsLoading {
		loading = "yes"
	}

	fmt.Fprintf(t.writer, "Loading:    %s\n", loading)
	fmt.Fprintf(t.writer, "Progress:   %s %.0f%%\n", ProgressBar(snap.GlobalProgress), snap.GlobalProgress)
	fmt.Fprintf(t.writer, "Operations: %d total, %d completed, %d cancelled\n",
		snap.TotalOperations, snap.CompletedOperations, snap.CancelledOperations)

	if len(snap.Operations) == 0 {
		return nil
	}

	fmt.Fprintln(t.writer)
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tLABEL\tCATEGORY\tCOMPLIANCE\tPROGRESS\tELAPSED\tESTIMATED\tLATE")
	for _, op := range snap.Operations {
		label := op.Label
		if op.Sensitive {
			label += " (sensitive)"
		}

		late := "no"
		if model.IsRunningLate(op, now) {
			late = "yes"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			op.ID,
			label,
			op.Category,
			orDash(string(op.ComplianceLevel)),
			FormatProgress(op.Progress),
			FormatDuration(op.Elapsed(now)),
			orDash(op.EstimatedTime),
			late,
		)
	}

	return nil
}

// PrintDashboard prints the retry dashboard summary and the pending retries.
func (t *TablePrinter) PrintDashboard(snap model.DashboardSnapshot, now time.Time) error {
	fmt.Fprintf(t.writer, "Retries:    %d active, %d total, %d succeeded, %d failed, %d cancelled\n",
		snap.ActiveRetries, snap.TotalRetries, snap.SuccessfulRetries, snap.FailedRetries, snap.CancelledRetries)
	fmt.Fprintf(t.writer, "Success:    %.1f%%\n", snap.Stats.SuccessRate)
	fmt.Fprintf(t.writer, "Attempts:   %.2f average\n", snap.Stats.AverageAttempts)

	var byCategory []string
	for _, c := range model.Categories() {
		if n := snap.Stats.CategoryStats[c]; n > 0 {
			byCategory = append(byCategory, fmt.Sprintf("%s=%d", c, n))
		}
	}
	if len(byCategory) > 0 {
		fmt.Fprintf(t.writer, "Pending:    %s\n", strings.Join(byCategory, ", "))
	}

	if len(snap.Pending) == 0 {
		return nil
	}

	fmt.Fprintln(t.writer)
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tLABEL\tCATEGORY\tSTATUS\tATTEMPTS\tNEXT RETRY\tLAST ERROR")
	for _, r := range snap.Pending {
		next := "-"
		if r.Status == model.RetryStatusWaiting && r.NextRetryAt != nil {
			next = TimeUntil(*r.NextRetryAt, now)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.ID,
			r.Label,
			r.Category,
			r.Status,
			r.Attempts,
			r.MaxAttempts,
			next,
			lastError(r.LastError),
		)
	}

	return nil
}

// PrintOutcomes prints the outcome history in a table format.
func (t *TablePrinter) PrintOutcomes(outcomes []model.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tKIND\tLABEL\tCATEGORY\tSTATUS\tATTEMPTS\tDURATION\tERROR\tENDED")
	for _, o := range outcomes {
		attempts := "-"
		if o.Kind == model.OutcomeKindRetry {
			attempts = fmt.Sprintf("%d", o.Attempts)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID,
			o.Kind,
			o.Label,
			o.Category,
			o.Status,
			attempts,
			FormatDuration(o.Duration()),
			orDash(o.ErrorCode),
			FormatTimestamp(o.EndedAt),
		)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func lastError(e *model.RetryError) string {
	if e == nil {
		return "-"
	}
	return orDash(e.Message)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
