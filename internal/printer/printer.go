package printer

import (
	"time"

	"github.com/slok/inflight/internal/model"
)

// Printer knows how to print the in-flight work information in different formats.
type Printer interface {
	PrintOverlay(snap model.OverlaySnapshot, now time.Time) error
	PrintDashboard(snap model.DashboardSnapshot, now time.Time) error
	PrintOutcomes(outcomes []model.Outcome) error
	PrintMessage(msg string) error
}

var (
	_ Printer = &TablePrinter{}
	_ Printer = &JSONPrinter{}
)
