package printer

import (
	"fmt"
	"strings"
)

const progressBarWidth = 20

// FormatProgress returns the progress percentage, or "-" for indeterminate progress.
// Examples: "-", "0%", "42%", "100%".
func FormatProgress(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *p)
}

// ProgressBar returns a fixed width text progress bar.
// Example: "[########------------]".
func ProgressBar(p float64) string {
	p = max(0, min(100, p))
	filled := int(p * progressBarWidth / 100)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled) + "]"
}
