package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HostOutcome is the per-host result of a command run across several hosts.
// This mirrors fanout.Result to avoid circular imports.
type HostOutcome struct {
	Host     string
	Duration time.Duration
	Err      error
}

// SummaryRenderer formats multi-host results for terminal display.
type SummaryRenderer struct {
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
	hostStyle    lipgloss.Style
	mutedStyle   lipgloss.Style
}

// NewSummaryRenderer creates a new summary renderer with default styles.
func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{
		errorStyle:   lipgloss.NewStyle().Foreground(ColorError),
		successStyle: lipgloss.NewStyle().Foreground(ColorSuccess),
		hostStyle:    lipgloss.NewStyle().Foreground(ColorSecondary),
		mutedStyle:   lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// RenderSummary generates the summary printed after a multi-host run.
// Returns an empty string when there are no outcomes.
func RenderSummary(outcomes []HostOutcome) string {
	return NewSummaryRenderer().Render(outcomes)
}

// Render generates the formatted summary string.
func (r *SummaryRenderer) Render(outcomes []HostOutcome) string {
	if len(outcomes) == 0 {
		return ""
	}

	var sb strings.Builder
	failed := 0

	for _, o := range outcomes {
		symbol := r.successStyle.Render(SymbolSuccess)
		if o.Err != nil {
			symbol = r.errorStyle.Render(SymbolFail)
			failed++
		}
		sb.WriteString(fmt.Sprintf("%s %s %s\n",
			symbol,
			r.hostStyle.Render(o.Host),
			r.mutedStyle.Render(formatDuration(o.Duration)),
		))

		if o.Err != nil {
			// Structured errors span several lines
			for _, line := range strings.Split(strings.TrimSpace(o.Err.Error()), "\n") {
				sb.WriteString("    ")
				sb.WriteString(r.mutedStyle.Render(line))
				sb.WriteString("\n")
			}
		}
	}

	sb.WriteString("\n")
	hostWord := "host"
	if len(outcomes) != 1 {
		hostWord = "hosts"
	}
	if failed == 0 {
		sb.WriteString(r.successStyle.Render(fmt.Sprintf("%s %d %s succeeded", SymbolSuccess, len(outcomes), hostWord)))
	} else {
		sb.WriteString(r.errorStyle.Render(fmt.Sprintf("%s %d of %d %s failed", SymbolFail, failed, len(outcomes), hostWord)))
	}
	sb.WriteString("\n")

	return sb.String()
}

// formatDuration renders d the way the timing column expects: 0.3s, 12s, 2m5s.
func formatDuration(d time.Duration) string {
	switch {
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	default:
		return d.Truncate(time.Second).String()
	}
}
