package fanout

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/rig/internal/ui"
)

// Outcomes converts host results to the form the summary renderer takes.
func (r *Result) Outcomes() []ui.HostOutcome {
	outcomes := make([]ui.HostOutcome, len(r.Hosts))
	for i, h := range r.Hosts {
		outcomes[i] = ui.HostOutcome{
			Host:     h.Host,
			Duration: h.Duration,
			Err:      h.Error,
		}
	}
	return outcomes
}

// RenderSummary prints the per-host summary to w.
func RenderSummary(w io.Writer, result *Result) {
	if result == nil {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, ui.RenderSummary(result.Outcomes()))
}
