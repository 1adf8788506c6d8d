package orchestrator

import (
	"time"

	"github.com/districtops/steward/pkg/types"
)

// extensionWindow is how close to MaxEndDate a significant change must land
// before the monitoring window is pushed out.
const extensionWindow = 2 * 24 * time.Hour

// extensionDecision decides whether a just-observed significant change earns
// an automatic extension. Returns the days to grant, or zero with the reason
// the extension was declined. A burst of several late significant changes
// earns a longer extension than a single one, never less than 1 day and
// never more than the remaining policy headroom.
func extensionDecision(job *types.ReconciliationJob, timeline *types.ReconciliationTimeline, now time.Time) (int, string) {
	if !job.Config.AutoExtensionEnabled {
		return 0, "auto-extension disabled"
	}
	if job.MaxEndDate.Sub(now) > extensionWindow {
		return 0, "monitoring window end is not imminent"
	}

	// The triggering change itself must be recent; a stale timeline entry
	// must not extend the window.
	cutoff := now.Add(-extensionWindow)
	recentSignificant := 0
	for _, e := range timeline.Entries {
		if e.IsSignificant && e.ObservedAt.After(cutoff) {
			recentSignificant++
		}
	}
	if recentSignificant == 0 {
		return 0, "no significant change within the last 2 days"
	}

	remaining := job.Config.MaxExtensionDays - consumedExtensionDays(job)
	if remaining <= 0 {
		return 0, "extension limit reached"
	}

	grant := recentSignificant
	if grant < 3 {
		grant = 3
	}
	if grant > remaining {
		grant = remaining
	}
	if grant < 1 {
		grant = 1
	}
	return grant, ""
}
