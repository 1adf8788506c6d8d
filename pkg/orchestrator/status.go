package orchestrator

import (
	"fmt"
	"sort"
	"time"

	"github.com/districtops/steward/pkg/types"
)

// DaysActive counts whole days between the job's start and its end date, or
// now while the job is still running.
func DaysActive(job *types.ReconciliationJob, now time.Time) int {
	end := now
	if job.EndDate != nil {
		end = *job.EndDate
	}
	days := int(end.Sub(job.StartDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DaysStable counts the contiguous run of non-significant entries ending at
// the most recent observation. Entries are stored in append order but
// evaluated in reverse chronological order by entry date, so a late append
// of an older observation cannot skew the count.
func DaysStable(timeline *types.ReconciliationTimeline) int {
	if timeline == nil || len(timeline.Entries) == 0 {
		return 0
	}

	entries := make([]types.ReconciliationEntry, len(timeline.Entries))
	copy(entries, timeline.Entries)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ObservedAt.After(entries[j].ObservedAt)
	})

	stable := 0
	for _, e := range entries {
		if e.IsSignificant {
			break
		}
		stable++
	}
	return stable
}

// StabilityMet reports whether the job may be finalized: either the hard
// deadline has passed (finalize with whatever data exists) or enough
// consecutive stable checks have accumulated.
func StabilityMet(job *types.ReconciliationJob, timeline *types.ReconciliationTimeline, now time.Time) bool {
	if now.After(job.MaxEndDate) {
		return true
	}
	return DaysStable(timeline) >= job.Config.StabilityPeriodDays
}

// ComputeStatus derives the current status from a job and its timeline.
// For a non-active job the terminal state is mapped directly; no further
// monitoring occurs, so the stable count is not recomputed.
func ComputeStatus(job *types.ReconciliationJob, timeline *types.ReconciliationTimeline, now time.Time) *types.ReconciliationStatus {
	if !job.IsActive() {
		return terminalStatus(job, now)
	}

	stable := DaysStable(timeline)
	active := DaysActive(job, now)

	switch {
	case now.After(job.MaxEndDate):
		return &types.ReconciliationStatus{
			Phase:      types.PhaseFinalizing,
			DaysActive: active,
			DaysStable: stable,
			Message: fmt.Sprintf("maximum reconciliation window reached on %s; finalizing with current data",
				job.MaxEndDate.Format("2006-01-02")),
		}
	case stable >= job.Config.StabilityPeriodDays:
		return &types.ReconciliationStatus{
			Phase:      types.PhaseFinalizing,
			DaysActive: active,
			DaysStable: stable,
			Message:    fmt.Sprintf("data stable for %d consecutive checks; ready to finalize", stable),
		}
	case stable > 0:
		next := now.Add(time.Duration(job.Config.CheckFrequencyHours) * time.Hour)
		return &types.ReconciliationStatus{
			Phase:         types.PhaseStabilizing,
			DaysActive:    active,
			DaysStable:    stable,
			NextCheckDate: &next,
			Message: fmt.Sprintf("data stable for %d of %d required checks",
				stable, job.Config.StabilityPeriodDays),
		}
	default:
		next := now.Add(time.Duration(job.Config.CheckFrequencyHours) * time.Hour)
		return &types.ReconciliationStatus{
			Phase:         types.PhaseMonitoring,
			DaysActive:    active,
			NextCheckDate: &next,
			Message:       "monitoring for changes",
		}
	}
}

// terminalStatus maps a non-active job's status onto a timeline phase.
// Cancelled jobs surface as failed for timeline purposes.
func terminalStatus(job *types.ReconciliationJob, now time.Time) *types.ReconciliationStatus {
	var phase types.Phase
	var message string
	switch job.Status {
	case types.JobStatusCompleted:
		phase = types.PhaseCompleted
		message = fmt.Sprintf("period %s finalized", job.Period)
	case types.JobStatusCancelled:
		phase = types.PhaseFailed
		message = "reconciliation was cancelled"
	default:
		phase = types.PhaseFailed
		message = "reconciliation failed"
	}

	return &types.ReconciliationStatus{
		Phase:      phase,
		DaysActive: DaysActive(job, now),
		DaysStable: 0,
		Message:    message,
	}
}
