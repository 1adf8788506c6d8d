package orchestrator

import (
	"fmt"

	"github.com/districtops/steward/pkg/alerts"
	"github.com/districtops/steward/pkg/detector"
	"github.com/districtops/steward/pkg/metrics"
	"github.com/districtops/steward/pkg/types"
)

// ProcessCycle runs one scheduled reconciliation check for a job: detect
// changes between the cached and current snapshots, propagate updated data
// downstream, record the observation, and recompute status. At most one
// cycle may be in flight per job id.
//
// Failure semantics: detector errors and the final persistence abort the
// cycle; downstream propagation and auto-extension failures are absorbed and
// only degrade the status message.
func (o *Orchestrator) ProcessCycle(jobID string, current, cached *types.DistrictStatistics) (*types.ReconciliationStatus, error) {
	if !o.beginCycle(jobID) {
		return nil, fmt.Errorf("%w: %s", ErrCycleInFlight, jobID)
	}
	defer o.endCycle(jobID)

	timer := metrics.NewTimer()
	status, err := o.processCycle(jobID, current, cached)
	timer.ObserveDuration(metrics.CycleDuration)

	if err != nil {
		metrics.CyclesProcessed.WithLabelValues("error").Inc()
	} else {
		metrics.CyclesProcessed.WithLabelValues("ok").Inc()
	}
	return status, err
}

func (o *Orchestrator) processCycle(jobID string, current, cached *types.DistrictStatistics) (*types.ReconciliationStatus, error) {
	job, timeline, err := o.resolveState(jobID)
	if err != nil {
		return nil, err
	}

	now := o.clock()

	// Terminal jobs are not monitored further
	if !job.IsActive() {
		status := terminalStatus(job, now)
		o.cache.SetStatus(jobID, status)
		return status, nil
	}

	changes, err := o.detector.DetectChanges(job.DistrictID, cached, current)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("change detection failed")
		o.alerts.Dispatch("orchestrator", alerts.SeverityMedium,
			fmt.Sprintf("change detection failed for job %s", jobID), err)
		return nil, fmt.Errorf("detecting changes for job %s: %w", jobID, err)
	}

	significant := detector.IsSignificant(changes, job.Config.Thresholds)

	cacheUpdated := false
	if changes.HasChanges {
		cacheUpdated = o.propagateChanges(job, current)
	}

	entry := types.ReconciliationEntry{
		ObservedAt:     now,
		SourceDataDate: changes.SourceDataDate,
		Changes:        *changes,
		IsSignificant:  significant,
		CacheUpdated:   cacheUpdated,
	}
	timeline.Entries = append(timeline.Entries, entry)

	job.CurrentDataDate = &changes.SourceDataDate
	job.Metadata.UpdatedAt = now

	status := ComputeStatus(job, timeline, now)

	if significant && job.Config.AutoExtensionEnabled {
		o.maybeAutoExtend(job, timeline, status)
	}
	job.Progress.Phase = status.Phase

	timeline.Status = *status
	res := o.exec.Execute(storageDependency, "save-cycle-results", func() error {
		if err := o.store.SaveJob(job); err != nil {
			return err
		}
		return o.store.SaveTimeline(timeline)
	})
	if !res.OK {
		metrics.StorageFailures.Inc()
		o.alerts.Dispatch("orchestrator", alerts.SeverityHigh,
			fmt.Sprintf("failed to persist cycle results for job %s", jobID), res.Err)
		return nil, fmt.Errorf("persisting cycle results for job %s: %w", jobID, res.Err)
	}

	o.cache.SetJob(job)
	o.cache.SetTimeline(timeline)
	o.cache.SetStatus(jobID, status)

	if significant {
		metrics.SignificantChanges.Inc()
	}
	o.logger.Info().
		Str("job_id", jobID).
		Bool("has_changes", changes.HasChanges).
		Bool("significant", significant).
		Bool("cache_updated", cacheUpdated).
		Str("phase", string(status.Phase)).
		Int("days_stable", status.DaysStable).
		Msg("reconciliation cycle processed")

	return status, nil
}

// propagateChanges pushes the new snapshot into the downstream caches.
// Propagation is best-effort: a returned failure is alerted at medium
// severity, a panic at high severity, and neither aborts the cycle.
func (o *Orchestrator) propagateChanges(job *types.ReconciliationJob, current *types.DistrictStatistics) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PropagationFailures.Inc()
			o.alerts.Dispatch("orchestrator", alerts.SeverityHigh,
				fmt.Sprintf("cache updater panicked for job %s: %v", job.ID, r), nil)
			ok = false
		}
	}()

	periodEnd, err := types.PeriodEnd(job.Period)
	if err != nil {
		metrics.PropagationFailures.Inc()
		o.alerts.Dispatch("orchestrator", alerts.SeverityMedium,
			fmt.Sprintf("cannot resolve period end for job %s", job.ID), err)
		return false
	}

	if err := o.updater.PropagateUpdate(job.DistrictID, periodEnd, current); err != nil {
		metrics.PropagationFailures.Inc()
		o.alerts.Dispatch("orchestrator", alerts.SeverityMedium,
			fmt.Sprintf("downstream cache update failed for job %s", job.ID), err)
		return false
	}
	return true
}

// maybeAutoExtend evaluates the extension heuristic after a significant
// change. A granted extension is a separate persisted mutation, so the
// job's end date and metadata are reloaded from storage afterwards.
// Extension failures never abort the cycle.
func (o *Orchestrator) maybeAutoExtend(job *types.ReconciliationJob, timeline *types.ReconciliationTimeline, status *types.ReconciliationStatus) {
	now := o.clock()
	days, reason := extensionDecision(job, timeline, now)
	if days == 0 {
		if reason != "" {
			o.logger.Debug().Str("job_id", job.ID).Str("reason", reason).Msg("auto-extension declined")
		}
		return
	}

	if err := o.ExtendJob(job.ID, days); err != nil {
		o.alerts.Dispatch("orchestrator", alerts.SeverityMedium,
			fmt.Sprintf("auto-extension failed for job %s", job.ID), err)
		status.Message = fmt.Sprintf("%s (auto-extension failed)", status.Message)
		return
	}

	reloaded, err := o.store.GetJob(job.ID)
	if err == nil {
		job.MaxEndDate = reloaded.MaxEndDate
		job.Metadata = reloaded.Metadata
	}
	status.Message = fmt.Sprintf("monitoring window extended by %d days after significant change", days)
}

// beginCycle marks a job as having a cycle in flight. Returns false when one
// is already running.
func (o *Orchestrator) beginCycle(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[jobID]; busy {
		return false
	}
	o.inFlight[jobID] = struct{}{}
	return true
}

func (o *Orchestrator) endCycle(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, jobID)
}
