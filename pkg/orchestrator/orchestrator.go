package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/districtops/steward/pkg/alerts"
	"github.com/districtops/steward/pkg/cache"
	"github.com/districtops/steward/pkg/config"
	"github.com/districtops/steward/pkg/detector"
	"github.com/districtops/steward/pkg/log"
	"github.com/districtops/steward/pkg/metrics"
	"github.com/districtops/steward/pkg/propagate"
	"github.com/districtops/steward/pkg/resilience"
	"github.com/districtops/steward/pkg/storage"
	"github.com/districtops/steward/pkg/types"
)

// storageDependency keys the circuit breaker for the reconciliation store
const storageDependency = "reconciliation-storage"

var (
	// ErrStabilityNotMet is returned when finalization is requested before
	// the stability window has been satisfied
	ErrStabilityNotMet = errors.New("stability period not met")

	// ErrExtensionLimit is returned when a job has no extension headroom left
	ErrExtensionLimit = errors.New("extension limit reached")

	// ErrNegativeExtension is returned for a negative extension request
	ErrNegativeExtension = errors.New("extension days must not be negative")

	// ErrCycleInFlight is returned when a cycle is requested for a job whose
	// previous cycle has not finished
	ErrCycleInFlight = errors.New("cycle already in flight for job")

	// ErrInvalidConfig is returned when a config override fails validation
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Deps are the collaborators the orchestrator composes. All are required
// except Clock, which defaults to time.Now.
type Deps struct {
	Store    storage.Store
	Cache    *cache.Mirror
	Detector detector.Detector
	Updater  propagate.Updater
	Executor *resilience.Executor
	Alerts   *alerts.Manager
	Config   *config.Service
	Clock    func() time.Time
}

// Orchestrator owns the reconciliation job lifecycle: creation, per-cycle
// change evaluation, automatic extension, stability-based finalization and
// cancellation.
type Orchestrator struct {
	store    storage.Store
	cache    *cache.Mirror
	detector detector.Detector
	updater  propagate.Updater
	exec     *resilience.Executor
	alerts   *alerts.Manager
	cfg      *config.Service
	clock    func() time.Time
	logger   zerolog.Logger

	// inFlight guards against two concurrent cycles interleaving the
	// read-modify-write of the same timeline.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates an orchestrator from its collaborators
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("orchestrator requires a store")
	case deps.Cache == nil:
		return nil, errors.New("orchestrator requires a cache mirror")
	case deps.Detector == nil:
		return nil, errors.New("orchestrator requires a change detector")
	case deps.Updater == nil:
		return nil, errors.New("orchestrator requires a cache updater")
	case deps.Executor == nil:
		return nil, errors.New("orchestrator requires a resilience executor")
	case deps.Alerts == nil:
		return nil, errors.New("orchestrator requires an alert manager")
	case deps.Config == nil:
		return nil, errors.New("orchestrator requires a config service")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Orchestrator{
		store:    deps.Store,
		cache:    deps.Cache,
		detector: deps.Detector,
		updater:  deps.Updater,
		exec:     deps.Executor,
		alerts:   deps.Alerts,
		cfg:      deps.Config,
		clock:    clock,
		logger:   log.WithComponent("orchestrator"),
		inFlight: make(map[string]struct{}),
	}, nil
}

// StartJob begins reconciliation for a district's reporting period. Starting
// an already-active period returns the existing job unchanged.
func (o *Orchestrator) StartJob(districtID, period string, override *config.Override, trigger types.Trigger) (*types.ReconciliationJob, error) {
	effective := o.cfg.Current()
	if override != nil {
		result := config.Validate(override, effective)
		if !result.IsValid {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, result.Errors)
		}
		for _, w := range result.Warnings {
			o.logger.Warn().Str("district_id", districtID).Str("warning", w).Msg("config override warning")
		}
		effective = *result.Validated
	}

	// Make prior writes visible before scanning for an existing job
	if err := o.store.Flush(); err != nil {
		return nil, fmt.Errorf("flushing storage before job scan: %w", err)
	}

	existing, err := o.store.GetJobsByDistrict(districtID)
	if err != nil {
		return nil, fmt.Errorf("scanning jobs for district %s: %w", districtID, err)
	}
	for _, j := range existing {
		if j.Period == period && j.IsActive() {
			o.logger.Info().
				Str("job_id", j.ID).
				Str("period", period).
				Msg("reconciliation already active, returning existing job")
			return j, nil
		}
	}

	now := o.clock()
	job := &types.ReconciliationJob{
		ID:          types.JobID(districtID, period),
		DistrictID:  districtID,
		Period:      period,
		Status:      types.JobStatusActive,
		StartDate:   now,
		MaxEndDate:  now.AddDate(0, 0, effective.MaxReconciliationDays),
		Config:      effective,
		TriggeredBy: trigger,
		Progress: types.Progress{
			Phase:                types.PhaseMonitoring,
			CompletionPercentage: 0,
		},
		Metadata: types.Metadata{
			CreatedAt:   now,
			UpdatedAt:   now,
			TriggeredBy: trigger,
		},
	}

	next := now.Add(time.Duration(effective.CheckFrequencyHours) * time.Hour)
	timeline := &types.ReconciliationTimeline{
		JobID:      job.ID,
		DistrictID: districtID,
		Period:     period,
		Status: types.ReconciliationStatus{
			Phase:         types.PhaseMonitoring,
			NextCheckDate: &next,
			Message:       "reconciliation monitoring started",
		},
	}

	if err := o.store.SaveJob(job); err != nil {
		return nil, fmt.Errorf("saving new job %s: %w", job.ID, err)
	}
	if err := o.store.SaveTimeline(timeline); err != nil {
		return nil, fmt.Errorf("saving new timeline %s: %w", job.ID, err)
	}
	o.cache.SetJob(job)
	o.cache.SetTimeline(timeline)
	o.cache.SetStatus(job.ID, &timeline.Status)

	metrics.JobsStarted.Inc()
	o.logger.Info().
		Str("job_id", job.ID).
		Str("district_id", districtID).
		Str("period", period).
		Str("triggered_by", string(trigger)).
		Time("max_end_date", job.MaxEndDate).
		Msg("reconciliation job started")

	return job, nil
}

// ExtendJob pushes the job's hard end date out by up to additionalDays.
// A request that exceeds the remaining headroom is clamped, not rejected;
// only a job with zero headroom left gets an error.
func (o *Orchestrator) ExtendJob(jobID string, additionalDays int) error {
	if additionalDays < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeExtension, additionalDays)
	}

	job, err := o.resolveJob(jobID)
	if err != nil {
		return err
	}
	if !job.IsActive() {
		o.logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).
			Msg("extension skipped, job is not active")
		return nil
	}
	if additionalDays == 0 {
		o.logger.Info().Str("job_id", jobID).Msg("extension skipped, zero days requested")
		return nil
	}

	consumed := consumedExtensionDays(job)
	remaining := job.Config.MaxExtensionDays - consumed
	if consumed+additionalDays > job.Config.MaxExtensionDays {
		if remaining <= 0 {
			return fmt.Errorf("%w: job %s already extended %d of %d days",
				ErrExtensionLimit, jobID, consumed, job.Config.MaxExtensionDays)
		}
		o.logger.Warn().
			Str("job_id", jobID).
			Int("requested", additionalDays).
			Int("granted", remaining).
			Msg("extension clamped to remaining headroom")
		additionalDays = remaining
	}

	now := o.clock()
	previousEnd := job.MaxEndDate
	previousUpdated := job.Metadata.UpdatedAt
	job.MaxEndDate = job.MaxEndDate.AddDate(0, 0, additionalDays)
	job.Metadata.UpdatedAt = now

	if err := o.store.SaveJob(job); err != nil {
		// The job pointer may be shared through the cache mirror; an
		// unsaved extension must not leak into later persists.
		job.MaxEndDate = previousEnd
		job.Metadata.UpdatedAt = previousUpdated
		return fmt.Errorf("saving extended job %s: %w", jobID, err)
	}
	o.cache.SetJob(job)

	metrics.ExtensionsGranted.Inc()
	metrics.ExtensionDaysGranted.Add(float64(additionalDays))
	o.logger.Info().
		Str("job_id", jobID).
		Int("days", additionalDays).
		Time("max_end_date", job.MaxEndDate).
		Msg("reconciliation window extended")

	return nil
}

// CancelJob stops an active job without finalizing its data
func (o *Orchestrator) CancelJob(jobID string) error {
	job, timeline, err := o.resolveState(jobID)
	if err != nil {
		return err
	}
	if !job.IsActive() {
		o.logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).
			Msg("cancel skipped, job is not active")
		return nil
	}

	now := o.clock()
	stable := DaysStable(timeline)

	job.Status = types.JobStatusCancelled
	job.EndDate = &now
	job.Metadata.UpdatedAt = now
	job.Progress.Phase = types.PhaseFailed

	timeline.Status = types.ReconciliationStatus{
		Phase:      types.PhaseFailed,
		DaysActive: DaysActive(job, now),
		DaysStable: stable,
		Message:    "reconciliation cancelled before the period was finalized",
	}

	if err := o.persistState(job, timeline); err != nil {
		return err
	}

	metrics.JobsCompleted.WithLabelValues("cancelled").Inc()
	metrics.StableDaysAtCompletion.Observe(float64(stable))
	o.logger.Info().Str("job_id", jobID).Int("days_stable", stable).Msg("reconciliation cancelled")

	return nil
}

// FinalizeJob freezes the period's data. It fails unless the stability window
// has been met or the hard deadline has passed.
func (o *Orchestrator) FinalizeJob(jobID string) error {
	job, timeline, err := o.resolveState(jobID)
	if err != nil {
		return err
	}
	if !job.IsActive() {
		o.logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).
			Msg("finalize skipped, job is not active")
		return nil
	}

	now := o.clock()
	stable := DaysStable(timeline)
	if !StabilityMet(job, timeline, now) {
		return fmt.Errorf("%w: %d of %d stable checks, hard deadline %s not reached",
			ErrStabilityNotMet, stable, job.Config.StabilityPeriodDays,
			job.MaxEndDate.Format("2006-01-02"))
	}

	job.Status = types.JobStatusCompleted
	job.EndDate = &now
	job.FinalizedDate = &now
	job.Metadata.UpdatedAt = now
	job.Progress.Phase = types.PhaseCompleted
	job.Progress.CompletionPercentage = 100

	timeline.Status = types.ReconciliationStatus{
		Phase:      types.PhaseCompleted,
		DaysActive: DaysActive(job, now),
		DaysStable: stable,
		Message:    fmt.Sprintf("period %s finalized after %d stable checks", job.Period, stable),
	}

	if err := o.persistState(job, timeline); err != nil {
		return err
	}

	metrics.JobsCompleted.WithLabelValues("completed").Inc()
	metrics.StableDaysAtCompletion.Observe(float64(stable))
	o.logger.Info().
		Str("job_id", jobID).
		Str("period", job.Period).
		Int("days_stable", stable).
		Msg("reconciliation finalized")

	return nil
}

// ExtensionInfo reports how much extension headroom a job has left.
// Unlike ExtendJob, CanExtend is a strict flag: it does not account for
// partial grants, only whether any headroom remains at all.
func (o *Orchestrator) ExtensionInfo(jobID string) (*ExtensionInfo, error) {
	job, err := o.resolveJob(jobID)
	if err != nil {
		return nil, err
	}

	consumed := consumedExtensionDays(job)
	remaining := job.Config.MaxExtensionDays - consumed
	if remaining < 0 {
		remaining = 0
	}

	return &ExtensionInfo{
		CurrentExtensionDays:   consumed,
		MaxExtensionDays:       job.Config.MaxExtensionDays,
		RemainingExtensionDays: remaining,
		CanExtend:              job.IsActive() && remaining > 0,
		AutoExtensionEnabled:   job.Config.AutoExtensionEnabled,
	}, nil
}

// ExtensionInfo describes a job's extension budget
type ExtensionInfo struct {
	CurrentExtensionDays   int  `json:"currentExtensionDays"`
	MaxExtensionDays       int  `json:"maxExtensionDays"`
	RemainingExtensionDays int  `json:"remainingExtensionDays"`
	CanExtend              bool `json:"canExtend"`
	AutoExtensionEnabled   bool `json:"autoExtensionEnabled"`
}

// Status returns the current derived status for a job
func (o *Orchestrator) Status(jobID string) (*types.ReconciliationStatus, error) {
	job, timeline, err := o.resolveState(jobID)
	if err != nil {
		return nil, err
	}
	status := ComputeStatus(job, timeline, o.clock())
	o.cache.SetStatus(jobID, status)
	return status, nil
}

// ValidateConfiguration validates a partial config against the current
// global policy without applying it
func (o *Orchestrator) ValidateConfiguration(override *config.Override) config.ValidationResult {
	return config.Validate(override, o.cfg.Current())
}

// resolveJob returns a job, cache first, then a resilient storage read
func (o *Orchestrator) resolveJob(jobID string) (*types.ReconciliationJob, error) {
	if job, ok := o.cache.Job(jobID); ok {
		return job, nil
	}

	var job *types.ReconciliationJob
	res := o.exec.Execute(storageDependency, "get-job", func() error {
		j, err := o.store.GetJob(jobID)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if !res.OK {
		return nil, fmt.Errorf("loading job %s: %w", jobID, res.Err)
	}

	o.cache.SetJob(job)
	return job, nil
}

// resolveState returns job and timeline together. On a cache miss both reads
// run through the resilience wrapper as a single attempt.
func (o *Orchestrator) resolveState(jobID string) (*types.ReconciliationJob, *types.ReconciliationTimeline, error) {
	job, jobOK := o.cache.Job(jobID)
	timeline, tlOK := o.cache.Timeline(jobID)
	if jobOK && tlOK {
		return job, timeline, nil
	}

	res := o.exec.Execute(storageDependency, "load-job-state", func() error {
		j, err := o.store.GetJob(jobID)
		if err != nil {
			return err
		}
		t, err := o.store.GetTimeline(jobID)
		if err != nil {
			return err
		}
		job, timeline = j, t
		return nil
	})
	if !res.OK {
		metrics.StorageFailures.Inc()
		o.alerts.Dispatch("orchestrator", alerts.SeverityHigh,
			fmt.Sprintf("failed to load reconciliation state for job %s", jobID), res.Err)
		return nil, nil, fmt.Errorf("loading state for job %s: %w", jobID, res.Err)
	}

	o.cache.SetJob(job)
	o.cache.SetTimeline(timeline)
	return job, timeline, nil
}

// persistState saves a job and timeline and refreshes the cache mirror
func (o *Orchestrator) persistState(job *types.ReconciliationJob, timeline *types.ReconciliationTimeline) error {
	if err := o.store.SaveJob(job); err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	if err := o.store.SaveTimeline(timeline); err != nil {
		return fmt.Errorf("saving timeline %s: %w", timeline.JobID, err)
	}
	o.cache.SetJob(job)
	o.cache.SetTimeline(timeline)
	o.cache.SetStatus(job.ID, &timeline.Status)
	return nil
}

// consumedExtensionDays computes how many extension days the job has already
// been granted, derived from how far MaxEndDate sits past the original window.
func consumedExtensionDays(job *types.ReconciliationJob) int {
	baseline := job.StartDate.AddDate(0, 0, job.Config.MaxReconciliationDays)
	days := int(job.MaxEndDate.Sub(baseline).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
