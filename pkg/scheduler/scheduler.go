package scheduler

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/districtops/steward/pkg/log"
	"github.com/districtops/steward/pkg/orchestrator"
	"github.com/districtops/steward/pkg/storage"
	"github.com/districtops/steward/pkg/types"
)

// SnapshotSource supplies the current and previously cached statistics
// snapshots for a district. How the data is fetched from the upstream
// source is the implementation's concern.
type SnapshotSource interface {
	Current(districtID string) (*types.DistrictStatistics, error)
	Cached(districtID string) (*types.DistrictStatistics, error)
}

// Scheduler drives reconciliation cycles for all active jobs on a fixed
// interval and finalizes jobs whose phase has reached finalizing.
type Scheduler struct {
	orch      *orchestrator.Orchestrator
	store     storage.Store
	source    SnapshotSource
	districts []string
	interval  time.Duration
	stopCh    chan struct{}
	logger    zerolog.Logger
}

// New creates a scheduler for the given districts
func New(orch *orchestrator.Orchestrator, store storage.Store, source SnapshotSource, districts []string, interval time.Duration) *Scheduler {
	return &Scheduler{
		orch:      orch,
		store:     store,
		source:    source,
		districts: districts,
		interval:  interval,
		stopCh:    make(chan struct{}),
		logger:    log.WithComponent("scheduler"),
	}
}

// Start begins the scheduling loop
func (s *Scheduler) Start() {
	go s.run()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// run is the main scheduling loop
func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start, then on every tick
	s.tick()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopCh:
			return
		}
	}
}

// tick processes one cycle for every active job. Per-job errors are logged
// and absorbed so one broken district cannot stall the rest.
func (s *Scheduler) tick() {
	for _, districtID := range s.districts {
		jobs, err := s.store.GetJobsByDistrict(districtID)
		if err != nil {
			s.logger.Error().Err(err).Str("district_id", districtID).Msg("failed to list jobs")
			continue
		}

		for _, job := range jobs {
			if !job.IsActive() {
				continue
			}
			s.processJob(job)
		}
	}
}

func (s *Scheduler) processJob(job *types.ReconciliationJob) {
	current, err := s.source.Current(job.DistrictID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to fetch current snapshot")
		return
	}
	cached, err := s.source.Cached(job.DistrictID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to fetch cached snapshot")
		return
	}

	status, err := s.orch.ProcessCycle(job.ID, current, cached)
	if err != nil {
		if errors.Is(err, orchestrator.ErrCycleInFlight) {
			s.logger.Debug().Str("job_id", job.ID).Msg("previous cycle still running, skipping")
			return
		}
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("cycle failed")
		return
	}

	if status.Phase == types.PhaseFinalizing {
		if err := s.orch.FinalizeJob(job.ID); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("finalization failed")
			return
		}
		s.logger.Info().Str("job_id", job.ID).Str("period", job.Period).Msg("job finalized by scheduler")
	}
}
