package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/districtops/steward/pkg/alerts"
	"github.com/districtops/steward/pkg/cache"
	"github.com/districtops/steward/pkg/config"
	"github.com/districtops/steward/pkg/detector"
	"github.com/districtops/steward/pkg/orchestrator"
	"github.com/districtops/steward/pkg/propagate"
	"github.com/districtops/steward/pkg/resilience"
	"github.com/districtops/steward/pkg/storage"
	"github.com/districtops/steward/pkg/types"
)

// memSource serves scripted snapshots per district
type memSource struct {
	mu         sync.Mutex
	current    map[string]*types.DistrictStatistics
	cached     map[string]*types.DistrictStatistics
	currentErr error
	calls      int
}

func newMemSource() *memSource {
	return &memSource{
		current: make(map[string]*types.DistrictStatistics),
		cached:  make(map[string]*types.DistrictStatistics),
	}
}

func (s *memSource) Current(districtID string) (*types.DistrictStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.currentErr != nil {
		return nil, s.currentErr
	}
	return s.current[districtID], nil
}

func (s *memSource) Cached(districtID string) (*types.DistrictStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached[districtID], nil
}

func (s *memSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestOrchestrator(t *testing.T, store storage.Store, cfg config.ReconciliationConfig) *orchestrator.Orchestrator {
	t.Helper()

	resCfg := resilience.Config{
		MaxRetries:       1,
		InitialInterval:  time.Millisecond,
		MaxInterval:      5 * time.Millisecond,
		FailureThreshold: 100,
		RecoveryTimeout:  time.Minute,
		MonitoringWindow: time.Minute,
		PermanentErrors:  []error{storage.ErrJobNotFound, storage.ErrTimelineNotFound},
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:    store,
		Cache:    cache.NewMirror(),
		Detector: detector.NewStatsDetector(),
		Updater:  propagate.NewMemoryUpdater(),
		Executor: resilience.NewExecutor(resCfg),
		Alerts:   alerts.NewManager(),
		Config:   config.NewService(cfg),
	})
	require.NoError(t, err)
	return orch
}

func stats(districtID string, membership int) *types.DistrictStatistics {
	return &types.DistrictStatistics{
		DistrictID:      districtID,
		AsOfDate:        time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		MembershipCount: membership,
		ClubCount:       50,
	}
}

// TestTickProcessesAndFinalizes tests the full path through one tick: the
// cycle runs, the phase reaches finalizing, and the scheduler finalizes.
func TestTickProcessesAndFinalizes(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	cfg := config.Default()
	cfg.StabilityPeriodDays = 1
	orch := newTestOrchestrator(t, store, cfg)

	job, err := orch.StartJob("D15", "2025-06", nil, types.TriggerAutomatic)
	require.NoError(t, err)

	source := newMemSource()
	source.current["D15"] = stats("D15", 1000)
	source.cached["D15"] = stats("D15", 1000)

	s := New(orch, store, source, []string{"D15"}, time.Hour)
	s.tick()

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, stored.Status)
	require.NotNil(t, stored.FinalizedDate)

	timeline, err := store.GetTimeline(job.ID)
	require.NoError(t, err)
	require.Len(t, timeline.Entries, 1)
	assert.False(t, timeline.Entries[0].IsSignificant)
}

// TestTickLeavesUnstableJobsRunning tests that a changing feed keeps the job
// in monitoring.
func TestTickLeavesUnstableJobsRunning(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	cfg := config.Default()
	cfg.StabilityPeriodDays = 1
	orch := newTestOrchestrator(t, store, cfg)

	job, err := orch.StartJob("D15", "2025-06", nil, types.TriggerAutomatic)
	require.NoError(t, err)

	source := newMemSource()
	source.current["D15"] = stats("D15", 1100)
	source.cached["D15"] = stats("D15", 1000)

	s := New(orch, store, source, []string{"D15"}, time.Hour)
	s.tick()

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusActive, stored.Status)

	timeline, err := store.GetTimeline(job.ID)
	require.NoError(t, err)
	require.Len(t, timeline.Entries, 1)
	assert.True(t, timeline.Entries[0].IsSignificant)
}

// TestTickSkipsInactiveJobs tests that terminal jobs never trigger a fetch
func TestTickSkipsInactiveJobs(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	orch := newTestOrchestrator(t, store, config.Default())

	job, err := orch.StartJob("D15", "2025-06", nil, types.TriggerAutomatic)
	require.NoError(t, err)
	require.NoError(t, orch.CancelJob(job.ID))

	source := newMemSource()
	s := New(orch, store, source, []string{"D15"}, time.Hour)
	s.tick()

	assert.Zero(t, source.callCount())
}

// TestTickAbsorbsSourceFailures tests that a broken feed for one district
// leaves its job untouched and does not panic the loop.
func TestTickAbsorbsSourceFailures(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	orch := newTestOrchestrator(t, store, config.Default())

	job, err := orch.StartJob("D15", "2025-06", nil, types.TriggerAutomatic)
	require.NoError(t, err)

	source := newMemSource()
	source.currentErr = errors.New("feed timeout")

	s := New(orch, store, source, []string{"D15"}, time.Hour)
	assert.NotPanics(t, func() { s.tick() })

	timeline, err := store.GetTimeline(job.ID)
	require.NoError(t, err)
	assert.Empty(t, timeline.Entries)
}

// TestStartStop tests loop lifecycle
func TestStartStop(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	orch := newTestOrchestrator(t, store, config.Default())
	s := New(orch, store, newMemSource(), nil, 10*time.Millisecond)

	s.Start()
	time.Sleep(30 * time.Millisecond)
	assert.NotPanics(t, s.Stop)
}
