package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/districtops/steward/pkg/config"
	"github.com/districtops/steward/pkg/types"
)

// statusJob builds an active job started daysAgo days before testStart
func statusJob(cfg config.ReconciliationConfig, daysAgo int) *types.ReconciliationJob {
	start := testStart.AddDate(0, 0, -daysAgo)
	return &types.ReconciliationJob{
		ID:         "recon-D15-2025-06",
		DistrictID: "D15",
		Period:     "2025-06",
		Status:     types.JobStatusActive,
		StartDate:  start,
		MaxEndDate: start.AddDate(0, 0, cfg.MaxReconciliationDays),
		Config:     cfg,
	}
}

// entriesTimeline builds a timeline whose entries are one day apart ending at
// testStart, with significance given per entry in chronological order.
func entriesTimeline(significant ...bool) *types.ReconciliationTimeline {
	timeline := &types.ReconciliationTimeline{
		JobID:      "recon-D15-2025-06",
		DistrictID: "D15",
		Period:     "2025-06",
	}
	n := len(significant)
	for i, sig := range significant {
		timeline.Entries = append(timeline.Entries, types.ReconciliationEntry{
			ObservedAt:    testStart.AddDate(0, 0, i-n+1),
			IsSignificant: sig,
		})
	}
	return timeline
}

// TestDaysStable tests the contiguous stable run count
func TestDaysStable(t *testing.T) {
	tests := []struct {
		name     string
		timeline *types.ReconciliationTimeline
		want     int
	}{
		{
			name:     "nil timeline",
			timeline: nil,
			want:     0,
		},
		{
			name:     "no entries",
			timeline: entriesTimeline(),
			want:     0,
		},
		{
			name:     "all quiet",
			timeline: entriesTimeline(false, false, false, false),
			want:     4,
		},
		{
			name:     "latest entry significant",
			timeline: entriesTimeline(false, false, true),
			want:     0,
		},
		{
			name:     "run ends at the last significant entry",
			timeline: entriesTimeline(false, true, false, false),
			want:     2,
		},
		{
			name:     "only significant entries",
			timeline: entriesTimeline(true, true),
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysStable(tt.timeline))
		})
	}
}

// TestDaysStableOrdersByEntryDate tests that a late append of an older
// observation cannot inflate the run.
func TestDaysStableOrdersByEntryDate(t *testing.T) {
	timeline := entriesTimeline(false, false, false)

	// Append an out-of-order significant observation dated between the
	// first and second quiet entries.
	timeline.Entries = append(timeline.Entries, types.ReconciliationEntry{
		ObservedAt:    testStart.AddDate(0, 0, -2).Add(12 * time.Hour),
		IsSignificant: true,
	})

	// Chronologically: quiet, significant, quiet, quiet
	assert.Equal(t, 2, DaysStable(timeline))
}

// TestStabilityMet tests the two finalization gates
func TestStabilityMet(t *testing.T) {
	cfg := config.Default()
	cfg.StabilityPeriodDays = 3

	tests := []struct {
		name     string
		job      *types.ReconciliationJob
		timeline *types.ReconciliationTimeline
		now      time.Time
		want     bool
	}{
		{
			name:     "not enough stable checks",
			job:      statusJob(cfg, 5),
			timeline: entriesTimeline(false, false),
			now:      testStart,
			want:     false,
		},
		{
			name:     "stable run satisfied",
			job:      statusJob(cfg, 5),
			timeline: entriesTimeline(false, false, false),
			now:      testStart,
			want:     true,
		},
		{
			name:     "hard deadline passed with unstable data",
			job:      statusJob(cfg, 5),
			timeline: entriesTimeline(true),
			now:      testStart.AddDate(0, 0, 30),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StabilityMet(tt.job, tt.timeline, tt.now))
		})
	}
}

// TestComputeStatusPhasePriority tests the phase derivation order: the hard
// deadline wins over stability, stability over a partial run, and a partial
// run over plain monitoring.
func TestComputeStatusPhasePriority(t *testing.T) {
	cfg := config.Default()
	cfg.StabilityPeriodDays = 3

	tests := []struct {
		name          string
		job           *types.ReconciliationJob
		timeline      *types.ReconciliationTimeline
		now           time.Time
		wantPhase     types.Phase
		wantStable    int
		wantNextCheck bool
	}{
		{
			name:          "no observations yet",
			job:           statusJob(cfg, 0),
			timeline:      entriesTimeline(),
			now:           testStart,
			wantPhase:     types.PhaseMonitoring,
			wantStable:    0,
			wantNextCheck: true,
		},
		{
			name:          "partial stable run",
			job:           statusJob(cfg, 2),
			timeline:      entriesTimeline(false, false),
			now:           testStart,
			wantPhase:     types.PhaseStabilizing,
			wantStable:    2,
			wantNextCheck: true,
		},
		{
			name:       "stable run complete",
			job:        statusJob(cfg, 4),
			timeline:   entriesTimeline(false, false, false),
			now:        testStart,
			wantPhase:  types.PhaseFinalizing,
			wantStable: 3,
		},
		{
			name:       "deadline passed beats an unstable run",
			job:        statusJob(cfg, 25),
			timeline:   entriesTimeline(true),
			now:        testStart,
			wantPhase:  types.PhaseFinalizing,
			wantStable: 0,
		},
		{
			name:          "significant change resets to monitoring",
			job:           statusJob(cfg, 4),
			timeline:      entriesTimeline(false, false, true),
			now:           testStart,
			wantPhase:     types.PhaseMonitoring,
			wantStable:    0,
			wantNextCheck: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := ComputeStatus(tt.job, tt.timeline, tt.now)
			require.NotNil(t, status)
			assert.Equal(t, tt.wantPhase, status.Phase)
			assert.Equal(t, tt.wantStable, status.DaysStable)
			assert.NotEmpty(t, status.Message)
			if tt.wantNextCheck {
				require.NotNil(t, status.NextCheckDate)
				assert.True(t, tt.now.Add(24*time.Hour).Equal(*status.NextCheckDate))
			} else {
				assert.Nil(t, status.NextCheckDate)
			}
		})
	}
}

// TestComputeStatusTerminalJobs tests the terminal mapping
func TestComputeStatusTerminalJobs(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name      string
		status    types.JobStatus
		wantPhase types.Phase
	}{
		{"completed job", types.JobStatusCompleted, types.PhaseCompleted},
		{"cancelled job surfaces as failed", types.JobStatusCancelled, types.PhaseFailed},
		{"failed job", types.JobStatusFailed, types.PhaseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := statusJob(cfg, 10)
			job.Status = tt.status
			end := testStart.AddDate(0, 0, -1)
			job.EndDate = &end

			// Even a previously stable timeline reports zero once terminal
			status := ComputeStatus(job, entriesTimeline(false, false, false), testStart)
			assert.Equal(t, tt.wantPhase, status.Phase)
			assert.Equal(t, 0, status.DaysStable)
			assert.Equal(t, 9, status.DaysActive)
			assert.Nil(t, status.NextCheckDate)
		})
	}
}

// TestDaysActive tests elapsed-day accounting
func TestDaysActive(t *testing.T) {
	cfg := config.Default()

	t.Run("running job measures against now", func(t *testing.T) {
		job := statusJob(cfg, 6)
		assert.Equal(t, 6, DaysActive(job, testStart))
	})

	t.Run("ended job measures against its end date", func(t *testing.T) {
		job := statusJob(cfg, 6)
		end := job.StartDate.AddDate(0, 0, 4)
		job.EndDate = &end
		assert.Equal(t, 4, DaysActive(job, testStart))
	})

	t.Run("partial days floor to whole days", func(t *testing.T) {
		job := statusJob(cfg, 0)
		assert.Equal(t, 1, DaysActive(job, testStart.Add(36*time.Hour)))
	})

	t.Run("clock skew never goes negative", func(t *testing.T) {
		job := statusJob(cfg, 0)
		assert.Equal(t, 0, DaysActive(job, testStart.Add(-48*time.Hour)))
	})
}
