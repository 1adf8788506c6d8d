package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/districtops/steward/pkg/types"
)

// TestMirrorJobLifecycle tests set, get and invalidate for jobs
func TestMirrorJobLifecycle(t *testing.T) {
	m := NewMirror()

	_, ok := m.Job("recon-D15-2025-06")
	assert.False(t, ok)

	job := &types.ReconciliationJob{
		ID:         "recon-D15-2025-06",
		DistrictID: "D15",
		Period:     "2025-06",
		Status:     types.JobStatusActive,
	}
	m.SetJob(job)
	assert.Equal(t, 1, m.Len())

	cached, ok := m.Job(job.ID)
	require.True(t, ok)
	assert.Same(t, job, cached)

	m.Invalidate(job.ID)
	_, ok = m.Job(job.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

// TestMirrorTimelineAndStatus tests the secondary maps
func TestMirrorTimelineAndStatus(t *testing.T) {
	m := NewMirror()
	jobID := "recon-D15-2025-06"

	timeline := &types.ReconciliationTimeline{JobID: jobID, DistrictID: "D15"}
	m.SetTimeline(timeline)

	status := &types.ReconciliationStatus{Phase: types.PhaseStabilizing, DaysStable: 2}
	m.SetStatus(jobID, status)

	gotTimeline, ok := m.Timeline(jobID)
	require.True(t, ok)
	assert.Same(t, timeline, gotTimeline)

	gotStatus, ok := m.Status(jobID)
	require.True(t, ok)
	assert.Same(t, status, gotStatus)

	// Invalidation drops all three maps at once
	m.Invalidate(jobID)
	_, ok = m.Timeline(jobID)
	assert.False(t, ok)
	_, ok = m.Status(jobID)
	assert.False(t, ok)
}

// TestMirrorLastWriterWins tests overwrite semantics
func TestMirrorLastWriterWins(t *testing.T) {
	m := NewMirror()

	first := &types.ReconciliationJob{ID: "recon-D15-2025-06", Status: types.JobStatusActive}
	second := &types.ReconciliationJob{ID: "recon-D15-2025-06", Status: types.JobStatusCompleted}

	m.SetJob(first)
	m.SetJob(second)

	cached, ok := m.Job("recon-D15-2025-06")
	require.True(t, ok)
	assert.Same(t, second, cached)
	assert.Equal(t, 1, m.Len())
}
