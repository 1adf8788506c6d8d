package cache

import (
	"sync"

	"github.com/districtops/steward/pkg/types"
)

// Mirror is an in-memory read-through mirror of reconciliation state keyed by
// job id. The orchestrator populates it after storage reads and invalidates
// it on lifecycle transitions; writes are last-writer-wins.
type Mirror struct {
	mu        sync.RWMutex
	jobs      map[string]*types.ReconciliationJob
	timelines map[string]*types.ReconciliationTimeline
	statuses  map[string]*types.ReconciliationStatus
}

// NewMirror creates an empty mirror
func NewMirror() *Mirror {
	return &Mirror{
		jobs:      make(map[string]*types.ReconciliationJob),
		timelines: make(map[string]*types.ReconciliationTimeline),
		statuses:  make(map[string]*types.ReconciliationStatus),
	}
}

// Job returns the cached job for the id, if present
func (m *Mirror) Job(id string) (*types.ReconciliationJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

// SetJob caches a job
func (m *Mirror) SetJob(job *types.ReconciliationJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

// Timeline returns the cached timeline for the job id, if present
func (m *Mirror) Timeline(jobID string) (*types.ReconciliationTimeline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	timeline, ok := m.timelines[jobID]
	return timeline, ok
}

// SetTimeline caches a timeline
func (m *Mirror) SetTimeline(timeline *types.ReconciliationTimeline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timelines[timeline.JobID] = timeline
}

// Status returns the last computed status for the job id, if present
func (m *Mirror) Status(jobID string) (*types.ReconciliationStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[jobID]
	return status, ok
}

// SetStatus caches a computed status
func (m *Mirror) SetStatus(jobID string, status *types.ReconciliationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[jobID] = status
}

// Invalidate drops all cached state for the job id
func (m *Mirror) Invalidate(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	delete(m.timelines, jobID)
	delete(m.statuses, jobID)
}

// Len returns the number of cached jobs
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}
