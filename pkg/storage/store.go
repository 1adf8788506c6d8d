package storage

import (
	"errors"

	"github.com/districtops/steward/pkg/types"
)

var (
	// ErrJobNotFound is returned when no job exists for the given id
	ErrJobNotFound = errors.New("job not found")

	// ErrTimelineNotFound is returned when no timeline exists for the given job id
	ErrTimelineNotFound = errors.New("timeline not found")
)

// Store defines the interface for durable reconciliation state.
// Implemented by BoltDB-backed storage.
type Store interface {
	// Jobs
	GetJob(id string) (*types.ReconciliationJob, error)
	SaveJob(job *types.ReconciliationJob) error
	GetJobsByDistrict(districtID string) ([]*types.ReconciliationJob, error)

	// Timelines
	GetTimeline(jobID string) (*types.ReconciliationTimeline, error)
	SaveTimeline(timeline *types.ReconciliationTimeline) error

	// Flush guarantees previously issued writes are durable and visible
	// to subsequent reads.
	Flush() error

	Close() error
}
