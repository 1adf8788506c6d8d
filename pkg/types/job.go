package types

import (
	"time"

	"github.com/districtops/steward/pkg/config"
)

// ReconciliationJob tracks one reconciliation run for a (district, period)
// pair. The id is deterministic, so repeated starts for the same period are
// idempotent. Once Status leaves active the job is immutable except for the
// metadata timestamps set at the moment of transition.
type ReconciliationJob struct {
	ID            string                      `json:"id"`
	DistrictID    string                      `json:"districtId"`
	Period        string                      `json:"period"`
	Status        JobStatus                   `json:"status"`
	StartDate     time.Time                   `json:"startDate"`
	MaxEndDate    time.Time                   `json:"maxEndDate"`
	EndDate       *time.Time                  `json:"endDate,omitempty"`
	FinalizedDate *time.Time                  `json:"finalizedDate,omitempty"`
	Config        config.ReconciliationConfig `json:"config"`
	TriggeredBy   Trigger                     `json:"triggeredBy"`

	// CurrentDataDate is the date stamp of the most recently observed source
	// data, distinct from any wall-clock timestamp.
	CurrentDataDate *time.Time `json:"currentDataDate,omitempty"`

	Progress Progress `json:"progress"`
	Metadata Metadata `json:"metadata"`
}

// IsActive reports whether the job is still being monitored
func (j *ReconciliationJob) IsActive() bool {
	return j.Status == JobStatusActive
}
