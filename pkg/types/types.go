package types

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a reconciliation job
type JobStatus string

const (
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusFailed    JobStatus = "failed"
)

// Phase is the coarse-grained monitoring stage of a job, distinct from JobStatus
type Phase string

const (
	PhaseMonitoring  Phase = "monitoring"
	PhaseStabilizing Phase = "stabilizing"
	PhaseFinalizing  Phase = "finalizing"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Trigger records what initiated a reconciliation job
type Trigger string

const (
	TriggerAutomatic Trigger = "automatic"
	TriggerManual    Trigger = "manual"
)

// JobID derives the deterministic job identifier for a district and reporting
// period. Repeated starts for the same pair always map to the same id.
func JobID(districtID, period string) string {
	return fmt.Sprintf("recon-%s-%s", districtID, period)
}

// PeriodEnd returns the canonical end-of-month date for a period key
// formatted as "2006-01".
func PeriodEnd(period string) (time.Time, error) {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period %q: %w", period, err)
	}
	return start.AddDate(0, 1, -1), nil
}

// DistrictStatistics is one snapshot of the upstream membership feed for a
// district. AsOfDate is the date stamp of the underlying data, which lags
// behind the wall clock of whoever fetched it.
type DistrictStatistics struct {
	DistrictID         string    `json:"districtId"`
	AsOfDate           time.Time `json:"asOfDate"`
	MembershipCount    int       `json:"membershipCount"`
	ClubCount          int       `json:"clubCount"`
	PaidClubs          int       `json:"paidClubs"`
	DistinguishedClubs int       `json:"distinguishedClubs"`
}

// ChangeSet is the structured diff between two statistics snapshots
type ChangeSet struct {
	DistrictID           string    `json:"districtId"`
	SourceDataDate       time.Time `json:"sourceDataDate"`
	HasChanges           bool      `json:"hasChanges"`
	MembershipDelta      int       `json:"membershipDelta"`
	MembershipPercent    float64   `json:"membershipPercent"`
	ClubCountDelta       int       `json:"clubCountDelta"`
	PaidClubsDelta       int       `json:"paidClubsDelta"`
	DistinguishedDelta   int       `json:"distinguishedDelta"`
	DistinguishedPercent float64   `json:"distinguishedPercent"`
	ChangedFields        []string  `json:"changedFields,omitempty"`
}

// Progress tracks how far along a job is
type Progress struct {
	Phase                Phase `json:"phase"`
	CompletionPercentage int   `json:"completionPercentage"`
}

// Metadata carries bookkeeping timestamps for a job
type Metadata struct {
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	TriggeredBy Trigger   `json:"triggeredBy"`
}

// ReconciliationEntry records one cycle observation. Immutable once appended.
type ReconciliationEntry struct {
	ObservedAt     time.Time `json:"observedAt"`
	SourceDataDate time.Time `json:"sourceDataDate"`
	Changes        ChangeSet `json:"changes"`
	IsSignificant  bool      `json:"isSignificant"`
	CacheUpdated   bool      `json:"cacheUpdated"`
	Note           string    `json:"note,omitempty"`
}

// ReconciliationStatus is the derived view of where a job stands. It is
// recomputed from the job and timeline, never edited in place.
type ReconciliationStatus struct {
	Phase         Phase      `json:"phase"`
	DaysActive    int        `json:"daysActive"`
	DaysStable    int        `json:"daysStable"`
	NextCheckDate *time.Time `json:"nextCheckDate,omitempty"`
	Message       string     `json:"message"`
}

// ReconciliationTimeline holds the append-only history of cycle observations
// for one job. Entries are stored in append order; consumers that need
// chronological order must sort by entry date.
type ReconciliationTimeline struct {
	JobID      string                `json:"jobId"`
	DistrictID string                `json:"districtId"`
	Period     string                `json:"period"`
	Entries    []ReconciliationEntry `json:"entries"`
	Status     ReconciliationStatus  `json:"status"`
}
