package detector

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/districtops/steward/pkg/config"
	"github.com/districtops/steward/pkg/log"
	"github.com/districtops/steward/pkg/types"
)

// Detector produces a structured diff between two statistics snapshots
type Detector interface {
	DetectChanges(districtID string, before, after *types.DistrictStatistics) (*types.ChangeSet, error)
}

// StatsDetector is the default field-level detector for district statistics
type StatsDetector struct {
	logger zerolog.Logger
}

// NewStatsDetector creates a new detector
func NewStatsDetector() *StatsDetector {
	return &StatsDetector{logger: log.WithComponent("detector")}
}

// DetectChanges diffs the cached snapshot against the current one. A nil
// before snapshot is treated as a zero baseline (first observation).
func (d *StatsDetector) DetectChanges(districtID string, before, after *types.DistrictStatistics) (*types.ChangeSet, error) {
	if after == nil {
		return nil, fmt.Errorf("no current snapshot for district %s", districtID)
	}
	if before == nil {
		before = &types.DistrictStatistics{DistrictID: districtID}
	}

	cs := &types.ChangeSet{
		DistrictID:         districtID,
		SourceDataDate:     after.AsOfDate,
		MembershipDelta:    after.MembershipCount - before.MembershipCount,
		ClubCountDelta:     after.ClubCount - before.ClubCount,
		PaidClubsDelta:     after.PaidClubs - before.PaidClubs,
		DistinguishedDelta: after.DistinguishedClubs - before.DistinguishedClubs,
	}
	cs.MembershipPercent = percentChange(cs.MembershipDelta, before.MembershipCount)
	cs.DistinguishedPercent = percentChange(cs.DistinguishedDelta, before.DistinguishedClubs)

	if cs.MembershipDelta != 0 {
		cs.ChangedFields = append(cs.ChangedFields, "membershipCount")
	}
	if cs.ClubCountDelta != 0 {
		cs.ChangedFields = append(cs.ChangedFields, "clubCount")
	}
	if cs.PaidClubsDelta != 0 {
		cs.ChangedFields = append(cs.ChangedFields, "paidClubs")
	}
	if cs.DistinguishedDelta != 0 {
		cs.ChangedFields = append(cs.ChangedFields, "distinguishedClubs")
	}
	cs.HasChanges = len(cs.ChangedFields) > 0

	d.logger.Debug().
		Str("district_id", districtID).
		Bool("has_changes", cs.HasChanges).
		Int("membership_delta", cs.MembershipDelta).
		Int("club_count_delta", cs.ClubCountDelta).
		Msg("change detection complete")

	return cs, nil
}

// percentChange returns the relative change in percent. A zero base with a
// non-zero delta counts as a 100% change.
func percentChange(delta, base int) float64 {
	if base == 0 {
		if delta == 0 {
			return 0
		}
		return 100
	}
	return float64(delta) / float64(base) * 100
}

// IsSignificant evaluates a change set against the configured thresholds
func IsSignificant(cs *types.ChangeSet, th config.Thresholds) bool {
	if cs == nil || !cs.HasChanges {
		return false
	}
	if math.Abs(cs.MembershipPercent) >= th.MembershipPercent && cs.MembershipDelta != 0 {
		return true
	}
	if abs(cs.ClubCountDelta) >= th.ClubCountAbsolute && cs.ClubCountDelta != 0 {
		return true
	}
	if math.Abs(cs.DistinguishedPercent) >= th.DistinguishedPercent && cs.DistinguishedDelta != 0 {
		return true
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
