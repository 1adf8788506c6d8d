package propagate

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/districtops/steward/pkg/log"
	"github.com/districtops/steward/pkg/types"
)

// Updater pushes freshly observed statistics into the caches downstream
// consumers read from. Implementations report failure through the returned
// error; the orchestrator treats propagation as best-effort and never lets
// it abort a cycle.
type Updater interface {
	PropagateUpdate(districtID string, periodEnd time.Time, stats *types.DistrictStatistics) error
}

// MemoryUpdater is an in-process downstream cache, used by the daemon when no
// external cache is configured.
type MemoryUpdater struct {
	mu      sync.RWMutex
	entries map[string]*types.DistrictStatistics
	logger  zerolog.Logger
}

// NewMemoryUpdater creates an empty in-process downstream cache
func NewMemoryUpdater() *MemoryUpdater {
	return &MemoryUpdater{
		entries: make(map[string]*types.DistrictStatistics),
		logger:  log.WithComponent("propagate"),
	}
}

func key(districtID string, periodEnd time.Time) string {
	return fmt.Sprintf("%s:%s", districtID, periodEnd.Format("2006-01-02"))
}

// PropagateUpdate stores the snapshot under the district and period-end key
func (u *MemoryUpdater) PropagateUpdate(districtID string, periodEnd time.Time, stats *types.DistrictStatistics) error {
	if stats == nil {
		return fmt.Errorf("nil statistics for district %s", districtID)
	}

	u.mu.Lock()
	u.entries[key(districtID, periodEnd)] = stats
	u.mu.Unlock()

	u.logger.Debug().
		Str("district_id", districtID).
		Str("period_end", periodEnd.Format("2006-01-02")).
		Msg("downstream cache updated")
	return nil
}

// Get returns the propagated snapshot for a district and period end, if any
func (u *MemoryUpdater) Get(districtID string, periodEnd time.Time) (*types.DistrictStatistics, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	stats, ok := u.entries[key(districtID, periodEnd)]
	return stats, ok
}
