package propagate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/districtops/steward/pkg/types"
)

// TestMemoryUpdaterRoundTrip tests keyed storage and retrieval
func TestMemoryUpdaterRoundTrip(t *testing.T) {
	u := NewMemoryUpdater()
	periodEnd := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	stats := &types.DistrictStatistics{DistrictID: "D15", MembershipCount: 1000}
	require.NoError(t, u.PropagateUpdate("D15", periodEnd, stats))

	got, ok := u.Get("D15", periodEnd)
	require.True(t, ok)
	assert.Same(t, stats, got)

	// Districts and periods are isolated from each other
	_, ok = u.Get("D42", periodEnd)
	assert.False(t, ok)
	_, ok = u.Get("D15", periodEnd.AddDate(0, 1, 0))
	assert.False(t, ok)
}

// TestMemoryUpdaterOverwrite tests that a newer snapshot replaces the old one
func TestMemoryUpdaterOverwrite(t *testing.T) {
	u := NewMemoryUpdater()
	periodEnd := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, u.PropagateUpdate("D15", periodEnd, &types.DistrictStatistics{MembershipCount: 1000}))
	require.NoError(t, u.PropagateUpdate("D15", periodEnd, &types.DistrictStatistics{MembershipCount: 1010}))

	got, ok := u.Get("D15", periodEnd)
	require.True(t, ok)
	assert.Equal(t, 1010, got.MembershipCount)
}

// TestMemoryUpdaterNilStats tests the nil guard
func TestMemoryUpdaterNilStats(t *testing.T) {
	u := NewMemoryUpdater()
	err := u.PropagateUpdate("D15", time.Now(), nil)
	assert.Error(t, err)
}
