package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViews(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 30, 0, 0, time.UTC)
	slots := []Slot{
		{ID: 1, Date: "2025-07-01", StartTime: "11:00", EndTime: "12:00", Status: StatusAvailable},
		{ID: 2, Date: "2025-07-01", StartTime: "13:00", EndTime: "14:00", Status: StatusAvailable},
		{ID: 3, Date: "2025-07-01", StartTime: "14:00", EndTime: "15:00", Status: StatusBooked},
		{ID: 4, Date: "2025-07-01", StartTime: "15:00", EndTime: "16:00", Status: StatusAvailable},
		{ID: 5, Date: "2025-07-01", StartTime: "16:00", EndTime: "17:00", Status: StatusPending},
		{ID: 6, Date: "2025-07-01", StartTime: "17:00", EndTime: "18:00", Status: StatusDisabled},
	}

	overlay := Overlay{}
	overlay.Set(4, StatusPending)
	overlay.Set(5, StatusAvailable)

	views := overlay.Views(slots, []int64{2}, now)
	require.Len(t, views, len(slots))

	byID := map[int64]View{}
	for _, v := range views {
		byID[v.ID] = v
	}

	assert.Equal(t, StatusExpired, byID[1].DisplayStatus, "started available slot is expired")
	assert.False(t, byID[1].Selectable)

	assert.Equal(t, StatusPending, byID[2].DisplayStatus, "held slot shows pending")
	assert.True(t, byID[2].HeldByMe)
	assert.False(t, byID[2].Selectable)

	assert.Equal(t, StatusBooked, byID[3].DisplayStatus)
	assert.False(t, byID[3].Selectable)

	assert.Equal(t, StatusPending, byID[4].DisplayStatus, "overlay flip wins over cached status")
	assert.Equal(t, StatusAvailable, byID[5].DisplayStatus, "local release flips back to available")
	assert.True(t, byID[5].Selectable)

	assert.Equal(t, StatusDisabled, byID[6].DisplayStatus)
	assert.False(t, byID[6].Selectable)
}

func TestViewsToleratesBadTimes(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	views := Overlay{}.Views([]Slot{{ID: 9, Date: "bogus", StartTime: "xx", Status: StatusAvailable}}, nil, now)

	require.Len(t, views, 1)
	assert.Equal(t, StatusAvailable, views[0].DisplayStatus)
}

func TestStartsAtAcceptsSeconds(t *testing.T) {
	s := Slot{Date: "2025-07-01", StartTime: "06:00:00"}
	start, err := s.StartsAt(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 6, start.Hour())
}

func TestStatusErr(t *testing.T) {
	assert.Equal(t, ErrSlotBooked, StatusBooked.Err())
	assert.Equal(t, ErrSlotDisabled, StatusDisabled.Err())
	assert.Equal(t, ErrSlotPending, StatusPending.Err())
	assert.Nil(t, StatusAvailable.Err())

	assert.True(t, StatusPending.Controllable())
	assert.False(t, StatusBooked.Controllable())
}
