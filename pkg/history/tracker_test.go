package history

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/driphq/drip/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(maxEvents int, maxAge time.Duration) *Tracker {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewTracker(maxEvents, maxAge, logger)
}

func TestTracker_RecordAndGetHistory(t *testing.T) {
	tracker := newTestTracker(0, 0)

	tracker.RecordEvent("u1", models.EventUserSignup, map[string]any{"source": "ad"})
	tracker.RecordEvent("u1", models.EventPurchaseComplete, map[string]any{"amount": 42.0})
	tracker.RecordEvent("u2", models.EventPageView, nil)

	historyU1 := tracker.GetHistory("u1")
	require.Len(t, historyU1, 2)
	assert.Equal(t, models.EventUserSignup, historyU1[0].EventType)
	assert.Equal(t, models.EventPurchaseComplete, historyU1[1].EventType)

	assert.Len(t, tracker.GetHistory("u2"), 1)
	assert.Empty(t, tracker.GetHistory("unknown"))
}

func TestTracker_EnforcesPerUserCap(t *testing.T) {
	tracker := newTestTracker(5, 0)

	for i := range 8 {
		tracker.RecordEvent("u1", models.EventPageView, map[string]any{"page": fmt.Sprintf("/p/%d", i)})
	}

	records := tracker.GetHistory("u1")
	require.Len(t, records, 5)
	// Oldest entries are dropped first.
	assert.Equal(t, "/p/3", records[0].EventData["page"])
	assert.Equal(t, "/p/7", records[4].EventData["page"])
}

func TestTracker_CountEvents(t *testing.T) {
	tracker := newTestTracker(0, 0)

	base := time.Now()
	tracker.now = func() time.Time { return base.Add(-40 * 24 * time.Hour) }
	tracker.RecordEvent("u1", models.EventPurchaseComplete, nil)

	tracker.now = func() time.Time { return base.Add(-2 * 24 * time.Hour) }
	tracker.RecordEvent("u1", models.EventPurchaseComplete, nil)
	tracker.RecordEvent("u1", models.EventEmailOpened, nil)

	tracker.now = func() time.Time { return base }

	assert.Equal(t, 1, tracker.CountEvents("u1", models.EventPurchaseComplete, 30*24*time.Hour))
	assert.Equal(t, 2, tracker.CountEvents("u1", models.EventPurchaseComplete, 0))
	assert.Equal(t, 0, tracker.CountEvents("u1", models.EventCartAbandoned, 0))
}

func TestTracker_LastEventTime(t *testing.T) {
	tracker := newTestTracker(0, 0)

	first := time.Now().Add(-2 * time.Hour)
	second := time.Now().Add(-1 * time.Hour)

	tracker.now = func() time.Time { return first }
	tracker.RecordEvent("u1", models.EventEmailOpened, nil)

	tracker.now = func() time.Time { return second }
	tracker.RecordEvent("u1", models.EventEmailOpened, nil)

	last, found := tracker.LastEventTime("u1", models.EventEmailOpened)
	require.True(t, found)
	assert.Equal(t, second, last)

	_, found = tracker.LastEventTime("u1", models.EventCartAbandoned)
	assert.False(t, found)
}

func TestTracker_PruneByAge(t *testing.T) {
	tracker := newTestTracker(0, 90*24*time.Hour)

	base := time.Now()
	tracker.now = func() time.Time { return base.Add(-100 * 24 * time.Hour) }
	tracker.RecordEvent("u1", models.EventPageView, nil)
	tracker.RecordEvent("u2", models.EventPageView, nil)

	tracker.now = func() time.Time { return base.Add(-time.Hour) }
	tracker.RecordEvent("u1", models.EventPageView, nil)

	tracker.now = func() time.Time { return base }

	removed := tracker.Prune()
	assert.Equal(t, 2, removed)
	assert.Len(t, tracker.GetHistory("u1"), 1)
	assert.Empty(t, tracker.GetHistory("u2"))
}
