// Package history keeps a per-user, time-windowed log of past events used for
// cooldown, trigger-cap, and history condition evaluation.
package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/driphq/drip/pkg/models"
)

const (
	// DefaultMaxEventsPerUser caps each user's event ring.
	DefaultMaxEventsPerUser = 100
	// DefaultMaxEventAge bounds how far back history is retained.
	DefaultMaxEventAge = 90 * 24 * time.Hour
)

// Tracker is an in-memory, append-only event history with per-user capping.
// Entries are pruned both by count on every append and by age during
// background maintenance.
type Tracker struct {
	mu        sync.RWMutex
	events    map[string][]*models.EventRecord
	maxEvents int
	maxAge    time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// NewTracker creates an event history tracker with the given bounds. Zero
// values fall back to the defaults.
func NewTracker(maxEvents int, maxAge time.Duration, logger *slog.Logger) *Tracker {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEventsPerUser
	}

	if maxAge <= 0 {
		maxAge = DefaultMaxEventAge
	}

	return &Tracker{
		events:    make(map[string][]*models.EventRecord),
		maxEvents: maxEvents,
		maxAge:    maxAge,
		logger:    logger.With("module", "event_history"),
		now:       time.Now,
	}
}

// RecordEvent appends an event to the user's history and enforces the
// per-user cap, dropping the oldest entries first.
func (t *Tracker) RecordEvent(userID string, eventType models.EventType, eventData map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := append(t.events[userID], &models.EventRecord{
		EventType: eventType,
		EventData: eventData,
		Timestamp: t.now(),
	})

	if len(records) > t.maxEvents {
		records = records[len(records)-t.maxEvents:]
	}

	t.events[userID] = records
}

// GetHistory returns a copy of the user's event history, oldest first.
func (t *Tracker) GetHistory(userID string) []*models.EventRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := t.events[userID]
	out := make([]*models.EventRecord, len(records))
	copy(out, records)

	return out
}

// CountEvents counts the user's events of the given type within the lookback
// window. A non-positive window counts all retained history.
func (t *Tracker) CountEvents(userID string, eventType models.EventType, since time.Duration) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var cutoff time.Time
	if since > 0 {
		cutoff = t.now().Add(-since)
	}

	count := 0

	for _, record := range t.events[userID] {
		if record.EventType != eventType {
			continue
		}

		if !cutoff.IsZero() && record.Timestamp.Before(cutoff) {
			continue
		}

		count++
	}

	return count
}

// LastEventTime returns the timestamp of the user's most recent event of the
// given type.
func (t *Tracker) LastEventTime(userID string, eventType models.EventType) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := t.events[userID]
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].EventType == eventType {
			return records[i].Timestamp, true
		}
	}

	return time.Time{}, false
}

// Prune drops events older than the retention age across all users and
// returns how many entries were removed. Intended to run on a schedule.
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.maxAge)
	removed := 0

	for userID, records := range t.events {
		kept := records[:0]

		for _, record := range records {
			if record.Timestamp.Before(cutoff) {
				removed++

				continue
			}

			kept = append(kept, record)
		}

		if len(kept) == 0 {
			delete(t.events, userID)

			continue
		}

		t.events[userID] = kept
	}

	if removed > 0 {
		t.logger.Debug("Pruned aged event history", "removed", removed)
	}

	return removed
}
