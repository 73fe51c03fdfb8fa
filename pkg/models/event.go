package models

import "time"

// EventRecord is one entry in a user's event history.
type EventRecord struct {
	EventType EventType      `json:"event_type"`
	EventData map[string]any `json:"event_data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
