package protocol

import (
	"context"
	"time"
)

// Mailer delivers a single email. The engine never inspects delivery
// internals; a non-nil error is the only failure signal.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Notifier delivers a single user-facing notification.
type Notifier interface {
	SendNotification(ctx context.Context, userID, channel, message string) error
}

// EventLogger records a custom analytics event.
type EventLogger interface {
	LogEvent(ctx context.Context, userID, eventName string, data map[string]any) error
}

// FollowupStarter creates a brand-new, independent execution at a future
// time. Implemented by the execution manager; consumed by the
// schedule_followup executor.
type FollowupStarter interface {
	StartFollowup(ctx context.Context, ruleID, userID string, triggerData map[string]any, delay time.Duration) (string, error)
}
