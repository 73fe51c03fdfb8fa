// Package delivery provides development implementations of the outbound
// collaborators. Each one logs the payload instead of delivering it, so the
// engine can run end to end without external providers.
package delivery

import (
	"context"
	"log/slog"
)

// LogMailer logs emails instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "log_mailer")}
}

func (m *LogMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	m.logger.InfoContext(ctx, "Email delivered to log",
		"to", to,
		"subject", subject,
		"body_length", len(body))

	return nil
}

// LogNotifier logs notifications instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "log_notifier")}
}

func (n *LogNotifier) SendNotification(ctx context.Context, userID, channel, message string) error {
	n.logger.InfoContext(ctx, "Notification delivered to log",
		"user_id", userID,
		"channel", channel,
		"message", message)

	return nil
}

// LogEventLogger logs analytics events instead of forwarding them.
type LogEventLogger struct {
	logger *slog.Logger
}

func NewLogEventLogger(logger *slog.Logger) *LogEventLogger {
	return &LogEventLogger{logger: logger.With("module", "log_event_sink")}
}

func (l *LogEventLogger) LogEvent(ctx context.Context, userID, eventName string, data map[string]any) error {
	l.logger.InfoContext(ctx, "Analytics event delivered to log",
		"user_id", userID,
		"event_name", eventName,
		"data", data)

	return nil
}
