package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log notifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the notification at error level.
func (l *LogNotifier) Send(ctx context.Context, notification Notification) error {
	args := []any{"subject", notification.Subject, "body", notification.Body}
	for k, v := range notification.Fields {
		args = append(args, k, v)
	}
	l.logger.ErrorContext(ctx, "notification", args...)
	return nil
}
