package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/warden/internal/models"
)

// EventLogger writes one structured log line per authentication lifecycle event.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger creates a new event logger
func NewEventLogger(logger *slog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Observer returns a hook observer for event. It never vetoes.
func (el *EventLogger) Observer(event models.AuthEvent) func(ctx context.Context, account *models.Account) error {
	return func(ctx context.Context, account *models.Account) error {
		el.LogEvent(ctx, event, account)
		return nil
	}
}

// LogEvent logs event for account. Failures log at warn level.
func (el *EventLogger) LogEvent(ctx context.Context, event models.AuthEvent, account *models.Account) {
	attrs := []slog.Attr{
		slog.String("log_type", "auth_event"),
		slog.String("event_type", event.String()),
		slog.String("account_id", account.ID),
		slog.String("login", SanitizedLogin(account.LoginIdentifier)),
		slog.Int("failed_logins", account.FailedLogins),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	level := slog.LevelInfo
	if event == models.BadLogin {
		level = slog.LevelWarn
	}
	el.logger.LogAttrs(ctx, level, "auth_event", attrs...)
}
