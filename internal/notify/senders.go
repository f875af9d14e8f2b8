package notify

import (
	"context"
	"log/slog"
	"strconv"
)

// LogSender is the default transport: it writes notifications to the log
// instead of delivering them. Real mail/SMS/push providers plug in behind
// the sender interfaces.
type LogSender struct{}

func (LogSender) SendEmail(ctx context.Context, to []string, subject, body string) error {
	slog.InfoContext(ctx, "Email notification",
		"recipients", to,
		"subject", subject,
		"body_length", len(body))
	return nil
}

func (LogSender) SendSMS(ctx context.Context, phone, message string) error {
	slog.InfoContext(ctx, "SMS notification",
		"phone", phone,
		"message", message)
	return nil
}

func (LogSender) SendPush(ctx context.Context, userID int64, message string) error {
	slog.InfoContext(ctx, "Push notification",
		"group", GroupName(userID),
		"message", message)
	return nil
}

// GroupName is the per-user push channel group.
func GroupName(userID int64) string {
	return "notification_" + strconv.FormatInt(userID, 10)
}
