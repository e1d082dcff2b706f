package notification

import (
	"context"
	"log/slog"
)

// LogSender writes notifications to the structured log. It stands in for
// a real mail or chat integration; swapping it out only requires another
// Sender implementation.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, job Job) error {
	s.logger.Info("notification",
		"recipient_id", job.RecipientID,
		"request_id", job.RequestID,
		"subject", job.Subject,
		"body", job.Body)
	return nil
}
