package mail

import (
	"context"
	"log/slog"
	"strings"
)

// LogSender logs messages instead of delivering them. Used when SMTP is not
// configured so local development still shows OTP codes.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email not sent (smtp disabled)",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return nil
}
