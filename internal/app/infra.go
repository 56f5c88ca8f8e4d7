package app

import (
	"fmt"
	"log/slog"
	"time"

	internalaudit "intranet/internal/audit"
	"intranet/internal/mail"
	"intranet/internal/platform/config"
	"intranet/internal/platform/metrics"
)

const (
	mailRetryBackoff  = 2 * time.Second
	auditForwardQueue = 1024
)

// NewMailer returns an unstarted queue over SMTP, or over the log sender
// when no SMTP host is configured.
func NewMailer(cfg config.MailConfig, logger *slog.Logger, m *metrics.Metrics) (*mail.Queue, error) {
	var sender mail.Sender
	if cfg.Host != "" {
		smtp, err := mail.NewSMTPSender(cfg)
		if err != nil {
			return nil, fmt.Errorf("smtp sender: %w", err)
		}
		sender = smtp
	} else {
		logger.Warn("SMTP_HOST not set, outgoing mail is only logged")
		sender = mail.NewLogSender(logger)
	}
	opts := []mail.QueueOption{
		mail.WithLogger(logger.With("component", "mail")),
		mail.WithRetries(cfg.MaxRetries, mailRetryBackoff),
		mail.WithCapacity(cfg.QueueSize),
	}
	if m != nil {
		opts = append(opts, mail.WithObserver(m))
	}
	return mail.NewQueue(sender, opts...), nil
}

// NewAuditPublisher writes events to the audit store and, when forward is
// set, also buffers them for an outbound worker.
func NewAuditPublisher(st *Stores, logger *slog.Logger, m *metrics.Metrics, forward bool) (*internalaudit.Publisher, error) {
	opts := []internalaudit.PublisherOption{
		internalaudit.WithPublisherLogger(logger.With("component", "audit")),
	}
	if m != nil {
		opts = append(opts, internalaudit.WithPublisherMetrics(m))
	}
	if forward {
		opts = append(opts, internalaudit.WithForwarding(auditForwardQueue))
	}
	return internalaudit.NewPublisher(st.Audit, opts...)
}
