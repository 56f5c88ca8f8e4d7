// Package mail renders and delivers transactional email through SMTP or a
// log-only sender, behind an in-process retry queue.
package mail

import (
	"context"
	"errors"
	"strings"

	"intranet/pkg/email"
)

// Message is a single outbound email.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Validate checks recipients and content.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return errors.New("mail: at least one recipient is required")
	}
	for _, to := range m.To {
		if !email.IsValid(to) {
			return errors.New("mail: invalid recipient " + to)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("mail: subject is required")
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return errors.New("mail: subject must be a single line")
	}
	if m.Text == "" && m.HTML == "" {
		return errors.New("mail: body is required")
	}
	return nil
}
