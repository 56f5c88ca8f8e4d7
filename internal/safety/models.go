// Package safety runs site safety alerts and the PSI talk library.
package safety

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities, critical highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

type Alert struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Severity  Severity   `json:"severity"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	Active    bool       `json:"active"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Acknowledged is filled per caller on the staff view.
	Acknowledged bool `json:"acknowledged"`
}

// LiveAt reports whether the alert is active and within its window.
func (a *Alert) LiveAt(now time.Time) bool {
	if !a.Active || a.StartsAt.After(now) {
		return false
	}
	return a.EndsAt == nil || a.EndsAt.After(now)
}

type AlertAcknowledgement struct {
	AlertID uuid.UUID `json:"alert_id"`
	UserID  uuid.UUID `json:"user_id"`
	At      time.Time `json:"acknowledged_at"`
}

type AlertRequest struct {
	Title    string     `json:"title" validate:"required,max=200"`
	Message  string     `json:"message" validate:"required,max=5000"`
	Severity Severity   `json:"severity" validate:"required,oneof=info warning critical"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

func (r *AlertRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Message = strings.TrimSpace(r.Message)
	r.Severity = Severity(strings.ToLower(strings.TrimSpace(string(r.Severity))))
}

// AlertFilter narrows the admin alert listing.
type AlertFilter struct {
	Severity   Severity
	ActiveOnly bool
}

// Talk is a PSI (plant safety information) talk.
type Talk struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Topic         string    `json:"topic,omitempty"`
	Summary       string    `json:"summary"`
	Body          string    `json:"body"`
	BodyHTML      string    `json:"body_html"`
	Presenter     string    `json:"presenter,omitempty"`
	TalkDate      time.Time `json:"talk_date"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	Published     bool      `json:"published"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type TalkFilter struct {
	Topic         string
	PublishedOnly bool
}

type TalkRequest struct {
	Title         string    `json:"title" validate:"required,max=200"`
	Topic         string    `json:"topic" validate:"max=120"`
	Summary       string    `json:"summary" validate:"max=1000"`
	Body          string    `json:"body" validate:"max=100000"`
	Presenter     string    `json:"presenter" validate:"max=120"`
	TalkDate      time.Time `json:"talk_date" validate:"required"`
	AttachmentURL string    `json:"attachment_url" validate:"omitempty,httpurl"`
	Published     bool      `json:"published"`
}

func (r *TalkRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Topic = strings.TrimSpace(r.Topic)
	r.Summary = strings.TrimSpace(r.Summary)
	r.Presenter = strings.TrimSpace(r.Presenter)
	r.AttachmentURL = strings.TrimSpace(r.AttachmentURL)
}

// SeverityCount is the number of alerts raised at a severity.
type SeverityCount struct {
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
}
