// Package policy publishes company policies and tracks which staff have
// acknowledged the current version of each.
package policy

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgstrings "intranet/pkg/platform/strings"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Policy is a versioned document. Version increases whenever the body or the
// attached document of a published policy changes.
type Policy struct {
	ID                      uuid.UUID  `json:"id"`
	Slug                    string     `json:"slug"`
	Title                   string     `json:"title"`
	Category                string     `json:"category,omitempty"`
	Summary                 string     `json:"summary"`
	Body                    string     `json:"body"`
	BodyHTML                string     `json:"body_html"`
	DocumentURL             string     `json:"document_url,omitempty"`
	Version                 int        `json:"version"`
	EffectiveDate           *time.Time `json:"effective_date,omitempty"`
	Status                  Status     `json:"status"`
	RequiresAcknowledgement bool       `json:"requires_acknowledgement"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

func (p *Policy) IsPublished() bool {
	return p.Status == StatusPublished
}

// Acknowledgement records that a user read a specific version.
type Acknowledgement struct {
	PolicyID       uuid.UUID `json:"policy_id"`
	UserID         uuid.UUID `json:"user_id"`
	Version        int       `json:"version"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

type Filter struct {
	Status   Status
	Category string
	Query    string
}

func (f Filter) matches(p *Policy) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	return pkgstrings.ContainsFold(f.Query, p.Title, p.Summary, p.Body)
}

type PolicyRequest struct {
	Title                   string     `json:"title" validate:"required,max=200"`
	Category                string     `json:"category" validate:"max=80"`
	Summary                 string     `json:"summary" validate:"max=1000"`
	Body                    string     `json:"body" validate:"max=100000"`
	DocumentURL             string     `json:"document_url" validate:"omitempty,httpurl"`
	EffectiveDate           *time.Time `json:"effective_date"`
	RequiresAcknowledgement bool       `json:"requires_acknowledgement"`
}

func (r *PolicyRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Category = strings.TrimSpace(r.Category)
	r.Summary = strings.TrimSpace(r.Summary)
	r.DocumentURL = strings.TrimSpace(r.DocumentURL)
}

// AckStatus summarises acknowledgements of a policy's current version.
type AckStatus struct {
	PolicyID     uuid.UUID          `json:"policy_id"`
	Version      int                `json:"version"`
	Acknowledged int                `json:"acknowledged"`
	Entries      []*Acknowledgement `json:"entries"`
}

// AckCount is the number of acknowledgements of a policy's current version.
type AckCount struct {
	PolicyID     uuid.UUID `json:"policy_id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Version      int       `json:"version"`
	Acknowledged int       `json:"acknowledged"`
}
