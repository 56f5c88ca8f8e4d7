// Package news manages company news articles: drafting and publishing in the
// admin CMS, and the published feed staff read.
package news

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
)

// Article is a news post. Body is markdown; BodyHTML is its sanitised rendering.
type Article struct {
	ID            uuid.UUID  `json:"id"`
	Slug          string     `json:"slug"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	Body          string     `json:"body"`
	BodyHTML      string     `json:"body_html"`
	CoverImageURL string     `json:"cover_image_url,omitempty"`
	Category      string     `json:"category,omitempty"`
	Tags          []string   `json:"tags"`
	Status        Status     `json:"status"`
	Pinned        bool       `json:"pinned"`
	AuthorID      uuid.UUID  `json:"author_id"`
	AuthorName    string     `json:"author_name"`
	Views         int64      `json:"views"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (a *Article) IsPublished() bool {
	return a.Status == StatusPublished
}

// Publish marks the article published. The first publication time is kept
// across unpublish and republish.
func (a *Article) Publish(now time.Time) {
	a.Status = StatusPublished
	if a.PublishedAt == nil {
		a.PublishedAt = &now
	}
	a.UpdatedAt = now
}

func (a *Article) Unpublish(now time.Time) {
	a.Status = StatusDraft
	a.UpdatedAt = now
}

// sortTime orders the feed: publication time, else creation time.
func (a *Article) sortTime() time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

// Filter narrows listings. PublishedOnly is set for the staff feed.
type Filter struct {
	Status        Status
	Category      string
	Tag           string
	Query         string
	PublishedOnly bool
}

func (f Filter) matches(a *Article) bool {
	if f.PublishedOnly && !a.IsPublished() {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Category != "" && !strings.EqualFold(a.Category, f.Category) {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range a.Tags {
			if strings.EqualFold(t, f.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return pkgstrings.ContainsFold(f.Query, a.Title, a.Summary, a.Body)
}

// CategoryCount is a category with its number of published articles.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ArticleRequest struct {
	Title         string   `json:"title" validate:"required,max=200"`
	Summary       string   `json:"summary" validate:"max=1000"`
	Body          string   `json:"body" validate:"max=100000"`
	CoverImageURL string   `json:"cover_image_url" validate:"omitempty,httpurl"`
	Category      string   `json:"category" validate:"max=80"`
	Tags          []string `json:"tags" validate:"max=10,dive,max=40"`
	Pinned        bool     `json:"pinned"`
	Publish       bool     `json:"publish"`
}

func (r *ArticleRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Summary = strings.TrimSpace(r.Summary)
	r.CoverImageURL = strings.TrimSpace(r.CoverImageURL)
	r.Category = strings.TrimSpace(r.Category)
	r.Tags = pkgstrings.DedupeAndTrimLower(r.Tags)
	if r.Tags == nil {
		r.Tags = []string{}
	}
}
