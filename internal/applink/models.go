package applink

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UncategorisedLabel heads the launcher group for links without a category.
const UncategorisedLabel = "Other"

type AppLink struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	IconURL     string    `json:"icon_url,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	SortOrder   int       `json:"sort_order"`
	Visible     bool      `json:"visible"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Group is one launcher section.
type Group struct {
	Category string     `json:"category"`
	Links    []*AppLink `json:"links"`
}

type Filter struct {
	Category    string
	VisibleOnly bool
}

func (f Filter) matches(l *AppLink) bool {
	if f.VisibleOnly && !l.Visible {
		return false
	}
	return f.Category == "" || strings.EqualFold(f.Category, l.Category)
}

// less orders links by sort order, then name.
func less(a, b *AppLink) bool {
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.ID.String() < b.ID.String()
}

type AppLinkRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	URL         string `json:"url" validate:"required,httpurl"`
	IconURL     string `json:"icon_url" validate:"omitempty,httpurl"`
	Description string `json:"description" validate:"max=500"`
	Category    string `json:"category" validate:"max=80"`
	SortOrder   *int   `json:"sort_order" validate:"omitempty,min=0"`
	Visible     *bool  `json:"visible"`
}

func (r *AppLinkRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.URL = strings.TrimSpace(r.URL)
	r.IconURL = strings.TrimSpace(r.IconURL)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
}

type ReorderRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,dive,required"`
}
