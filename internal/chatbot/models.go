package chatbot

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgstrings "intranet/pkg/platform/strings"
)

type FAQ struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Keywords []string  `json:"keywords"`
	Category string    `json:"category,omitempty"`
	// Condition is an optional expr expression; the FAQ is only eligible
	// while it evaluates true.
	Condition string    `json:"condition,omitempty"`
	Priority  int       `json:"priority"`
	Active    bool      `json:"active"`
	Hits      int64     `json:"hits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type QueryLog struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Message      string     `json:"message"`
	MatchedFAQID *uuid.UUID `json:"matched_faq_id,omitempty"`
	Score        int        `json:"score"`
	Answered     bool       `json:"answered"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Suggestion struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
}

// Reply is what the chat widget shows.
type Reply struct {
	Answer      string       `json:"answer"`
	Matched     bool         `json:"matched"`
	FAQID       *uuid.UUID   `json:"faq_id,omitempty"`
	Question    string       `json:"question,omitempty"`
	Score       int          `json:"score"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

type Filter struct {
	Category   string
	Query      string
	ActiveOnly bool
}

func (f Filter) matches(q *FAQ) bool {
	if f.ActiveOnly && !q.Active {
		return false
	}
	if f.Category != "" && !strings.EqualFold(f.Category, q.Category) {
		return false
	}
	return pkgstrings.ContainsFold(f.Query, q.Question, q.Answer, strings.Join(q.Keywords, " "))
}

// Stats summarises chat traffic since a point in time.
type Stats struct {
	Total    int     `json:"total"`
	Answered int     `json:"answered"`
	Ratio    float64 `json:"ratio"`
}

func NewStats(total, answered int) Stats {
	s := Stats{Total: total, Answered: answered}
	if total > 0 {
		s.Ratio = float64(answered) / float64(total)
	}
	return s
}

type FAQRequest struct {
	Question  string   `json:"question" validate:"required,max=300"`
	Answer    string   `json:"answer" validate:"required,max=5000"`
	Keywords  []string `json:"keywords" validate:"max=30,dive,max=60"`
	Category  string   `json:"category" validate:"max=80"`
	Condition string   `json:"condition" validate:"max=500"`
	Priority  int      `json:"priority" validate:"min=0,max=100"`
	Active    *bool    `json:"active"`
}

func (r *FAQRequest) Normalize() {
	r.Question = strings.TrimSpace(r.Question)
	r.Answer = strings.TrimSpace(r.Answer)
	r.Category = strings.TrimSpace(r.Category)
	r.Condition = strings.TrimSpace(r.Condition)
	r.Keywords = pkgstrings.DedupeAndTrimLower(r.Keywords)
}

type AskRequest struct {
	Message string `json:"message" validate:"required,max=500"`
}
