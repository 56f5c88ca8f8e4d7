package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"intranet/internal/applink"
	"intranet/internal/auth/models"
	"intranet/internal/chatbot"
	"intranet/internal/directory"
	"intranet/internal/news"
	"intranet/internal/policy"
	"intranet/internal/safety"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/requestcontext"
)

// SeedDocument is the YAML layout accepted by intranetctl seed.
type SeedDocument struct {
	Users     []SeedUser     `yaml:"users"`
	Employees []SeedEmployee `yaml:"employees"`
	News      []SeedArticle  `yaml:"news"`
	Policies  []SeedPolicy   `yaml:"policies"`
	Apps      []SeedApp      `yaml:"apps"`
	FAQs      []SeedFAQ      `yaml:"faqs"`
	Alerts    []SeedAlert    `yaml:"alerts"`
	Talks     []SeedTalk     `yaml:"talks"`
}

type SeedUser struct {
	Email      string `yaml:"email"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
	Role       string `yaml:"role"`
	Password   string `yaml:"password"`
}

type SeedEmployee struct {
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	Email      string `yaml:"email"`
	Phone      string `yaml:"phone"`
	Mobile     string `yaml:"mobile"`
	Department string `yaml:"department"`
	JobTitle   string `yaml:"job_title"`
	Location   string `yaml:"location"`
	PhotoURL   string `yaml:"photo_url"`
}

type SeedArticle struct {
	Title    string   `yaml:"title"`
	Summary  string   `yaml:"summary"`
	Body     string   `yaml:"body"`
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags"`
	Pinned   bool     `yaml:"pinned"`
	Publish  bool     `yaml:"publish"`
}

type SeedPolicy struct {
	Title                   string     `yaml:"title"`
	Category                string     `yaml:"category"`
	Summary                 string     `yaml:"summary"`
	Body                    string     `yaml:"body"`
	DocumentURL             string     `yaml:"document_url"`
	EffectiveDate           *time.Time `yaml:"effective_date"`
	RequiresAcknowledgement bool       `yaml:"requires_acknowledgement"`
	Publish                 bool       `yaml:"publish"`
}

type SeedApp struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	IconURL     string `yaml:"icon_url"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	SortOrder   *int   `yaml:"sort_order"`
	Visible     *bool  `yaml:"visible"`
}

type SeedFAQ struct {
	Question  string   `yaml:"question"`
	Answer    string   `yaml:"answer"`
	Keywords  []string `yaml:"keywords"`
	Category  string   `yaml:"category"`
	Condition string   `yaml:"condition"`
	Priority  int      `yaml:"priority"`
}

type SeedAlert struct {
	Title    string     `yaml:"title"`
	Message  string     `yaml:"message"`
	Severity string     `yaml:"severity"`
	StartsAt *time.Time `yaml:"starts_at"`
	EndsAt   *time.Time `yaml:"ends_at"`
}

type SeedTalk struct {
	Title         string    `yaml:"title"`
	Topic         string    `yaml:"topic"`
	Summary       string    `yaml:"summary"`
	Body          string    `yaml:"body"`
	Presenter     string    `yaml:"presenter"`
	TalkDate      time.Time `yaml:"talk_date"`
	AttachmentURL string    `yaml:"attachment_url"`
	Published     bool      `yaml:"published"`
}

// SeedResult counts what was created and skipped.
type SeedResult struct {
	Created map[string]int
	Skipped map[string]int
}

func (r SeedResult) add(kind string, created bool) {
	if created {
		r.Created[kind]++
	} else {
		r.Skipped[kind]++
	}
}

// LoadSeed decodes a seed document, rejecting unknown keys.
func LoadSeed(r io.Reader) (*SeedDocument, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc SeedDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &doc, nil
}

// Seed creates everything in doc. Users and employees whose email already
// exists are skipped, so a file can be applied more than once; other content
// is appended.
func Seed(ctx context.Context, svc *Services, doc *SeedDocument) (SeedResult, error) {
	res := SeedResult{Created: map[string]int{}, Skipped: map[string]int{}}
	ctx = requestcontext.WithPrincipal(ctx, requestcontext.Principal{
		Email: "intranetctl",
		Name:  "intranetctl",
		Role:  string(models.RoleAdmin),
	})

	for i, u := range doc.Users {
		_, err := svc.Auth.CreateUser(ctx, &models.CreateUserRequest{
			Email:      u.Email,
			Name:       u.Name,
			Department: u.Department,
			Role:       models.Role(u.Role),
			Password:   u.Password,
		})
		if serr := skipConflict(err, "users", i); serr != nil {
			return res, serr
		}
		res.add("users", err == nil)
	}

	for i, e := range doc.Employees {
		_, err := svc.Directory.Create(ctx, &directory.EmployeeRequest{
			FirstName:  e.FirstName,
			LastName:   e.LastName,
			Email:      e.Email,
			Phone:      e.Phone,
			Mobile:     e.Mobile,
			Department: e.Department,
			JobTitle:   e.JobTitle,
			Location:   e.Location,
			PhotoURL:   e.PhotoURL,
		})
		if serr := skipConflict(err, "employees", i); serr != nil {
			return res, serr
		}
		res.add("employees", err == nil)
	}

	for i, a := range doc.News {
		if _, err := svc.News.Create(ctx, &news.ArticleRequest{
			Title:    a.Title,
			Summary:  a.Summary,
			Body:     a.Body,
			Category: a.Category,
			Tags:     a.Tags,
			Pinned:   a.Pinned,
			Publish:  a.Publish,
		}); err != nil {
			return res, itemError("news", i, err)
		}
		res.add("news", true)
	}

	for i, p := range doc.Policies {
		created, err := svc.Policies.Create(ctx, &policy.PolicyRequest{
			Title:                   p.Title,
			Category:                p.Category,
			Summary:                 p.Summary,
			Body:                    p.Body,
			DocumentURL:             p.DocumentURL,
			EffectiveDate:           p.EffectiveDate,
			RequiresAcknowledgement: p.RequiresAcknowledgement,
		})
		if err != nil {
			return res, itemError("policies", i, err)
		}
		if p.Publish {
			if _, err := svc.Policies.Publish(ctx, created.ID); err != nil {
				return res, itemError("policies", i, err)
			}
		}
		res.add("policies", true)
	}

	for i, a := range doc.Apps {
		if _, err := svc.Apps.Create(ctx, &applink.AppLinkRequest{
			Name:        a.Name,
			URL:         a.URL,
			IconURL:     a.IconURL,
			Description: a.Description,
			Category:    a.Category,
			SortOrder:   a.SortOrder,
			Visible:     a.Visible,
		}); err != nil {
			return res, itemError("apps", i, err)
		}
		res.add("apps", true)
	}

	for i, f := range doc.FAQs {
		if _, err := svc.Chat.CreateFAQ(ctx, &chatbot.FAQRequest{
			Question:  f.Question,
			Answer:    f.Answer,
			Keywords:  f.Keywords,
			Category:  f.Category,
			Condition: f.Condition,
			Priority:  f.Priority,
		}); err != nil {
			return res, itemError("faqs", i, err)
		}
		res.add("faqs", true)
	}

	for i, a := range doc.Alerts {
		if _, err := svc.Safety.CreateAlert(ctx, &safety.AlertRequest{
			Title:    a.Title,
			Message:  a.Message,
			Severity: safety.Severity(a.Severity),
			StartsAt: a.StartsAt,
			EndsAt:   a.EndsAt,
		}); err != nil {
			return res, itemError("alerts", i, err)
		}
		res.add("alerts", true)
	}

	for i, t := range doc.Talks {
		if _, err := svc.Safety.CreateTalk(ctx, &safety.TalkRequest{
			Title:         t.Title,
			Topic:         t.Topic,
			Summary:       t.Summary,
			Body:          t.Body,
			Presenter:     t.Presenter,
			TalkDate:      t.TalkDate,
			AttachmentURL: t.AttachmentURL,
			Published:     t.Published,
		}); err != nil {
			return res, itemError("talks", i, err)
		}
		res.add("talks", true)
	}
	return res, nil
}

func skipConflict(err error, kind string, i int) error {
	if err == nil || dErrors.HasCode(err, dErrors.CodeConflict) {
		return nil
	}
	return itemError(kind, i, err)
}

func itemError(kind string, i int, err error) error {
	return fmt.Errorf("%s[%d]: %w", kind, i, err)
}
