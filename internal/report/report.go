// Package report aggregates intranet-wide figures for the admin dashboard.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"intranet/internal/chatbot"
	"intranet/internal/directory"
	"intranet/internal/news"
	"intranet/internal/policy"
	"intranet/internal/safety"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/requestcontext"
)

const (
	topArticles = 5
	chatWindow  = 30 * 24 * time.Hour
	// aggregateTimeout bounds the whole fan-out.
	aggregateTimeout = 10 * time.Second
)

type NewsSource interface {
	CountPublished(ctx context.Context) (int, error)
	TopByViews(ctx context.Context, n int) ([]*news.Article, error)
}

type PolicySource interface {
	CountPublished(ctx context.Context) (int, error)
	AcknowledgementCounts(ctx context.Context) ([]policy.AckCount, error)
}

type UserCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type DirectorySource interface {
	CountActive(ctx context.Context) (int, error)
	Departments(ctx context.Context) ([]directory.DepartmentCount, error)
}

type AlertSource interface {
	LiveAlerts(ctx context.Context, now time.Time) ([]*safety.Alert, error)
}

type AppSource interface {
	CountVisible(ctx context.Context) (int, error)
}

type ChatSource interface {
	CountActive(ctx context.Context) (int, error)
	QueryStats(ctx context.Context, since time.Time) (chatbot.Stats, error)
}

// Sources groups the read models the summary draws from. All are required.
type Sources struct {
	News      NewsSource
	Policies  PolicySource
	Users     UserCounter
	Directory DirectorySource
	Alerts    AlertSource
	Apps      AppSource
	Chat      ChatSource
}

func (s Sources) validate() error {
	switch {
	case s.News == nil:
		return errors.New("news source is required")
	case s.Policies == nil:
		return errors.New("policy source is required")
	case s.Users == nil:
		return errors.New("user counter is required")
	case s.Directory == nil:
		return errors.New("directory source is required")
	case s.Alerts == nil:
		return errors.New("alert source is required")
	case s.Apps == nil:
		return errors.New("app source is required")
	case s.Chat == nil:
		return errors.New("chat source is required")
	}
	return nil
}

type Totals struct {
	PublishedNews     int `json:"published_news"`
	PublishedPolicies int `json:"published_policies"`
	ActiveEmployees   int `json:"active_employees"`
	ActiveAlerts      int `json:"active_alerts"`
	VisibleApps       int `json:"visible_apps"`
	ActiveFAQs        int `json:"active_faqs"`
	ActiveUsers       int `json:"active_users"`
}

type TopArticle struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Views int64  `json:"views"`
}

type PolicyAckRate struct {
	policy.AckCount
	ActiveUsers int     `json:"active_users"`
	Rate        float64 `json:"rate"`
}

type SeverityCount struct {
	Severity safety.Severity `json:"severity"`
	Count    int             `json:"count"`
}

type Summary struct {
	GeneratedAt      time.Time                   `json:"generated_at"`
	Totals           Totals                      `json:"totals"`
	TopNews          []TopArticle                `json:"top_news"`
	PolicyAckRates   []PolicyAckRate             `json:"policy_ack_rates"`
	Chat             chatbot.Stats               `json:"chat"`
	AlertsBySeverity []SeverityCount             `json:"alerts_by_severity"`
	Departments      []directory.DepartmentCount `json:"departments"`
}

type Service struct {
	src    Sources
	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(src Sources, opts ...Option) (*Service, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		src:    src,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("intranet/report"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Summary computes the dashboard figures. Sub-aggregations run concurrently
// and the first failure cancels the rest.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "report.Summary")
	defer span.End()

	now := requestcontext.Now(ctx).UTC()
	ctx, cancel := context.WithTimeout(ctx, aggregateTimeout)
	defer cancel()

	out := &Summary{GeneratedAt: now}
	var (
		activeUsers int
		ackCounts   []policy.AckCount
	)

	g, ctx := errgroup.WithContext(ctx)
	count := func(name string, dst *int, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(ctx)
			if err != nil {
				return stepError(name, err)
			}
			*dst = n
			return nil
		})
	}
	count("news", &out.Totals.PublishedNews, s.src.News.CountPublished)
	count("policies", &out.Totals.PublishedPolicies, s.src.Policies.CountPublished)
	count("employees", &out.Totals.ActiveEmployees, s.src.Directory.CountActive)
	count("apps", &out.Totals.VisibleApps, s.src.Apps.CountVisible)
	count("faqs", &out.Totals.ActiveFAQs, s.src.Chat.CountActive)
	count("users", &activeUsers, s.src.Users.CountActive)

	g.Go(func() error {
		top, err := s.src.News.TopByViews(ctx, topArticles)
		if err != nil {
			return stepError("top news", err)
		}
		out.TopNews = make([]TopArticle, 0, len(top))
		for _, a := range top {
			out.TopNews = append(out.TopNews, TopArticle{Slug: a.Slug, Title: a.Title, Views: a.Views})
		}
		return nil
	})
	g.Go(func() error {
		counts, err := s.src.Policies.AcknowledgementCounts(ctx)
		if err != nil {
			return stepError("acknowledgements", err)
		}
		ackCounts = counts
		return nil
	})
	g.Go(func() error {
		stats, err := s.src.Chat.QueryStats(ctx, now.Add(-chatWindow))
		if err != nil {
			return stepError("chat stats", err)
		}
		out.Chat = stats
		return nil
	})
	g.Go(func() error {
		alerts, err := s.src.Alerts.LiveAlerts(ctx, now)
		if err != nil {
			return stepError("alerts", err)
		}
		out.Totals.ActiveAlerts = len(alerts)
		out.AlertsBySeverity = bySeverity(alerts)
		return nil
	})
	g.Go(func() error {
		depts, err := s.src.Directory.Departments(ctx)
		if err != nil {
			return stepError("departments", err)
		}
		out.Departments = depts
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		s.logger.ErrorContext(ctx, "report aggregation failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build report")
	}

	out.Totals.ActiveUsers = activeUsers
	out.PolicyAckRates = ackRates(ackCounts, activeUsers)
	if out.Departments == nil {
		out.Departments = []directory.DepartmentCount{}
	}
	return out, nil
}

func stepError(step string, err error) error {
	return fmt.Errorf("%s: %w", step, err)
}

// ackRates divides acknowledgements by active users; with no active users
// every rate is zero.
func ackRates(counts []policy.AckCount, activeUsers int) []PolicyAckRate {
	out := make([]PolicyAckRate, 0, len(counts))
	for _, c := range counts {
		r := PolicyAckRate{AckCount: c, ActiveUsers: activeUsers}
		if activeUsers > 0 {
			r.Rate = float64(c.Acknowledged) / float64(activeUsers)
			if r.Rate > 1 {
				r.Rate = 1
			}
		}
		out = append(out, r)
	}
	return out
}

// bySeverity lists every severity, most severe first, including zero counts.
func bySeverity(alerts []*safety.Alert) []SeverityCount {
	counts := map[safety.Severity]int{
		safety.SeverityCritical: 0,
		safety.SeverityWarning:  0,
		safety.SeverityInfo:     0,
	}
	for _, a := range alerts {
		counts[a.Severity]++
	}
	out := make([]SeverityCount, 0, len(counts))
	for sev, n := range counts {
		out = append(out, SeverityCount{Severity: sev, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].Severity < out[j].Severity
	})
	return out
}
