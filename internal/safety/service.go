package safety

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"intranet/internal/auth/models"
	"intranet/internal/mail"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
	"intranet/pkg/richtext"
)

const criticalMailTimeout = 5 * time.Minute

type AlertStore interface {
	CreateAlert(ctx context.Context, a *Alert) error
	UpdateAlert(ctx context.Context, a *Alert) error
	DeleteAlert(ctx context.Context, id uuid.UUID) error
	FindAlert(ctx context.Context, id uuid.UUID) (*Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter, page paging.Page) ([]*Alert, int, error)
	LiveAlerts(ctx context.Context, now time.Time) ([]*Alert, error)
	AcknowledgeAlert(ctx context.Context, ack *AlertAcknowledgement) error
	AcknowledgedBy(ctx context.Context, userID uuid.UUID, alertIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	CountAcknowledgements(ctx context.Context, alertID uuid.UUID) (int, error)
}

type TalkStore interface {
	CreateTalk(ctx context.Context, t *Talk) error
	UpdateTalk(ctx context.Context, t *Talk) error
	DeleteTalk(ctx context.Context, id uuid.UUID) error
	FindTalk(ctx context.Context, id uuid.UUID) (*Talk, error)
	ListTalks(ctx context.Context, filter TalkFilter, page paging.Page) ([]*Talk, int, error)
}

// UserLister supplies the recipients of critical alert emails.
type UserLister interface {
	ListActive(ctx context.Context) ([]*models.User, error)
}

// Mailer queues outgoing mail, waiting for room when its buffer is full.
type Mailer interface {
	EnqueueWait(ctx context.Context, msg mail.Message) error
}

type Service struct {
	alerts AlertStore
	talks  TalkStore

	users     UserLister
	mailer    Mailer
	portalURL string

	logger         *slog.Logger
	auditPublisher audit.Emitter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithCriticalAlertMail emails every active user when a critical alert is
// raised. portalURL is linked from the message.
func WithCriticalAlertMail(users UserLister, mailer Mailer, portalURL string) Option {
	return func(s *Service) {
		s.users = users
		s.mailer = mailer
		s.portalURL = portalURL
	}
}

func NewService(alerts AlertStore, talks TalkStore, opts ...Option) (*Service, error) {
	if alerts == nil || talks == nil {
		return nil, errors.New("safety stores are required")
	}
	s := &Service{alerts: alerts, talks: talks, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ActiveAlerts returns alerts live now, critical first. When userID is set,
// each alert carries whether that user acknowledged it.
func (s *Service) ActiveAlerts(ctx context.Context, userID uuid.UUID) ([]*Alert, error) {
	alerts, err := s.alerts.LiveAlerts(ctx, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load alerts")
	}
	if alerts == nil {
		alerts = []*Alert{}
	}
	if userID == uuid.Nil || len(alerts) == 0 {
		return alerts, nil
	}
	ids := make([]uuid.UUID, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID
	}
	acked, err := s.alerts.AcknowledgedBy(ctx, userID, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load alert acknowledgements")
	}
	for _, a := range alerts {
		a.Acknowledged = acked[a.ID]
	}
	return alerts, nil
}

// AcknowledgeAlert is idempotent. Only live alerts can be acknowledged.
func (s *Service) AcknowledgeAlert(ctx context.Context, userID, alertID uuid.UUID) error {
	a, err := s.alerts.FindAlert(ctx, alertID)
	if err != nil {
		return translate(err, "alert not found")
	}
	now := requestcontext.Now(ctx)
	if !a.LiveAt(now) {
		return dErrors.New(dErrors.CodeConflict, "alert is not active")
	}
	if err := s.alerts.AcknowledgeAlert(ctx, &AlertAcknowledgement{AlertID: alertID, UserID: userID, At: now}); err != nil {
		return translate(err, "alert not found")
	}
	return nil
}

func (s *Service) ListAlerts(ctx context.Context, filter AlertFilter, page paging.Page) (paging.Result[*Alert], error) {
	items, total, err := s.alerts.ListAlerts(ctx, filter, page)
	if err != nil {
		return paging.Result[*Alert]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list alerts")
	}
	return paging.NewResult(items, total, page), nil
}

func (s *Service) GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := s.alerts.FindAlert(ctx, id)
	if err != nil {
		return nil, translate(err, "alert not found")
	}
	return a, nil
}

// AlertAcknowledgementCount reports how many users acknowledged an alert.
func (s *Service) AlertAcknowledgementCount(ctx context.Context, id uuid.UUID) (int, error) {
	if _, err := s.alerts.FindAlert(ctx, id); err != nil {
		return 0, translate(err, "alert not found")
	}
	n, err := s.alerts.CountAcknowledgements(ctx, id)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count acknowledgements")
	}
	return n, nil
}

func (s *Service) CreateAlert(ctx context.Context, req *AlertRequest) (*Alert, error) {
	now := requestcontext.Now(ctx)
	if err := validateAlert(req, now); err != nil {
		return nil, err
	}
	a := &Alert{
		ID:        uuid.New(),
		Title:     req.Title,
		Message:   req.Message,
		Severity:  req.Severity,
		StartsAt:  *req.StartsAt,
		EndsAt:    req.EndsAt,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if userID := requestcontext.UserID(ctx); userID != uuid.Nil {
		a.CreatedBy = &userID
	}
	if err := s.alerts.CreateAlert(ctx, a); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create alert")
	}
	s.logAlert(ctx, audit.EventAlertCreated, a, "severity", string(a.Severity))
	if a.Severity == SeverityCritical {
		s.notifyCritical(ctx, a)
	}
	return a, nil
}

func (s *Service) UpdateAlert(ctx context.Context, id uuid.UUID, req *AlertRequest) (*Alert, error) {
	a, err := s.alerts.FindAlert(ctx, id)
	if err != nil {
		return nil, translate(err, "alert not found")
	}
	if req.StartsAt == nil {
		start := a.StartsAt
		req.StartsAt = &start
	}
	now := requestcontext.Now(ctx)
	if err := validateAlert(req, now); err != nil {
		return nil, err
	}
	a.Title = req.Title
	a.Message = req.Message
	a.Severity = req.Severity
	a.StartsAt = *req.StartsAt
	a.EndsAt = req.EndsAt
	a.UpdatedAt = now
	if err := s.alerts.UpdateAlert(ctx, a); err != nil {
		return nil, translate(err, "alert not found")
	}
	s.logAlert(ctx, audit.EventAlertUpdated, a, "severity", string(a.Severity))
	return a, nil
}

// DeactivateAlert takes an alert off the portal without deleting it.
func (s *Service) DeactivateAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := s.alerts.FindAlert(ctx, id)
	if err != nil {
		return nil, translate(err, "alert not found")
	}
	if !a.Active {
		return a, nil
	}
	a.Active = false
	a.UpdatedAt = requestcontext.Now(ctx)
	if err := s.alerts.UpdateAlert(ctx, a); err != nil {
		return nil, translate(err, "alert not found")
	}
	s.logAlert(ctx, audit.EventAlertDeactivated, a)
	return a, nil
}

func (s *Service) DeleteAlert(ctx context.Context, id uuid.UUID) error {
	if err := s.alerts.DeleteAlert(ctx, id); err != nil {
		return translate(err, "alert not found")
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventAlertDeleted, "alert", id.String())
	return nil
}

// notifyCritical queues one email per active user, waiting for queue room
// rather than dropping recipients. Delivery happens on the mail queue's
// worker; failures to queue are logged, not returned. The fan-out outlives a
// cancelled request but is bounded by criticalMailTimeout.
func (s *Service) notifyCritical(ctx context.Context, a *Alert) {
	if s.users == nil || s.mailer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), criticalMailTimeout)
	defer cancel()
	users, err := s.users.ListActive(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load alert recipients", "error", err, "alert_id", a.ID)
		return
	}
	link := s.portalURL + "/safety"
	queued, failed := 0, 0
	for i, u := range users {
		msg, err := mail.AlertMessage(u.Email, a.Title, a.Message, a.StartsAt, link)
		if err != nil {
			failed++
			continue
		}
		if err := s.mailer.EnqueueWait(ctx, msg); err != nil {
			failed++
			if ctx.Err() != nil || errors.Is(err, mail.ErrQueueClosed) {
				failed += len(users) - i - 1
				break
			}
			continue
		}
		queued++
	}
	if failed > 0 {
		s.logger.WarnContext(ctx, "some critical alert emails were not queued",
			"alert_id", a.ID, "queued", queued, "failed", failed)
	}
	s.logger.InfoContext(ctx, "critical alert emails queued", "alert_id", a.ID, "recipients", queued)
	s.logAlert(ctx, audit.EventAlertNotified, a, "recipients", strconv.Itoa(queued))
}

func validateAlert(req *AlertRequest, now time.Time) error {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return err
	}
	if req.StartsAt == nil {
		start := now
		req.StartsAt = &start
	}
	if req.EndsAt != nil && !req.EndsAt.After(*req.StartsAt) {
		return dErrors.New(dErrors.CodeValidation, "ends_at must be after starts_at")
	}
	return nil
}

func (s *Service) logAlert(ctx context.Context, event audit.AuditEvent, a *Alert, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.auditPublisher, event, "alert", a.ID.String(), attrs...)
}

// ListTalks returns published talks, newest first.
func (s *Service) ListTalks(ctx context.Context, topic string, page paging.Page) (paging.Result[*Talk], error) {
	return s.listTalks(ctx, TalkFilter{Topic: topic, PublishedOnly: true}, page)
}

func (s *Service) ListAllTalks(ctx context.Context, topic string, page paging.Page) (paging.Result[*Talk], error) {
	return s.listTalks(ctx, TalkFilter{Topic: topic}, page)
}

func (s *Service) listTalks(ctx context.Context, filter TalkFilter, page paging.Page) (paging.Result[*Talk], error) {
	items, total, err := s.talks.ListTalks(ctx, filter, page)
	if err != nil {
		return paging.Result[*Talk]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list talks")
	}
	return paging.NewResult(items, total, page), nil
}

// GetTalk returns a talk; drafts are hidden unless includeDrafts is set.
func (s *Service) GetTalk(ctx context.Context, id uuid.UUID, includeDrafts bool) (*Talk, error) {
	t, err := s.talks.FindTalk(ctx, id)
	if err != nil {
		return nil, translate(err, "talk not found")
	}
	if !t.Published && !includeDrafts {
		return nil, dErrors.New(dErrors.CodeNotFound, "talk not found")
	}
	return t, nil
}

// LatestTalk returns the most recent published talk, or nil when none exist.
func (s *Service) LatestTalk(ctx context.Context) (*Talk, error) {
	items, _, err := s.talks.ListTalks(ctx, TalkFilter{PublishedOnly: true}, paging.New(1, 0))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load latest talk")
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (s *Service) CreateTalk(ctx context.Context, req *TalkRequest) (*Talk, error) {
	now := requestcontext.Now(ctx)
	t := &Talk{ID: uuid.New(), CreatedAt: now}
	if err := applyTalk(t, req); err != nil {
		return nil, err
	}
	t.UpdatedAt = now
	if err := s.talks.CreateTalk(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create talk")
	}
	s.logTalk(ctx, audit.EventTalkCreated, t, "title", t.Title)
	return t, nil
}

func (s *Service) UpdateTalk(ctx context.Context, id uuid.UUID, req *TalkRequest) (*Talk, error) {
	t, err := s.talks.FindTalk(ctx, id)
	if err != nil {
		return nil, translate(err, "talk not found")
	}
	if err := applyTalk(t, req); err != nil {
		return nil, err
	}
	t.UpdatedAt = requestcontext.Now(ctx)
	if err := s.talks.UpdateTalk(ctx, t); err != nil {
		return nil, translate(err, "talk not found")
	}
	s.logTalk(ctx, audit.EventTalkUpdated, t, "title", t.Title)
	return t, nil
}

func (s *Service) DeleteTalk(ctx context.Context, id uuid.UUID) error {
	if err := s.talks.DeleteTalk(ctx, id); err != nil {
		return translate(err, "talk not found")
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventTalkDeleted, "talk", id.String())
	return nil
}

func (s *Service) logTalk(ctx context.Context, event audit.AuditEvent, t *Talk, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.auditPublisher, event, "talk", t.ID.String(), attrs...)
}

func applyTalk(t *Talk, req *TalkRequest) error {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return err
	}
	html, err := richtext.Render(req.Body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "body could not be rendered")
	}
	t.Title = req.Title
	t.Topic = req.Topic
	t.Summary = req.Summary
	if t.Summary == "" {
		t.Summary = richtext.Excerpt(req.Body, 240)
	}
	t.Body = req.Body
	t.BodyHTML = html
	t.Presenter = req.Presenter
	t.TalkDate = req.TalkDate
	t.AttachmentURL = req.AttachmentURL
	t.Published = req.Published
	return nil
}

func translate(err error, notFound string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "safety store failure")
}
