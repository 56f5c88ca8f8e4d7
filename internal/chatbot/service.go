package chatbot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
)

const (
	DefaultThreshold      = 2
	DefaultMaxSuggestions = 3

	greetingReply = "Hello! Ask me about leave, payroll, IT, safety or any other company policy."
	fallbackReply = "Sorry, I couldn't find an answer to that. Try rephrasing, pick one of the suggested questions, or contact HR."
)

type Store interface {
	CreateFAQ(ctx context.Context, f *FAQ) error
	UpdateFAQ(ctx context.Context, f *FAQ) error
	DeleteFAQ(ctx context.Context, id uuid.UUID) error
	FindFAQ(ctx context.Context, id uuid.UUID) (*FAQ, error)
	ListFAQs(ctx context.Context, filter Filter, page paging.Page) ([]*FAQ, int, error)
	ActiveFAQs(ctx context.Context) ([]*FAQ, error)
	IncrementHits(ctx context.Context, id uuid.UUID) error
	LogQuery(ctx context.Context, q *QueryLog) error
	Unanswered(ctx context.Context, page paging.Page) ([]*QueryLog, int, error)
	QueryStats(ctx context.Context, since time.Time) (Stats, error)
}

type Metrics interface {
	ObserveChatQuery(outcome string)
}

type Service struct {
	store      Store
	threshold  int
	maxSuggest int
	location   *time.Location
	programs   *programCache

	logger         *slog.Logger
	auditPublisher audit.Emitter
	metrics        Metrics
	tracer         trace.Tracer
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

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithThreshold sets the minimum score an FAQ needs to be returned.
func WithThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// WithMaxSuggestions caps the follow-up questions offered with a fallback reply.
func WithMaxSuggestions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSuggest = n
		}
	}
}

// WithLocation sets the zone used for the hour and weekday condition variables.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("chatbot store is required")
	}
	s := &Service{
		store:      store,
		threshold:  DefaultThreshold,
		maxSuggest: DefaultMaxSuggestions,
		location:   time.UTC,
		programs:   newProgramCache(),
		logger:     slog.New(slog.DiscardHandler),
		tracer:     otel.Tracer("intranet/chatbot"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ask answers message with the best matching FAQ, a greeting, or a fallback
// with suggestions. Every call is logged.
func (s *Service) Ask(ctx context.Context, userID uuid.UUID, message string) (*Reply, error) {
	ctx, span := s.tracer.Start(ctx, "chatbot.Ask")
	defer span.End()

	message = strings.TrimSpace(message)
	req := &AskRequest{Message: message}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	entry := &QueryLog{ID: uuid.New(), Message: message, CreatedAt: now}
	if userID != uuid.Nil {
		entry.UserID = &userID
	}

	if IsGreeting(message) {
		entry.Answered = true
		s.record(ctx, entry, "greeting")
		span.SetAttributes(attribute.String("chatbot.outcome", "greeting"))
		return &Reply{Answer: greetingReply, Matched: true}, nil
	}

	faqs, err := s.store.ActiveFAQs(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load FAQs")
	}
	tokens := Tokenize(message)
	cands := s.match(ctx, faqs, message, tokens, now)
	span.SetAttributes(
		attribute.Int("chatbot.tokens", len(tokens)),
		attribute.Int("chatbot.candidates", len(cands)),
	)

	if len(cands) > 0 && cands[0].score >= s.threshold {
		best := cands[0]
		entry.Answered = true
		entry.Score = best.score
		entry.MatchedFAQID = &best.faq.ID
		if err := s.store.IncrementHits(ctx, best.faq.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to count FAQ hit", "error", err, "faq_id", best.faq.ID)
		}
		s.record(ctx, entry, "answered")
		span.SetAttributes(attribute.String("chatbot.outcome", "answered"), attribute.Int("chatbot.score", best.score))
		id := best.faq.ID
		return &Reply{
			Answer:   best.faq.Answer,
			Matched:  true,
			FAQID:    &id,
			Question: best.faq.Question,
			Score:    best.score,
		}, nil
	}

	if len(cands) > 0 {
		entry.Score = cands[0].score
	}
	s.record(ctx, entry, "unanswered")
	span.SetAttributes(attribute.String("chatbot.outcome", "unanswered"))
	return &Reply{Answer: fallbackReply, Suggestions: suggestions(cands, faqs, s.maxSuggest)}, nil
}

// match scores eligible FAQs, best first. FAQs whose condition fails or
// errors are left out.
func (s *Service) match(ctx context.Context, faqs []*FAQ, message string, tokens []string, now time.Time) []candidate {
	set := tokenSet(tokens)
	env := newConditionEnv(message, tokens, now.In(s.location))
	cands := make([]candidate, 0, len(faqs))
	for _, f := range faqs {
		if f.Condition != "" && !s.eligible(ctx, f, env) {
			continue
		}
		if sc := score(f, set); sc > 0 {
			cands = append(cands, candidate{faq: f, score: sc})
		}
	}
	rank(cands)
	return cands
}

func (s *Service) eligible(ctx context.Context, f *FAQ, env conditionEnv) bool {
	program, err := s.programs.get(f.Condition)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping FAQ with invalid condition", "faq_id", f.ID, "error", err)
		return false
	}
	out, err := expr.Run(program, env)
	if err != nil {
		s.logger.WarnContext(ctx, "FAQ condition failed", "faq_id", f.ID, "error", err)
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// suggestions prefers the closest partial matches, then the most asked FAQs.
func suggestions(cands []candidate, faqs []*FAQ, limit int) []Suggestion {
	out := make([]Suggestion, 0, limit)
	seen := make(map[uuid.UUID]bool)
	add := func(f *FAQ) {
		if len(out) < limit && !seen[f.ID] {
			seen[f.ID] = true
			out = append(out, Suggestion{ID: f.ID, Question: f.Question})
		}
	}
	for _, c := range cands {
		add(c.faq)
	}
	popular := make([]candidate, len(faqs))
	for i, f := range faqs {
		popular[i] = candidate{faq: f}
	}
	rank(popular)
	for _, c := range popular {
		add(c.faq)
	}
	return out
}

func (s *Service) record(ctx context.Context, entry *QueryLog, outcome string) {
	if err := s.store.LogQuery(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "failed to log chat query", "error", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveChatQuery(outcome)
	}
}

func (s *Service) ListFAQs(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*FAQ], error) {
	items, total, err := s.store.ListFAQs(ctx, filter, page)
	if err != nil {
		return paging.Result[*FAQ]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list FAQs")
	}
	return paging.NewResult(items, total, page), nil
}

func (s *Service) GetFAQ(ctx context.Context, id uuid.UUID) (*FAQ, error) {
	f, err := s.store.FindFAQ(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return f, nil
}

func (s *Service) CreateFAQ(ctx context.Context, req *FAQRequest) (*FAQ, error) {
	if err := s.validateFAQ(req); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	f := &FAQ{ID: uuid.New(), Active: true, CreatedAt: now, UpdatedAt: now}
	applyFAQ(f, req)
	if err := s.store.CreateFAQ(ctx, f); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create FAQ")
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventFAQCreated, "faq", f.ID.String(), "question", f.Question)
	return f, nil
}

func (s *Service) UpdateFAQ(ctx context.Context, id uuid.UUID, req *FAQRequest) (*FAQ, error) {
	if err := s.validateFAQ(req); err != nil {
		return nil, err
	}
	f, err := s.store.FindFAQ(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	applyFAQ(f, req)
	f.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateFAQ(ctx, f); err != nil {
		return nil, translate(err)
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventFAQUpdated, "faq", f.ID.String(), "question", f.Question)
	return f, nil
}

func (s *Service) DeleteFAQ(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteFAQ(ctx, id); err != nil {
		return translate(err)
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventFAQDeleted, "faq", id.String())
	return nil
}

// Unanswered lists queries that fell through to the fallback, newest first.
func (s *Service) Unanswered(ctx context.Context, page paging.Page) (paging.Result[*QueryLog], error) {
	items, total, err := s.store.Unanswered(ctx, page)
	if err != nil {
		return paging.Result[*QueryLog]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list unanswered queries")
	}
	return paging.NewResult(items, total, page), nil
}

func (s *Service) Stats(ctx context.Context, since time.Time) (Stats, error) {
	st, err := s.store.QueryStats(ctx, since)
	if err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load chat stats")
	}
	return st, nil
}

func (s *Service) validateFAQ(req *FAQRequest) error {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return err
	}
	if req.Condition != "" {
		if _, err := CompileCondition(req.Condition); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "condition is not a valid boolean expression")
		}
	}
	return nil
}

func applyFAQ(f *FAQ, req *FAQRequest) {
	f.Question = req.Question
	f.Answer = req.Answer
	f.Keywords = req.Keywords
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	f.Category = req.Category
	f.Condition = req.Condition
	f.Priority = req.Priority
	if req.Active != nil {
		f.Active = *req.Active
	}
}

func translate(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "FAQ not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "FAQ store failure")
}
