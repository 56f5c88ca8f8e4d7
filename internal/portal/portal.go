// Package portal serves the server-rendered staff pages.
package portal

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"intranet/internal/applink"
	"intranet/internal/auth/models"
	"intranet/internal/directory"
	"intranet/internal/news"
	"intranet/internal/policy"
	"intranet/internal/safety"
	"intranet/pkg/domain"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/httputil"
	authmw "intranet/pkg/platform/middleware/auth"
	"intranet/pkg/platform/paging"
	"intranet/pkg/requestcontext"
)

const (
	loginPath  = "/login"
	homeNews   = 5
	policyPage = 50
)

type Auth interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	Logout(ctx context.Context, principal requestcontext.Principal) error
}

type News interface {
	ListPublished(ctx context.Context, filter news.Filter, page paging.Page) (paging.Result[*news.Article], error)
	GetPublished(ctx context.Context, slug string) (*news.Article, error)
}

type Policies interface {
	ListPublished(ctx context.Context, filter policy.Filter, page paging.Page) (paging.Result[*policy.Policy], error)
	GetPublished(ctx context.Context, slug string) (*policy.Policy, error)
	Acknowledge(ctx context.Context, userID, policyID uuid.UUID) (*policy.Acknowledgement, error)
	PendingAcknowledgements(ctx context.Context, userID uuid.UUID) ([]*policy.Policy, error)
}

type Directory interface {
	Search(ctx context.Context, filter directory.Filter, page paging.Page) (paging.Result[*directory.Employee], error)
	Departments(ctx context.Context) ([]directory.DepartmentCount, error)
}

type Safety interface {
	ActiveAlerts(ctx context.Context, userID uuid.UUID) ([]*safety.Alert, error)
	AcknowledgeAlert(ctx context.Context, userID, alertID uuid.UUID) error
	ListTalks(ctx context.Context, topic string, page paging.Page) (paging.Result[*safety.Talk], error)
	GetTalk(ctx context.Context, id uuid.UUID, includeDrafts bool) (*safety.Talk, error)
	LatestTalk(ctx context.Context) (*safety.Talk, error)
}

type Apps interface {
	Launcher(ctx context.Context) ([]applink.Group, error)
}

// Services are the read models and actions behind the pages.
type Services struct {
	Auth      Auth
	News      News
	Policies  Policies
	Directory Directory
	Safety    Safety
	Apps      Apps
}

type Handler struct {
	svc    Services
	cookie authmw.SessionCookie
	logger *slog.Logger
	pages  map[string]*template.Template
}

func New(svc Services, cookie authmw.SessionCookie, logger *slog.Logger) (*Handler, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, cookie: cookie, logger: logger, pages: pages}, nil
}

// Register mounts the sign-in pages and, behind guard, every staff page.
func (h *Handler) Register(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Get(loginPath, h.handleLoginForm)
	r.Post(loginPath, h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Post("/logout", h.handleLogout)
		r.Get("/", h.handleHome)
		r.Get("/news", h.handleNews)
		r.Get("/news/{slug}", h.handleArticle)
		r.Get("/policies", h.handlePolicies)
		r.Get("/policies/{slug}", h.handlePolicy)
		r.Post("/policies/{slug}/acknowledge", h.handleAcknowledgePolicy)
		r.Get("/directory", h.handleDirectory)
		r.Get("/safety", h.handleSafety)
		r.Post("/safety/alerts/{id}/acknowledge", h.handleAcknowledgeAlert)
		r.Get("/safety/talks/{id}", h.handleTalk)
		r.Get("/apps", h.handleApps)
	})
}

// LoginPath is where the page guard sends anonymous visitors.
func LoginPath() string { return loginPath }

func currentViewer(r *http.Request) viewer {
	p, ok := requestcontext.PrincipalFrom(r.Context())
	if !ok {
		return viewer{}
	}
	return viewer{Email: p.Email, Name: p.Name, Role: p.Role}
}

type loginData struct {
	Next  string
	Email string
}

func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	next := authmw.SafeNext(r.URL.Query().Get("next"), "/")
	h.render(w, r, http.StatusOK, "login", view{Title: "Sign in", Data: loginData{Next: next}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid form"))
		return
	}
	next := authmw.SafeNext(r.PostForm.Get("next"), "/")
	req := &models.LoginRequest{Email: r.PostForm.Get("email"), Password: r.PostForm.Get("password")}
	result, err := h.svc.Auth.Login(r.Context(), req)
	if err != nil {
		status := dErrors.ToHTTPStatus(dErrors.CodeOf(err))
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "portal login failed", "error", err)
		}
		h.render(w, r, status, "login", view{
			Title: "Sign in",
			Error: loginMessage(err),
			Data:  loginData{Next: next, Email: strings.TrimSpace(req.Email)},
		})
		return
	}
	h.cookie.Set(w, result.AccessToken, result.ExpiresAt)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func loginMessage(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeRateLimited:
		return "Too many attempts. Please try again later."
	case dErrors.CodeUnauthorized, dErrors.CodeValidation, dErrors.CodeForbidden:
		return "Email or password is incorrect."
	}
	return "Sign in is unavailable right now."
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if p, ok := requestcontext.PrincipalFrom(ctx); ok {
		if err := h.svc.Auth.Logout(ctx, p); err != nil {
			h.logger.ErrorContext(ctx, "portal logout failed", "error", err)
		}
	}
	h.cookie.Clear(w)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

type homeData struct {
	Alerts          []*safety.Alert
	PendingPolicies []*policy.Policy
	News            []*news.Article
	LatestTalk      *safety.Talk
	Apps            []applink.Group
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	var data homeData
	var err error
	if data.Alerts, err = h.svc.Safety.ActiveAlerts(ctx, userID); err != nil {
		h.renderError(w, r, err)
		return
	}
	if data.PendingPolicies, err = h.svc.Policies.PendingAcknowledgements(ctx, userID); err != nil {
		h.renderError(w, r, err)
		return
	}
	latest, err := h.svc.News.ListPublished(ctx, news.Filter{}, paging.New(homeNews, 0))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	data.News = latest.Items
	data.LatestTalk, err = h.svc.Safety.LatestTalk(ctx)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		h.renderError(w, r, err)
		return
	}
	if data.Apps, err = h.svc.Apps.Launcher(ctx); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "home", view{Data: data})
}

type newsListData struct {
	Query  string
	Result paging.Result[*news.Article]
	Pager  pager
}

func (h *Handler) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := httputil.PageFromQuery(r)
	filter := news.Filter{Query: q.Get("q"), Category: q.Get("category"), Tag: q.Get("tag")}
	result, err := h.svc.News.ListPublished(r.Context(), filter, page)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "news_list", view{Title: "News", Data: newsListData{
		Query:  filter.Query,
		Result: result,
		Pager:  newPager(r, result.Total, page.Limit, page.Offset),
	}})
}

func (h *Handler) handleArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.News.GetPublished(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "news_detail", view{Title: a.Title, Data: a})
}

type policyListData struct {
	Result  paging.Result[*policy.Policy]
	Pending map[uuid.UUID]bool
	Pager   pager
}

func (h *Handler) pendingSet(ctx context.Context) (map[uuid.UUID]bool, error) {
	pending, err := h.svc.Policies.PendingAcknowledgements(ctx, requestcontext.UserID(ctx))
	if err != nil {
		return nil, err
	}
	set := make(map[uuid.UUID]bool, len(pending))
	for _, p := range pending {
		set[p.ID] = true
	}
	return set, nil
}

func (h *Handler) handlePolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := httputil.PageFromQuery(r)
	if r.URL.Query().Get("limit") == "" {
		page = paging.New(policyPage, page.Offset)
	}
	result, err := h.svc.Policies.ListPublished(ctx, policy.Filter{Category: r.URL.Query().Get("category")}, page)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	pending, err := h.pendingSet(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "policy_list", view{Title: "Policies", Data: policyListData{
		Result:  result,
		Pending: pending,
		Pager:   newPager(r, result.Total, page.Limit, page.Offset),
	}})
}

type policyData struct {
	Policy  *policy.Policy
	Pending bool
}

func (h *Handler) handlePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.svc.Policies.GetPublished(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	pending, err := h.pendingSet(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "policy_detail", view{Title: p.Title, Data: policyData{Policy: p, Pending: pending[p.ID]}})
}

func (h *Handler) handleAcknowledgePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	p, err := h.svc.Policies.GetPublished(ctx, slug)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if _, err := h.svc.Policies.Acknowledge(ctx, requestcontext.UserID(ctx), p.ID); err != nil {
		h.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/policies/"+p.Slug, http.StatusSeeOther)
}

type directoryData struct {
	Query       string
	Department  string
	Departments []directory.DepartmentCount
	Result      paging.Result[*directory.Employee]
	Pager       pager
}

func (h *Handler) handleDirectory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	page := httputil.PageFromQuery(r)
	filter := directory.Filter{Query: q.Get("q"), Department: q.Get("department"), Location: q.Get("location")}
	result, err := h.svc.Directory.Search(ctx, filter, page)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	depts, err := h.svc.Directory.Departments(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "directory", view{Title: "Directory", Data: directoryData{
		Query:       filter.Query,
		Department:  filter.Department,
		Departments: depts,
		Result:      result,
		Pager:       newPager(r, result.Total, page.Limit, page.Offset),
	}})
}

type safetyData struct {
	Alerts []*safety.Alert
	Talks  paging.Result[*safety.Talk]
	Pager  pager
}

func (h *Handler) handleSafety(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := httputil.PageFromQuery(r)
	alerts, err := h.svc.Safety.ActiveAlerts(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	talks, err := h.svc.Safety.ListTalks(ctx, r.URL.Query().Get("topic"), page)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "safety", view{Title: "Safety", Data: safetyData{
		Alerts: alerts,
		Talks:  talks,
		Pager:  newPager(r, talks.Total, page.Limit, page.Offset),
	}})
}

func (h *Handler) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if err := h.svc.Safety.AcknowledgeAlert(ctx, requestcontext.UserID(ctx), id); err != nil {
		h.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, authmw.SafeNext(r.PostFormValue("next"), "/safety"), http.StatusSeeOther)
}

func (h *Handler) handleTalk(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	t, err := h.svc.Safety.GetTalk(r.Context(), id, false)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "talk", view{Title: t.Title, Data: t})
}

func (h *Handler) handleApps(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Apps.Launcher(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "apps", view{Title: "Apps", Data: groups})
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	title := "Something went wrong"
	switch {
	case code == dErrors.CodeNotFound:
		title = "Page not found"
	case status < http.StatusInternalServerError:
		title = dErrors.MessageOf(err)
	default:
		h.logger.ErrorContext(r.Context(), "portal page failed", "path", r.URL.Path, "error", err)
	}
	h.render(w, r, status, "error", view{Title: title})
}
