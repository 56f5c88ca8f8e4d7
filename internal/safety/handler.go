package safety

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"intranet/pkg/domain"
	"intranet/pkg/platform/httputil"
	"intranet/pkg/platform/paging"
	"intranet/pkg/requestcontext"
)

type API interface {
	ActiveAlerts(ctx context.Context, userID uuid.UUID) ([]*Alert, error)
	AcknowledgeAlert(ctx context.Context, userID, alertID uuid.UUID) error
	ListAlerts(ctx context.Context, filter AlertFilter, page paging.Page) (paging.Result[*Alert], error)
	GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error)
	AlertAcknowledgementCount(ctx context.Context, id uuid.UUID) (int, error)
	CreateAlert(ctx context.Context, req *AlertRequest) (*Alert, error)
	UpdateAlert(ctx context.Context, id uuid.UUID, req *AlertRequest) (*Alert, error)
	DeactivateAlert(ctx context.Context, id uuid.UUID) (*Alert, error)
	DeleteAlert(ctx context.Context, id uuid.UUID) error
	ListTalks(ctx context.Context, topic string, page paging.Page) (paging.Result[*Talk], error)
	ListAllTalks(ctx context.Context, topic string, page paging.Page) (paging.Result[*Talk], error)
	GetTalk(ctx context.Context, id uuid.UUID, includeDrafts bool) (*Talk, error)
	LatestTalk(ctx context.Context) (*Talk, error)
	CreateTalk(ctx context.Context, req *TalkRequest) (*Talk, error)
	UpdateTalk(ctx context.Context, id uuid.UUID, req *TalkRequest) (*Talk, error)
	DeleteTalk(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	svc    API
	logger *slog.Logger
}

func NewHandler(svc API, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/safety/alerts", h.handleActiveAlerts)
	r.Post("/safety/alerts/{id}/acknowledge", h.handleAcknowledge)
	r.Get("/safety/talks", h.handleListTalks)
	r.Get("/safety/talks/latest", h.handleLatestTalk)
	r.Get("/safety/talks/{id}", h.handleGetTalk)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/alerts", h.handleListAlerts)
	r.Post("/alerts", h.handleCreateAlert)
	r.Get("/alerts/{id}", h.handleGetAlert)
	r.Put("/alerts/{id}", h.handleUpdateAlert)
	r.Delete("/alerts/{id}", h.handleDeleteAlert)
	r.Post("/alerts/{id}/deactivate", h.handleDeactivateAlert)

	r.Get("/talks", h.handleListAllTalks)
	r.Post("/talks", h.handleCreateTalk)
	r.Get("/talks/{id}", h.handleGetTalkAdmin)
	r.Put("/talks/{id}", h.handleUpdateTalk)
	r.Delete("/talks/{id}", h.handleDeleteTalk)
}

func (h *Handler) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.ActiveAlerts(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.svc.AcknowledgeAlert(r.Context(), requestcontext.UserID(r.Context()), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListTalks(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListTalks(r.Context(), r.URL.Query().Get("topic"), httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLatestTalk(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.LatestTalk(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"talk": t})
}

func (h *Handler) handleGetTalk(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.GetTalk(r.Context(), id, false)
	writeResult(w, http.StatusOK, t, err)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := AlertFilter{Severity: Severity(q.Get("severity")), ActiveOnly: q.Get("active") == "true"}
	result, err := h.svc.ListAlerts(r.Context(), filter, httputil.PageFromQuery(r))
	writeResult(w, http.StatusOK, result, err)
}

func (h *Handler) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req AlertRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.svc.CreateAlert(r.Context(), &req)
	writeResult(w, http.StatusCreated, a, err)
}

// alertDetail adds the acknowledgement count to the admin view.
type alertDetail struct {
	*Alert
	Acknowledgements int `json:"acknowledgements"`
}

func (h *Handler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.GetAlert(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.svc.AlertAcknowledgementCount(r.Context(), id)
	writeResult(w, http.StatusOK, alertDetail{Alert: a, Acknowledgements: n}, err)
}

func (h *Handler) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req AlertRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.svc.UpdateAlert(r.Context(), id, &req)
	writeResult(w, http.StatusOK, a, err)
}

func (h *Handler) handleDeactivateAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.DeactivateAlert(r.Context(), id)
	writeResult(w, http.StatusOK, a, err)
}

func (h *Handler) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAlert(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAllTalks(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListAllTalks(r.Context(), r.URL.Query().Get("topic"), httputil.PageFromQuery(r))
	writeResult(w, http.StatusOK, result, err)
}

func (h *Handler) handleCreateTalk(w http.ResponseWriter, r *http.Request) {
	var req TalkRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.svc.CreateTalk(r.Context(), &req)
	writeResult(w, http.StatusCreated, t, err)
}

func (h *Handler) handleGetTalkAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.GetTalk(r.Context(), id, true)
	writeResult(w, http.StatusOK, t, err)
}

func (h *Handler) handleUpdateTalk(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req TalkRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.svc.UpdateTalk(r.Context(), id, &req)
	writeResult(w, http.StatusOK, t, err)
}

func (h *Handler) handleDeleteTalk(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteTalk(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return uuid.Nil, false
	}
	return id, true
}

func writeResult(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, status, v)
}
