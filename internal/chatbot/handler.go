package chatbot

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"intranet/pkg/domain"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/httputil"
	"intranet/pkg/platform/paging"
	"intranet/pkg/requestcontext"
)

const (
	defaultStatsDays = 30
	maxStatsDays     = 365
)

type API interface {
	Ask(ctx context.Context, userID uuid.UUID, message string) (*Reply, error)
	ListFAQs(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*FAQ], error)
	GetFAQ(ctx context.Context, id uuid.UUID) (*FAQ, error)
	CreateFAQ(ctx context.Context, req *FAQRequest) (*FAQ, error)
	UpdateFAQ(ctx context.Context, id uuid.UUID, req *FAQRequest) (*FAQ, error)
	DeleteFAQ(ctx context.Context, id uuid.UUID) error
	Unanswered(ctx context.Context, page paging.Page) (paging.Result[*QueryLog], error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
}

type Handler struct {
	svc    API
	logger *slog.Logger
}

func NewHandler(svc API, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the chat endpoint. The router wraps it in a per-IP limit.
func (h *Handler) Register(r chi.Router) {
	r.Post("/chat", h.HandleAsk)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/faqs", h.handleList)
	r.Post("/faqs", h.handleCreate)
	r.Get("/faqs/{id}", h.handleGet)
	r.Put("/faqs/{id}", h.handleUpdate)
	r.Delete("/faqs/{id}", h.handleDelete)
	r.Get("/chat/unanswered", h.handleUnanswered)
	r.Get("/chat/stats", h.handleStats)
}

func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	reply, err := h.svc.Ask(r.Context(), requestcontext.UserID(r.Context()), req.Message)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Category: q.Get("category"), Query: q.Get("q"), ActiveOnly: q.Get("active") == "true"}
	result, err := h.svc.ListFAQs(r.Context(), filter, httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req FAQRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	f, err := h.svc.CreateFAQ(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, f)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	f, err := h.svc.GetFAQ(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req FAQRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	f, err := h.svc.UpdateFAQ(r.Context(), id, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.DeleteFAQ(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnanswered(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Unanswered(r.Context(), httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleStats reports the answered ratio over ?days= (default 30).
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	days := defaultStatsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStatsDays {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "days must be between 1 and 365"))
			return
		}
		days = n
	}
	since := requestcontext.Now(r.Context()).AddDate(0, 0, -days)
	stats, err := h.svc.Stats(r.Context(), since)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
