package policy

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
	ListPublished(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Policy], error)
	GetPublished(ctx context.Context, slug string) (*Policy, error)
	Acknowledge(ctx context.Context, userID, policyID uuid.UUID) (*Acknowledgement, error)
	PendingAcknowledgements(ctx context.Context, userID uuid.UUID) ([]*Policy, error)
	List(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Policy], error)
	Get(ctx context.Context, id uuid.UUID) (*Policy, error)
	Create(ctx context.Context, req *PolicyRequest) (*Policy, error)
	Update(ctx context.Context, id uuid.UUID, req *PolicyRequest) (*Policy, error)
	Publish(ctx context.Context, id uuid.UUID) (*Policy, error)
	Archive(ctx context.Context, id uuid.UUID) (*Policy, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Acknowledgements(ctx context.Context, policyID uuid.UUID) (*AckStatus, error)
}

type Handler struct {
	svc    API
	logger *slog.Logger
}

func NewHandler(svc API, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/policies", h.handleListPublished)
	r.Get("/policies/pending", h.handlePending)
	r.Get("/policies/{slug}", h.handleGetPublished)
	r.Post("/policies/{id}/acknowledge", h.handleAcknowledge)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/policies", h.handleList)
	r.Post("/policies", h.handleCreate)
	r.Get("/policies/{id}", h.handleGet)
	r.Put("/policies/{id}", h.handleUpdate)
	r.Delete("/policies/{id}", h.handleDelete)
	r.Post("/policies/{id}/publish", h.handlePublish)
	r.Post("/policies/{id}/archive", h.handleArchive)
	r.Get("/policies/{id}/acknowledgements", h.handleAcknowledgements)
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	return Filter{Status: Status(q.Get("status")), Category: q.Get("category"), Query: q.Get("q")}
}

func (h *Handler) handleListPublished(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPublished(r.Context(), filterFromQuery(r), httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.PendingAcknowledgements(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"policies": pending})
}

func (h *Handler) handleGetPublished(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPublished(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id uuid.UUID) (any, error) {
		return h.svc.Acknowledge(r.Context(), requestcontext.UserID(r.Context()), id)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.List(r.Context(), filterFromQuery(r), httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id uuid.UUID) (any, error) {
		return h.svc.Get(r.Context(), id)
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req PolicyRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.svc.Update(r.Context(), id, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id uuid.UUID) (any, error) {
		return h.svc.Publish(r.Context(), id)
	})
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id uuid.UUID) (any, error) {
		return h.svc.Archive(r.Context(), id)
	})
}

func (h *Handler) handleAcknowledgements(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id uuid.UUID) (any, error) {
		return h.svc.Acknowledgements(r.Context(), id)
	})
}

func (h *Handler) withID(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID) (any, error)) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := fn(id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
