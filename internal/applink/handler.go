package applink

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"intranet/pkg/domain"
	"intranet/pkg/platform/httputil"
)

type API interface {
	Launcher(ctx context.Context) ([]Group, error)
	List(ctx context.Context, category string) ([]*AppLink, error)
	Get(ctx context.Context, id uuid.UUID) (*AppLink, error)
	Create(ctx context.Context, req *AppLinkRequest) (*AppLink, error)
	Update(ctx context.Context, id uuid.UUID, req *AppLinkRequest) (*AppLink, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, ids []uuid.UUID) ([]*AppLink, error)
}

type Handler struct {
	svc    API
	logger *slog.Logger
}

func NewHandler(svc API, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/apps", h.handleLauncher)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/apps", h.handleList)
	r.Post("/apps", h.handleCreate)
	r.Put("/apps/order", h.handleReorder)
	r.Get("/apps/{id}", h.handleGet)
	r.Put("/apps/{id}", h.handleUpdate)
	r.Delete("/apps/{id}", h.handleDelete)
}

func (h *Handler) handleLauncher(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Launcher(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"links": links})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req AppLinkRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	l, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	links, err := h.svc.Reorder(r.Context(), req.IDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"links": links})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	l, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req AppLinkRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	l, err := h.svc.Update(r.Context(), id, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
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
