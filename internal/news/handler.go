package news

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"intranet/pkg/domain"
	"intranet/pkg/platform/httputil"
	"intranet/pkg/platform/paging"
)

// API is the service surface the handler needs.
type API interface {
	ListPublished(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Article], error)
	GetPublished(ctx context.Context, slug string) (*Article, error)
	Categories(ctx context.Context) ([]CategoryCount, error)
	List(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Article], error)
	Get(ctx context.Context, id uuid.UUID) (*Article, error)
	Create(ctx context.Context, req *ArticleRequest) (*Article, error)
	Update(ctx context.Context, id uuid.UUID, req *ArticleRequest) (*Article, error)
	Publish(ctx context.Context, id uuid.UUID) (*Article, error)
	Unpublish(ctx context.Context, id uuid.UUID) (*Article, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	svc    API
	logger *slog.Logger
}

func NewHandler(svc API, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/news", h.handleListPublished)
	r.Get("/news/categories", h.handleCategories)
	r.Get("/news/{slug}", h.handleGetPublished)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/news", h.handleList)
	r.Post("/news", h.handleCreate)
	r.Get("/news/{id}", h.handleGet)
	r.Put("/news/{id}", h.handleUpdate)
	r.Delete("/news/{id}", h.handleDelete)
	r.Post("/news/{id}/publish", h.handlePublish)
	r.Post("/news/{id}/unpublish", h.handleUnpublish)
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	return Filter{
		Status:   Status(q.Get("status")),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Query:    q.Get("q"),
	}
}

func (h *Handler) handleListPublished(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPublished(r.Context(), filterFromQuery(r), httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (h *Handler) handleGetPublished(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetPublished(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
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
	var req ArticleRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
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
	var req ArticleRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.svc.Update(r.Context(), id, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id uuid.UUID) (any, error) {
		return h.svc.Publish(r.Context(), id)
	})
}

func (h *Handler) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id uuid.UUID) (any, error) {
		return h.svc.Unpublish(r.Context(), id)
	})
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

// withID parses {id} and writes fn's result as 200 JSON.
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
