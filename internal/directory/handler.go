package directory

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"intranet/pkg/domain"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/httputil"
	"intranet/pkg/platform/paging"
)

// maxImportBytes bounds CSV uploads.
const maxImportBytes = 5 << 20

type API interface {
	Search(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Employee], error)
	List(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Employee], error)
	Get(ctx context.Context, id uuid.UUID) (*Employee, error)
	Departments(ctx context.Context) ([]DepartmentCount, error)
	DirectReports(ctx context.Context, id uuid.UUID) ([]*Employee, error)
	Create(ctx context.Context, req *EmployeeRequest) (*Employee, error)
	Update(ctx context.Context, id uuid.UUID, req *EmployeeRequest) (*Employee, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Import(ctx context.Context, r io.Reader) (*ImportReport, error)
}

type Handler struct {
	svc    API
	logger *slog.Logger
}

func NewHandler(svc API, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/directory", h.handleSearch)
	r.Get("/directory/departments", h.handleDepartments)
	r.Get("/directory/{id}", h.handleGet)
	r.Get("/directory/{id}/reports", h.handleDirectReports)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/employees", h.handleList)
	r.Post("/employees", h.handleCreate)
	r.Post("/employees/import", h.handleImport)
	r.Get("/employees/{id}", h.handleGet)
	r.Put("/employees/{id}", h.handleUpdate)
	r.Delete("/employees/{id}", h.handleDelete)
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	f := Filter{Query: q.Get("q"), Department: q.Get("department"), Location: q.Get("location")}
	switch strings.ToLower(q.Get("active")) {
	case "true":
		active := true
		f.Active = &active
	case "false":
		active := false
		f.Active = &active
	}
	return f
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Search(r.Context(), filterFromQuery(r), httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.List(r.Context(), filterFromQuery(r), httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDepartments(w http.ResponseWriter, r *http.Request) {
	deps, err := h.svc.Departments(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"departments": deps})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleDirectReports(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reports, err := h.svc.DirectReports(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req EmployeeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.svc.Update(r.Context(), id, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
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

// handleImport accepts either a multipart form with a "file" field or a raw
// text/csv body.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "multipart field \"file\" is required"))
			return
		}
		defer file.Close()
		src = file
	}
	report, err := h.svc.Import(r.Context(), src)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(r.Context(), "directory import failed", "error", err)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
