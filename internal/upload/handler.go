package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/httputil"
)

// multipartOverhead is allowed on top of the file size for form fields and
// part headers.
const multipartOverhead = 64 << 10

type API interface {
	Upload(ctx context.Context, file io.Reader, filename, contentType string, kind Kind) (*Result, error)
	MaxBytes() int64
}

type Handler struct {
	svc    API
	logger *slog.Logger
}

func NewHandler(svc API, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/uploads", h.handleUpload)
}

// handleUpload takes multipart/form-data with a "file" part and an optional
// "kind" field (image or document).
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(h.svc.MaxBytes() + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file is too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected multipart/form-data"))
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	kind, err := ParseKind(r.FormValue("kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file part is required"))
		return
	}
	defer file.Close()

	res, err := h.svc.Upload(r.Context(), file, header.Filename, header.Header.Get("Content-Type"), kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}
