package report

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"intranet/pkg/platform/httputil"
)

type API interface {
	Summary(ctx context.Context) (*Summary, error)
}

type Handler struct {
	svc API
}

func NewHandler(svc API) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/reports/summary", h.handleSummary)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
