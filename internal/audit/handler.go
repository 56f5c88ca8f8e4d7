package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/httputil"
	"intranet/pkg/platform/paging"
)

type API interface {
	List(ctx context.Context, q Query, page paging.Page) (paging.Result[audit.Event], error)
}

type Handler struct {
	svc API
}

func NewHandler(svc API) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/audit", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := Query{
		Action:   q.Get("action"),
		Resource: q.Get("resource"),
		Actor:    q.Get("actor"),
	}
	if raw := q.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "days must be a positive number"))
			return
		}
		query.Days = days
	}
	result, err := h.svc.List(r.Context(), query, httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
