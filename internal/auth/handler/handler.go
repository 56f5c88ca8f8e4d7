package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"intranet/internal/auth/models"
	"intranet/pkg/domain"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/httputil"
	authmw "intranet/pkg/platform/middleware/auth"
	"intranet/pkg/platform/paging"
	"intranet/pkg/requestcontext"
)

// Service defines the auth and account operations the handler exposes.
type Service interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	RequestOTP(ctx context.Context, req *models.OTPRequest) error
	VerifyOTP(ctx context.Context, req *models.OTPVerifyRequest) (*models.LoginResult, error)
	ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, userID uuid.UUID, req *models.ChangePasswordRequest) error
	Logout(ctx context.Context, principal requestcontext.Principal) error
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter, page paging.Page) (paging.Result[*models.User], error)
	UpdateUser(ctx context.Context, id uuid.UUID, req *models.UpdateUserRequest) (*models.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// Handler serves /auth and /admin/users.
type Handler struct {
	auth   Service
	logger *slog.Logger
	cookie authmw.SessionCookie
}

func New(auth Service, logger *slog.Logger, cookie authmw.SessionCookie) *Handler {
	return &Handler{auth: auth, logger: logger, cookie: cookie}
}

// RegisterPublic mounts the unauthenticated password sign-in routes. Callers
// wrap them with rate limits.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/password/reset", h.handleResetPassword)
}

// RegisterOTP mounts the one-time code routes, limited separately from login.
func (h *Handler) RegisterOTP(r chi.Router) {
	r.Post("/auth/otp/request", h.handleRequestOTP)
	r.Post("/auth/otp/verify", h.handleVerifyOTP)
}

// RegisterSession mounts routes for any signed-in user.
func (h *Handler) RegisterSession(r chi.Router) {
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/me", h.handleMe)
	r.Post("/auth/password/change", h.handleChangePassword)
}

// RegisterAdmin mounts account administration.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/users", h.handleListUsers)
	r.Post("/users", h.handleCreateUser)
	r.Get("/users/{id}", h.handleGetUser)
	r.Patch("/users/{id}", h.handleUpdateUser)
	r.Put("/users/{id}/active", h.handleSetActive)
	r.Delete("/users/{id}", h.handleDeleteUser)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		h.writeAuthError(w, r, "login failed", err)
		return
	}
	h.cookie.Set(w, result.AccessToken, result.ExpiresAt)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req models.OTPRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.auth.RequestOTP(r.Context(), &req); err != nil {
		h.writeAuthError(w, r, "otp request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the address belongs to an account, a code has been sent.",
	})
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.OTPVerifyRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.auth.VerifyOTP(r.Context(), &req)
	if err != nil {
		h.writeAuthError(w, r, "otp verification failed", err)
		return
	}
	h.cookie.Set(w, result.AccessToken, result.ExpiresAt)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), &req); err != nil {
		h.writeAuthError(w, r, "password reset failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.PrincipalFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.auth.Logout(ctx, principal); err != nil {
		h.logger.ErrorContext(ctx, "logout failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	h.cookie.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), requestcontext.UserID(r.Context()), &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.UserFilter{
		Role:  models.Role(q.Get("role")),
		Query: q.Get("q"),
	}
	switch strings.ToLower(q.Get("active")) {
	case "true":
		active := true
		filter.Active = &active
	case "false":
		active := false
		filter.Active = &active
	}
	result, err := h.auth.ListUsers(r.Context(), filter, httputil.PageFromQuery(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.auth.CreateUser(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.auth.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.UpdateUserRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.auth.UpdateUser(r.Context(), id, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.SetActiveRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.auth.SetActive(r.Context(), id, req.Active)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.auth.DeleteUser(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	httputil.WriteError(w, err)
}
