package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/platform/authz"
	"intranet/internal/platform/config"
	authmw "intranet/pkg/platform/middleware/auth"
	"intranet/pkg/requestcontext"
	"intranet/pkg/testutil"
)

type tokenTable map[string]string

func (t tokenTable) ValidateToken(token string) (*authmw.JWTClaims, error) {
	role, ok := t[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &authmw.JWTClaims{UserID: uuid.New(), Email: role + "@example.com", Role: role, JTI: uuid.NewString(), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// stubModule answers 200 on one staff and one admin route.
type stubModule struct{ name string }

func (m stubModule) Register(r chi.Router) {
	r.Get("/"+m.name, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.Role(r.Context())))
	})
}

func (m stubModule) RegisterAdmin(r chi.Router) {
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	r.Get("/"+m.name, ok)
	r.Post("/"+m.name, ok)
}

type stubAuth struct{ stubModule }

func (stubAuth) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func (stubAuth) RegisterOTP(r chi.Router) {
	r.Post("/auth/otp/request", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
}

func (stubAuth) RegisterSession(r chi.Router) {
	r.Get("/auth/me", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

type stubPortal struct{}

func (stubPortal) Register(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Get("/login", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.With(guard).Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func newTestRouter(t *testing.T, limits config.RateLimitConfig, checks ...Check) http.Handler {
	t.Helper()
	enforcer, err := authz.New(nil)
	require.NoError(t, err)
	tokens := tokenTable{"admin-token": "admin", "editor-token": "editor", "staff-token": "staff"}
	return NewRouter(Deps{
		Authenticator:  authmw.New(tokens, nil, slogDiscard(), authmw.Config{CookieName: "intranet_session"}),
		Authorizer:     enforcer,
		RateLimits:     limits,
		Checks:         checks,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		Auth:           stubAuth{stubModule{"users"}},
		News:           stubModule{"news"},
		Chat:           stubModule{"chat"},
		Audit:          stubModule{"audit"},
		Portal:         stubPortal{},
	})
}

func call(t *testing.T, h http.Handler, method, path, token string) int {
	t.Helper()
	req := testutil.NewRequest(t, method, path)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(h, req).Code
}

func TestRouter_RoleEnforcement(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"anonymous api", http.MethodGet, "/api/news", "", http.StatusUnauthorized},
		{"staff reads content", http.MethodGet, "/api/news", "staff-token", http.StatusOK},
		{"staff blocked from admin", http.MethodGet, "/api/admin/news", "staff-token", http.StatusForbidden},
		{"editor manages news", http.MethodPost, "/api/admin/news", "editor-token", http.StatusOK},
		{"editor blocked from users", http.MethodGet, "/api/admin/users", "editor-token", http.StatusForbidden},
		{"editor blocked from audit", http.MethodGet, "/api/admin/audit", "editor-token", http.StatusForbidden},
		{"admin manages users", http.MethodPost, "/api/admin/users", "admin-token", http.StatusOK},
		{"admin reads audit", http.MethodGet, "/api/admin/audit", "admin-token", http.StatusOK},
		{"session route", http.MethodGet, "/api/auth/me", "staff-token", http.StatusOK},
		{"login is public", http.MethodPost, "/api/auth/login", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, call(t, h, tt.method, tt.path, tt.token))
		})
	}
}

func TestRouter_RateLimitsLoginOTPAndChat(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{LoginPerMinute: 2, OTPPerMinute: 1, ChatPerMinute: 1})

	assert.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/auth/login", ""))
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/auth/login", ""))
	assert.Equal(t, http.StatusTooManyRequests, call(t, h, http.MethodPost, "/api/auth/login", ""))

	assert.Equal(t, http.StatusAccepted, call(t, h, http.MethodPost, "/api/auth/otp/request", ""))
	assert.Equal(t, http.StatusTooManyRequests, call(t, h, http.MethodPost, "/api/auth/otp/request", ""))

	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/api/chat", "staff-token"))
	assert.Equal(t, http.StatusTooManyRequests, call(t, h, http.MethodGet, "/api/chat", "staff-token"))

	// unrelated routes are not limited
	for range 3 {
		assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/api/news", "staff-token"))
	}
}

func TestRouter_RateLimitedResponseUsesErrorEnvelope(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{OTPPerMinute: 1})
	call(t, h, http.MethodPost, "/api/auth/otp/request", "")

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodPost, "/api/auth/otp/request"))

	testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
}

func TestRouter_Probes(t *testing.T) {
	healthy := Check{Name: "postgres", Fn: func(context.Context) error { return nil }}
	h := newTestRouter(t, config.RateLimitConfig{}, healthy)

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")

	rr = testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/readyz"))
	testutil.AssertStatusOK(t, rr)

	rr = testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "# metrics")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouter_ReadinessFailure(t *testing.T) {
	down := Check{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }}
	h := newTestRouter(t, config.RateLimitConfig{}, down)

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/readyz"))

	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	testutil.AssertJSONContains(t, rr, "status", "unavailable")
}

func TestRouter_PortalRedirectsAnonymousVisitors(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{})

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/"))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?next=%2F", rr.Header().Get("Location"))
}
