package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(token string) (*JWTClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return s.claims, s.err
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	return s.revoked[jti], s.err
}

type stubAccounts struct {
	active map[uuid.UUID]bool
	err    error
}

func (s stubAccounts) IsAccountActive(_ context.Context, userID uuid.UUID) (bool, error) {
	return s.active[userID], s.err
}

func newAuthenticator(revoked TokenRevocationChecker, opts ...Option) (*Authenticator, *JWTClaims) {
	claims := &JWTClaims{
		UserID:    uuid.New(),
		Email:     "jane.doe@example.com",
		Role:      "staff",
		JTI:       "jti-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return New(stubValidator{claims: claims}, revoked, logger, Config{CookieName: "intranet_session"}, opts...), claims
}

func echoPrincipal(t *testing.T, want *JWTClaims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := requestcontext.PrincipalFrom(r.Context())
		require.True(t, ok)
		assert.Equal(t, want.UserID, p.UserID)
		assert.Equal(t, want.JTI, p.TokenID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("bearer token accepted", func(t *testing.T) {
		a, claims := newAuthenticator(nil)
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()

		a.RequireAuth(echoPrincipal(t, claims)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("cookie token accepted", func(t *testing.T) {
		a, claims := newAuthenticator(stubRevocations{})
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: "intranet_session", Value: "good"})
		rec := httptest.NewRecorder()

		a.RequireAuth(echoPrincipal(t, claims)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing token is 401", func(t *testing.T) {
		a, _ := newAuthenticator(nil)
		rec := httptest.NewRecorder()
		a.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error":"unauthorized"`)
	})

	t.Run("invalid token is 401", func(t *testing.T) {
		a, _ := newAuthenticator(nil)
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		a.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("revoked token is 401", func(t *testing.T) {
		a, _ := newAuthenticator(stubRevocations{revoked: map[string]bool{"jti-1": true}})
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		a.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "revoked")
	})

	t.Run("revocation store failure is 500", func(t *testing.T) {
		a, _ := newAuthenticator(stubRevocations{err: errors.New("redis down")})
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		a.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRequireAuth_AccountStatus(t *testing.T) {
	serve := func(a *Authenticator, next http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		a.RequireAuth(next).ServeHTTP(rec, req)
		return rec
	}

	t.Run("active account passes", func(t *testing.T) {
		accounts := stubAccounts{active: map[uuid.UUID]bool{}}
		a, claims := newAuthenticator(nil, WithAccountChecker(accounts))
		accounts.active[claims.UserID] = true
		assert.Equal(t, http.StatusNoContent, serve(a, echoPrincipal(t, claims)).Code)
	})

	t.Run("deactivated account with a live token is 401", func(t *testing.T) {
		a, _ := newAuthenticator(stubRevocations{}, WithAccountChecker(stubAccounts{}))
		rec := serve(a, http.NotFoundHandler())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "inactive")
	})

	t.Run("lookup failure is 500", func(t *testing.T) {
		a, _ := newAuthenticator(nil, WithAccountChecker(stubAccounts{err: errors.New("db down")}))
		assert.Equal(t, http.StatusInternalServerError, serve(a, http.NotFoundHandler()).Code)
	})

	t.Run("deactivated account is sent back to login", func(t *testing.T) {
		a, _ := newAuthenticator(nil, WithAccountChecker(stubAccounts{}))
		req := httptest.NewRequest(http.MethodGet, "/news", nil)
		req.AddCookie(&http.Cookie{Name: "intranet_session", Value: "good"})
		rec := httptest.NewRecorder()
		a.RequirePage("/login")(http.NotFoundHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})
}

func TestRequirePage(t *testing.T) {
	a, _ := newAuthenticator(nil)
	rec := httptest.NewRecorder()
	a.RequirePage("/login")(http.NotFoundHandler()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/news?page=2", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fnews%3Fpage%3D2", rec.Header().Get("Location"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/news", SafeNext("/news", "/"))
	assert.Equal(t, "/", SafeNext("https://evil.example", "/"))
	assert.Equal(t, "/", SafeNext("//evil.example", "/"))
	assert.Equal(t, "/", SafeNext("/\\evil.example", "/"))
	assert.Equal(t, "/", SafeNext("", "/"))
	assert.Equal(t, "/news?page=2", SafeNext("/news?page=2", "/"))
	for _, bad := range []string{
		"/\t/evil.example",
		"/\n/evil.example",
		"/\r\n/evil.example",
		"/news\\..\\evil",
		"/\x00/evil.example",
		"/\x7f/evil.example",
	} {
		assert.Equal(t, "/", SafeNext(bad, "/"), "next=%q", bad)
	}
}
