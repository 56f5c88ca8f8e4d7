// Package auth authenticates requests from the session cookie or a bearer
// token and places the caller in the request context.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"intranet/pkg/requestcontext"
)

// JWTValidator validates a raw token string.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// TokenRevocationChecker reports whether a token ID was revoked (logout).
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// AccountChecker reports whether the account behind a token may still sign
// in. Tokens outlive deactivation, so it is consulted on every request.
type AccountChecker interface {
	IsAccountActive(ctx context.Context, userID uuid.UUID) (bool, error)
}

// JWTClaims is the subset of token claims the middleware needs.
type JWTClaims struct {
	UserID    uuid.UUID
	Email     string
	Name      string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

// Config selects where tokens are read from.
type Config struct {
	CookieName string
}

type failure struct {
	status      int
	description string
}

// Authenticator holds the collaborators shared by the API and page guards.
type Authenticator struct {
	validator JWTValidator
	revoked   TokenRevocationChecker
	accounts  AccountChecker
	logger    *slog.Logger
	cfg       Config
}

type Option func(*Authenticator)

// WithAccountChecker rejects tokens whose account has been deactivated or
// deleted since they were issued.
func WithAccountChecker(c AccountChecker) Option {
	return func(a *Authenticator) {
		a.accounts = c
	}
}

func New(validator JWTValidator, revoked TokenRevocationChecker, logger *slog.Logger, cfg Config, opts ...Option) *Authenticator {
	a := &Authenticator{validator: validator, revoked: revoked, logger: logger, cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func (a *Authenticator) TokenFromRequest(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if a.cfg.CookieName != "" {
		if c, err := r.Cookie(a.cfg.CookieName); err == nil {
			return c.Value
		}
	}
	return ""
}

func (a *Authenticator) authenticate(r *http.Request) (context.Context, *failure) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	token := a.TokenFromRequest(r)
	if token == "" {
		a.logger.DebugContext(ctx, "unauthorized access - missing token", "request_id", requestID)
		return nil, &failure{http.StatusUnauthorized, "Missing session or Authorization header"}
	}

	claims, err := a.validator.ValidateToken(token)
	if err != nil {
		a.logger.WarnContext(ctx, "unauthorized access - invalid token",
			"error", err,
			"request_id", requestID,
		)
		return nil, &failure{http.StatusUnauthorized, "Invalid or expired token"}
	}

	if a.revoked != nil {
		if claims.JTI == "" {
			a.logger.WarnContext(ctx, "unauthorized access - missing token jti", "request_id", requestID)
			return nil, &failure{http.StatusUnauthorized, "Invalid or expired token"}
		}
		revoked, err := a.revoked.IsTokenRevoked(ctx, claims.JTI)
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to check token revocation",
				"error", err,
				"request_id", requestID,
			)
			return nil, &failure{http.StatusInternalServerError, "Failed to validate token"}
		}
		if revoked {
			a.logger.WarnContext(ctx, "unauthorized access - token revoked",
				"jti", claims.JTI,
				"request_id", requestID,
			)
			return nil, &failure{http.StatusUnauthorized, "Token has been revoked"}
		}
	}

	if a.accounts != nil {
		active, err := a.accounts.IsAccountActive(ctx, claims.UserID)
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to check account status",
				"error", err,
				"request_id", requestID,
			)
			return nil, &failure{http.StatusInternalServerError, "Failed to validate token"}
		}
		if !active {
			a.logger.WarnContext(ctx, "unauthorized access - account inactive",
				"user_id", claims.UserID,
				"request_id", requestID,
			)
			return nil, &failure{http.StatusUnauthorized, "Account is inactive"}
		}
	}

	return requestcontext.WithPrincipal(ctx, requestcontext.Principal{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      claims.Role,
		TokenID:   claims.JTI,
		ExpiresAt: claims.ExpiresAt,
	}), nil
}

// RequireAuth guards JSON endpoints, answering 401 with an error envelope.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, fail := a.authenticate(r)
		if fail != nil {
			code := "unauthorized"
			if fail.status == http.StatusInternalServerError {
				code = "internal_error"
			}
			writeJSONError(w, fail.status, code, fail.description)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePage guards HTML pages, redirecting anonymous visitors to loginPath
// with the original path in ?next=.
func (a *Authenticator) RequirePage(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, fail := a.authenticate(r)
			if fail != nil {
				if fail.status == http.StatusInternalServerError {
					http.Error(w, "internal server error", fail.status)
					return
				}
				target := loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SafeNext returns next when it is a local absolute path, else fallback.
// Browsers drop tab and newline characters and treat a backslash as a
// slash, so any control character or backslash is rejected outright.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return fallback
	}
	if strings.ContainsFunc(next, func(r rune) bool { return r == '\\' || unicode.IsControl(r) }) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}
