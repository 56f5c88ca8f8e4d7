// Package access enforces role permissions on routes after authentication.
package access

import (
	"log/slog"
	"net/http"

	"intranet/pkg/requestcontext"
)

// Authorizer decides whether role may perform action on object.
type Authorizer interface {
	Allowed(role, object, action string) bool
}

// Require answers 403 unless the authenticated caller's role may perform
// action on object.
func Require(authz Authorizer, object, action string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := requestcontext.PrincipalFrom(ctx)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"authentication required"}`))
				return
			}
			if !authz.Allowed(p.Role, object, action) {
				logger.WarnContext(ctx, "permission denied",
					"user_id", p.UserID.String(),
					"role", p.Role,
					"object", object,
					"action", action,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"insufficient permissions"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireByMethod checks "read" for safe methods and "write" for the rest.
func RequireByMethod(authz Authorizer, object string, logger *slog.Logger) func(http.Handler) http.Handler {
	read := Require(authz, object, "read", logger)
	write := Require(authz, object, "write", logger)
	return func(next http.Handler) http.Handler {
		readNext, writeNext := read(next), write(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				readNext.ServeHTTP(w, r)
			default:
				writeNext.ServeHTTP(w, r)
			}
		})
	}
}
