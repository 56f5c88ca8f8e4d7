// Package httpapi assembles the HTTP surface: JSON API, admin API, portal
// pages and operational probes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"intranet/internal/platform/config"
	"intranet/pkg/platform/httputil"
	"intranet/pkg/platform/middleware/access"
	authmw "intranet/pkg/platform/middleware/auth"
	"intranet/pkg/platform/middleware/metadata"
	"intranet/pkg/platform/middleware/requestlog"
	"intranet/pkg/platform/middleware/requesttime"
)

const (
	requestTimeout = 30 * time.Second
	readyTimeout   = 2 * time.Second
)

// ContentRoutes is a module with staff routes and admin routes.
type ContentRoutes interface {
	Register(r chi.Router)
	RegisterAdmin(r chi.Router)
}

// AdminRoutes is a module that only exposes admin routes.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

type AuthRoutes interface {
	RegisterPublic(r chi.Router)
	RegisterOTP(r chi.Router)
	RegisterSession(r chi.Router)
	RegisterAdmin(r chi.Router)
}

type PortalRoutes interface {
	Register(r chi.Router, guard func(http.Handler) http.Handler)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Deps lists everything the router mounts. Nil modules are skipped.
type Deps struct {
	Logger         *slog.Logger
	Observer       requestlog.Observer
	MetricsHandler http.Handler
	Authenticator  *authmw.Authenticator
	Authorizer     access.Authorizer
	RateLimits     config.RateLimitConfig
	CORSOrigins    []string
	Checks         []Check

	Auth      AuthRoutes
	News      ContentRoutes
	Policies  ContentRoutes
	Directory ContentRoutes
	Safety    ContentRoutes
	Apps      ContentRoutes
	Chat      ContentRoutes
	Uploads   AdminRoutes
	Audit     AdminRoutes
	Reports   AdminRoutes
	Portal    PortalRoutes
}

// NewRouter builds the root handler.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(requestlog.Middleware(logger, d.Observer))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(d.Checks, logger))
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		api.Use(chimw.Timeout(requestTimeout))

		if d.Auth != nil {
			api.Group(func(r chi.Router) {
				r.Use(limitByIP(d.RateLimits.LoginPerMinute))
				d.Auth.RegisterPublic(r)
			})
			api.Group(func(r chi.Router) {
				r.Use(limitByIP(d.RateLimits.OTPPerMinute))
				d.Auth.RegisterOTP(r)
			})
		}

		api.Group(func(r chi.Router) {
			r.Use(d.Authenticator.RequireAuth)
			if d.Auth != nil {
				d.Auth.RegisterSession(r)
			}
			for _, m := range []ContentRoutes{d.News, d.Policies, d.Directory, d.Safety, d.Apps} {
				if m != nil {
					m.Register(r)
				}
			}
			if d.Chat != nil {
				r.Group(func(r chi.Router) {
					r.Use(limitByIP(d.RateLimits.ChatPerMinute))
					d.Chat.Register(r)
				})
			}

			r.Route("/admin", func(admin chi.Router) {
				mount := func(object string, m AdminRoutes) {
					if m == nil {
						return
					}
					admin.Group(func(g chi.Router) {
						g.Use(access.RequireByMethod(d.Authorizer, object, logger))
						m.RegisterAdmin(g)
					})
				}
				mount("users", d.Auth)
				mount("news", d.News)
				mount("policies", d.Policies)
				mount("directory", d.Directory)
				mount("safety", d.Safety)
				mount("apps", d.Apps)
				mount("chatbot", d.Chat)
				mount("uploads", d.Uploads)
				mount("audit", d.Audit)
				mount("reports", d.Reports)
			})
		})
	})

	if d.Portal != nil {
		r.Group(func(r chi.Router) {
			r.Use(limitPortalLogin(d.RateLimits.LoginPerMinute))
			d.Portal.Register(r, d.Authenticator.RequirePage("/login"))
		})
	}
	return r
}

// limitByIP answers 429 with the JSON error envelope once an address exceeds
// perMinute requests. Zero disables the limit.
func limitByIP(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(keyByClientIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limited",
				"error_description": "too many requests, try again later",
			})
		}),
	)
}

// limitPortalLogin rate limits only form posts to /login.
func limitPortalLogin(perMinute int) func(http.Handler) http.Handler {
	limited := limitByIP(perMinute)
	return func(next http.Handler) http.Handler {
		guarded := limited(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && r.URL.Path == "/login" {
				guarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// keyByClientIP uses the address resolved by the metadata middleware so
// limits follow X-Forwarded-For the same way audit records do.
func keyByClientIP(r *http.Request) (string, error) {
	return metadata.ClientIPFromRequest(r), nil
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func readiness(checks []Check, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		status := http.StatusOK
		results := make([]checkResult, 0, len(checks))
		for _, c := range checks {
			res := checkResult{Name: c.Name, Status: "ok"}
			if err := c.Fn(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", c.Name, "error", err)
				res.Status = "unavailable"
				res.Error = err.Error()
				status = http.StatusServiceUnavailable
			}
			results = append(results, res)
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "unavailable"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}
