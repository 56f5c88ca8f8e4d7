package app

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intranet/internal/applink"
	internalaudit "intranet/internal/audit"
	authhandler "intranet/internal/auth/handler"
	"intranet/internal/chatbot"
	"intranet/internal/directory"
	httpapi "intranet/internal/http"
	jwttoken "intranet/internal/jwt_token"
	"intranet/internal/news"
	"intranet/internal/platform/authz"
	"intranet/internal/platform/config"
	"intranet/internal/policy"
	"intranet/internal/portal"
	"intranet/internal/report"
	"intranet/internal/safety"
	"intranet/internal/upload"
	authmw "intranet/pkg/platform/middleware/auth"
)

// NewHTTPHandler mounts every module on the root router. Passing a nil
// metrics handler serves the default Prometheus registry.
func NewHTTPHandler(cfg config.Config, svc *Services, infra Infra, metricsHandler http.Handler, checks ...httpapi.Check) (http.Handler, error) {
	log := infra.Logger
	enforcer, err := authz.New(log.With("component", "authz"))
	if err != nil {
		return nil, fmt.Errorf("authorizer: %w", err)
	}
	cookie := authmw.SessionCookie{Name: cfg.Auth.CookieName, Secure: cfg.Server.SecureCookies}
	authenticator := authmw.New(
		jwttoken.NewJWTServiceAdapter(svc.Tokens),
		svc.Auth,
		log.With("component", "authn"),
		authmw.Config{CookieName: cfg.Auth.CookieName},
		authmw.WithAccountChecker(svc.Auth),
	)
	pages, err := portal.New(portal.Services{
		Auth:      svc.Auth,
		News:      svc.News,
		Policies:  svc.Policies,
		Directory: svc.Directory,
		Safety:    svc.Safety,
		Apps:      svc.Apps,
	}, cookie, log.With("component", "portal"))
	if err != nil {
		return nil, fmt.Errorf("portal: %w", err)
	}
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	deps := httpapi.Deps{
		Logger:         log,
		Observer:       infra.Metrics,
		MetricsHandler: metricsHandler,
		Authenticator:  authenticator,
		Authorizer:     enforcer,
		RateLimits:     cfg.RateLimit,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Checks:         checks,

		Auth:      authhandler.New(svc.Auth, log.With("component", "auth-http"), cookie),
		News:      news.NewHandler(svc.News, log),
		Policies:  policy.NewHandler(svc.Policies, log),
		Directory: directory.NewHandler(svc.Directory, log),
		Safety:    safety.NewHandler(svc.Safety, log),
		Apps:      applink.NewHandler(svc.Apps, log),
		Chat:      chatbot.NewHandler(svc.Chat, log),
		Audit:     internalaudit.NewHandler(svc.Audit),
		Reports:   report.NewHandler(svc.Reports),
		Portal:    pages,
	}
	if svc.Uploads != nil {
		deps.Uploads = upload.NewHandler(svc.Uploads, log)
	}
	return httpapi.NewRouter(deps), nil
}
