package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"intranet/internal/applink"
	internalaudit "intranet/internal/audit"
	authservice "intranet/internal/auth/service"
	"intranet/internal/chatbot"
	"intranet/internal/directory"
	jwttoken "intranet/internal/jwt_token"
	"intranet/internal/mail"
	"intranet/internal/news"
	"intranet/internal/platform/config"
	"intranet/internal/platform/metrics"
	"intranet/internal/policy"
	"intranet/internal/report"
	"intranet/internal/safety"
	"intranet/internal/upload"
)

// Infra is the cross-cutting plumbing every service shares.
type Infra struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Audit   *internalaudit.Publisher
	Mailer  *mail.Queue
}

// Services is the full set of domain services.
type Services struct {
	Tokens    *jwttoken.JWTService
	Auth      *authservice.Service
	News      *news.Service
	Policies  *policy.Service
	Directory *directory.Service
	Safety    *safety.Service
	Apps      *applink.Service
	Chat      *chatbot.Service
	Audit     *internalaudit.Service
	Reports   *report.Service
	// Uploads is nil when no CDN is configured.
	Uploads *upload.Service
}

// NewServices builds every service over the given stores.
func NewServices(cfg config.Config, st *Stores, infra Infra) (*Services, error) {
	if infra.Logger == nil || infra.Audit == nil || infra.Mailer == nil || infra.Metrics == nil {
		return nil, errors.New("logger, audit publisher, mailer and metrics are required")
	}
	log := infra.Logger
	svc := &Services{
		Tokens: jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience),
	}

	var err error
	svc.Auth, err = authservice.New(st.Users, st.OTPs, st.Lockouts, st.Revocation, svc.Tokens, infra.Mailer,
		authservice.WithLogger(log.With("component", "auth")),
		authservice.WithAuditPublisher(infra.Audit),
		authservice.WithMetrics(infra.Metrics),
		authservice.WithConfig(authConfig(cfg.Auth)),
	)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	if svc.News, err = news.NewService(st.News,
		news.WithLogger(log.With("component", "news")),
		news.WithAuditPublisher(infra.Audit),
		news.WithMetrics(infra.Metrics),
	); err != nil {
		return nil, fmt.Errorf("news service: %w", err)
	}
	if svc.Policies, err = policy.NewService(st.Policies,
		policy.WithLogger(log.With("component", "policy")),
		policy.WithAuditPublisher(infra.Audit),
		policy.WithMetrics(infra.Metrics),
	); err != nil {
		return nil, fmt.Errorf("policy service: %w", err)
	}
	if svc.Directory, err = directory.NewService(st.Directory,
		directory.WithLogger(log.With("component", "directory")),
		directory.WithAuditPublisher(infra.Audit),
	); err != nil {
		return nil, fmt.Errorf("directory service: %w", err)
	}
	if svc.Safety, err = safety.NewService(st.Safety, st.Safety,
		safety.WithLogger(log.With("component", "safety")),
		safety.WithAuditPublisher(infra.Audit),
		safety.WithCriticalAlertMail(st.Users, infra.Mailer, cfg.Server.BaseURL),
	); err != nil {
		return nil, fmt.Errorf("safety service: %w", err)
	}
	if svc.Apps, err = applink.NewService(st.Apps,
		applink.WithLogger(log.With("component", "applink")),
		applink.WithAuditPublisher(infra.Audit),
	); err != nil {
		return nil, fmt.Errorf("applink service: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Chatbot.Timezone)
	if err != nil {
		return nil, fmt.Errorf("chatbot timezone: %w", err)
	}
	if svc.Chat, err = chatbot.NewService(st.Chat,
		chatbot.WithLogger(log.With("component", "chatbot")),
		chatbot.WithAuditPublisher(infra.Audit),
		chatbot.WithMetrics(infra.Metrics),
		chatbot.WithThreshold(cfg.Chatbot.MinScore),
		chatbot.WithMaxSuggestions(cfg.Chatbot.MaxSuggestions),
		chatbot.WithLocation(loc),
	); err != nil {
		return nil, fmt.Errorf("chatbot service: %w", err)
	}

	if svc.Audit, err = internalaudit.NewService(st.Audit); err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}
	if svc.Reports, err = report.NewService(report.Sources{
		News:      st.News,
		Policies:  st.Policies,
		Users:     st.Users,
		Directory: st.Directory,
		Alerts:    st.Safety,
		Apps:      st.Apps,
		Chat:      st.Chat,
	}, report.WithLogger(log.With("component", "report"))); err != nil {
		return nil, fmt.Errorf("report service: %w", err)
	}

	if cfg.CDN.Enabled() {
		svc.Uploads = upload.NewService(upload.NewClient(cfg.CDN, log.With("component", "cdn")),
			upload.WithLogger(log.With("component", "upload")),
			upload.WithAuditPublisher(infra.Audit),
			upload.WithMetrics(infra.Metrics),
			upload.WithMaxBytes(cfg.CDN.MaxBytes),
		)
	} else {
		log.Warn("CDN not configured, uploads are disabled")
	}
	return svc, nil
}

func authConfig(c config.AuthConfig) authservice.Config {
	out := authservice.DefaultConfig()
	out.TokenTTL = c.TokenTTL
	out.OTPTTL = c.OTPTTL
	out.OTPMaxAttempts = c.OTPMaxAttempts
	out.OTPResendCooldown = c.OTPResendCooldown
	out.OTPHourlyLimit = c.OTPHourlyLimit
	out.LockoutThreshold = c.LockoutThreshold
	out.LockoutWindow = c.LockoutWindow
	out.LockoutDuration = c.LockoutDuration
	return out
}
