// Package app assembles stores and services from configuration. Both the
// server and intranetctl build on it so they share one wiring path.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"intranet/internal/applink"
	internalaudit "intranet/internal/audit"
	authservice "intranet/internal/auth/service"
	"intranet/internal/auth/store/lockout"
	"intranet/internal/auth/store/otp"
	"intranet/internal/auth/store/revocation"
	userstore "intranet/internal/auth/store/user"
	"intranet/internal/chatbot"
	"intranet/internal/directory"
	"intranet/internal/news"
	"intranet/internal/platform/config"
	"intranet/internal/platform/postgres"
	"intranet/internal/platform/redis"
	"intranet/internal/policy"
	"intranet/internal/report"
	"intranet/internal/safety"
)

type userStore interface {
	authservice.UserStore
	report.UserCounter
	safety.UserLister
}

type newsStore interface {
	news.Store
	report.NewsSource
}

type policyStore interface {
	policy.Store
	report.PolicySource
}

type directoryStore interface {
	directory.Store
	report.DirectorySource
}

type safetyStore interface {
	safety.AlertStore
	safety.TalkStore
}

type appStore interface {
	applink.Store
	report.AppSource
}

type chatStore interface {
	chatbot.Store
	report.ChatSource
}

// Purger drops expired revocation entries.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Stores holds one backend per module. With no database configured every
// store is in-memory, and without Redis the auth stores fall back too.
type Stores struct {
	DB    *sql.DB
	Redis *redis.Client

	Users      userStore
	OTPs       authservice.OTPStore
	Lockouts   authservice.LockoutStore
	Revocation authservice.RevocationList
	News       newsStore
	Policies   policyStore
	Directory  directoryStore
	Safety     safetyStore
	Apps       appStore
	Chat       chatStore
	Audit      internalaudit.Store
}

// OpenStores connects the configured backends and runs migrations when
// migrate is set.
func OpenStores(ctx context.Context, cfg config.Config, migrate bool, logger *slog.Logger) (*Stores, error) {
	s := &Stores{}
	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, db, logger); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		s.DB = db
		s.Users = userstore.NewPostgres(db)
		s.News = news.NewPostgresStore(db)
		s.Policies = policy.NewPostgresStore(db)
		s.Directory = directory.NewPostgresStore(db)
		s.Safety = safety.NewPostgresStore(db)
		s.Apps = applink.NewPostgresStore(db)
		s.Chat = chatbot.NewPostgresStore(db)
		s.Audit = internalaudit.NewPostgresStore(db)
		s.Revocation = revocation.NewPostgresTRL(db)
		logger.Info("using postgres stores")
	} else {
		s.Users = userstore.New()
		s.News = news.NewInMemoryStore()
		s.Policies = policy.NewInMemoryStore()
		s.Directory = directory.NewInMemoryStore()
		s.Safety = safety.NewInMemoryStore()
		s.Apps = applink.NewInMemoryStore()
		s.Chat = chatbot.NewInMemoryStore()
		s.Audit = internalaudit.NewInMemoryStore()
		s.Revocation = revocation.NewInMemoryTRL(time.Now)
		logger.Warn("DATABASE_URL not set, content is kept in memory")
	}

	if cfg.Redis.URL != "" {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.Redis = client
		s.OTPs = otp.NewRedis(client.Client)
		s.Lockouts = lockout.NewRedis(client.Client)
		s.Revocation = revocation.NewRedisTRL(client.Client)
		logger.Info("using redis for codes, lockouts and revocations")
	} else {
		s.OTPs = otp.NewInMemory()
		s.Lockouts = lockout.NewInMemory()
	}
	return s, nil
}

// Purger returns the revocation store when it needs periodic cleanup.
// Redis expires keys on its own and the in-memory list prunes lazily.
func (s *Stores) Purger() (Purger, bool) {
	p, ok := s.Revocation.(Purger)
	return p, ok
}

func (s *Stores) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
}
