package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"intranet/internal/app"
	"intranet/internal/mail"
	"intranet/internal/platform/config"
	"intranet/internal/platform/logger"
	"intranet/internal/platform/metrics"
)

const defaultTimeout = 5 * time.Minute

type rootOptions struct {
	logLevel string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "intranetctl",
		Short: "Administer the intranet database",
		Long: `intranetctl reads the same environment as the server (DATABASE_URL,
REDIS_URL, SMTP_HOST and so on).

Available subcommands:
  migrate       - Apply pending schema migrations
  seed          - Load users and content from a YAML file
  create-admin  - Create an administrator account if it does not exist`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "Operation timeout")

	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newSeedCmd(opts))
	root.AddCommand(newCreateAdminCmd(opts))
	return root
}

// env is what every subcommand works with.
type env struct {
	cfg    config.Config
	log    *slog.Logger
	stores *app.Stores
	svc    *app.Services
	mailer *mail.Queue
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func (o *rootOptions) loadConfig() (config.Config, *slog.Logger, error) {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, logger.New(cfg.Server.Environment, o.logLevel), nil
}

// open builds stores and services. Mail is started so alert notifications
// raised while seeding are delivered before close returns.
func (o *rootOptions) open(ctx context.Context) (*env, error) {
	cfg, log, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := app.OpenStores(ctx, cfg, true, log)
	if err != nil {
		return nil, err
	}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	mailer, err := app.NewMailer(cfg.Mail, log, m)
	if err != nil {
		st.Close()
		return nil, err
	}
	publisher, err := app.NewAuditPublisher(st, log, m, false)
	if err != nil {
		st.Close()
		return nil, err
	}
	svc, err := app.NewServices(cfg, st, app.Infra{Logger: log, Metrics: m, Audit: publisher, Mailer: mailer})
	if err != nil {
		st.Close()
		return nil, err
	}
	mailer.Start(ctx)
	return &env{cfg: cfg, log: log, stores: st, svc: svc, mailer: mailer}, nil
}

func (e *env) close() {
	e.mailer.Close()
	e.stores.Close()
}

var errNoDatabase = errors.New("DATABASE_URL is required")
