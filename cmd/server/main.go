// Command server runs the intranet: the JSON API, the admin API, the
// server-rendered portal and the background workers behind them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"intranet/internal/app"
	internalaudit "intranet/internal/audit"
	httpapi "intranet/internal/http"
	"intranet/internal/platform/config"
	"intranet/internal/platform/httpserver"
	"intranet/internal/platform/kafka"
	"intranet/internal/platform/logger"
	"intranet/internal/platform/metrics"
)

const closeTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.Server.Environment, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenStores(ctx, cfg, true, log)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	producer, err := kafka.NewProducer(ctx, cfg.Kafka, log.With("component", "kafka"))
	if err != nil {
		return err
	}
	publisher, err := app.NewAuditPublisher(st, log, m, producer != nil)
	if err != nil {
		return err
	}
	mailer, err := app.NewMailer(cfg.Mail, log, m)
	if err != nil {
		return err
	}
	// Mail outlives the signal context so queued messages drain on shutdown.
	mailCtx, cancelMail := context.WithCancel(context.Background())
	defer cancelMail()
	mailer.Start(mailCtx)

	infra := app.Infra{Logger: log, Metrics: m, Audit: publisher, Mailer: mailer}
	svc, err := app.NewServices(cfg, st, infra)
	if err != nil {
		return err
	}
	if cfg.Seed.Email != "" {
		user, created, err := svc.Auth.EnsureAdmin(ctx, cfg.Seed.Email, cfg.Seed.Name, cfg.Seed.Password)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if created {
			log.Info("seed admin created", "email", user.Email)
		}
	}

	handler, err := app.NewHTTPHandler(cfg, svc, infra, nil, readinessChecks(st, producer)...)
	if err != nil {
		return err
	}
	srv := httpserver.New(cfg.Server.Addr, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	if producer != nil {
		worker := internalaudit.NewWorker(internalaudit.NewKafkaSink(producer), publisher.Queue(), log.With("component", "audit-forwarder"))
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}
	if purger, ok := st.Purger(); ok {
		g.Go(func() error {
			runJanitor(gctx, purger, janitorInterval, log.With("component", "revocation-janitor"))
			return nil
		})
	}

	runErr := g.Wait()

	mailer.Close()
	publisher.Close()
	if producer != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		producer.Close(closeCtx)
		cancel()
	}
	log.Info("shutdown complete")
	return runErr
}

func readinessChecks(st *app.Stores, producer *kafka.Producer) []httpapi.Check {
	var checks []httpapi.Check
	if st.DB != nil {
		checks = append(checks, httpapi.Check{Name: "postgres", Fn: st.DB.PingContext})
	}
	if st.Redis != nil {
		checks = append(checks, httpapi.Check{Name: "redis", Fn: st.Redis.Health})
	}
	if producer != nil {
		checks = append(checks, httpapi.Check{Name: "kafka", Fn: producer.Health})
	}
	return checks
}
