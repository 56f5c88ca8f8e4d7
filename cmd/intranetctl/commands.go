package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"intranet/internal/app"
	"intranet/internal/platform/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errNoDatabase
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			db, err := postgres.Open(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(ctx, db, log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and content from a YAML file",
		Long: `Seed applies a YAML document with users, employees, news, policies,
apps, faqs, alerts and talks. Users and employees that already exist are
skipped; other entries are always created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()
			doc, err := app.LoadSeed(f)
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.close()
			if e.stores.DB == nil {
				e.log.Warn("no database configured, seeded data is discarded on exit")
			}

			res, err := app.Seed(ctx, e.svc, doc)
			printSeedResult(cmd, res)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the seed YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printSeedResult(cmd *cobra.Command, res app.SeedResult) {
	kinds := make([]string, 0, len(res.Created)+len(res.Skipped))
	for k := range res.Created {
		kinds = append(kinds, k)
	}
	for k := range res.Skipped {
		if _, ok := res.Created[k]; !ok {
			kinds = append(kinds, k)
		}
	}
	slices.Sort(kinds)
	out := cmd.OutOrStdout()
	for _, k := range kinds {
		fmt.Fprintf(out, "%-10s created=%d skipped=%d\n", k, res.Created[k], res.Skipped[k])
	}
}

func newCreateAdminCmd(opts *rootOptions) *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account if it does not exist",
		Long: `Create an administrator account. The password may also be passed in
INTRANET_ADMIN_PASSWORD to keep it out of shell history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("INTRANET_ADMIN_PASSWORD")
			}
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			user, created, err := e.svc.Auth.EnsureAdmin(ctx, email, name, password)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists (role %s)\n", user.Email, user.Role)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&name, "name", "Administrator", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Password (or INTRANET_ADMIN_PASSWORD)")
	return cmd
}
