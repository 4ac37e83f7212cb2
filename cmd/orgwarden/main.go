// Package main is the entrypoint for the orgwarden operator CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/config"
	"github.com/MacJediWizard/orgwarden/internal/db"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "orgwarden",
		Short: "Operator tooling for the orgwarden server",
		Long: `orgwarden manages the database schema of an orgwarden server and
previews the directory role identifiers it derives from organization names.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newMigrateCmd(),
		newRoleNameCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "orgwarden %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var (
		dbURL   string
		showVer bool
		list    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return listMigrations(cmd)
			}

			url := dbURL
			if url == "" {
				url = os.Getenv("DATABASE_URL")
			}
			if url == "" {
				return errors.New("database URL required: use --db or set DATABASE_URL")
			}
			return runMigrate(cmd, url, showVer)
		},
	}

	cmd.Flags().StringVar(&dbURL, "db", "", "Database URL (or set DATABASE_URL env var)")
	cmd.Flags().BoolVar(&showVer, "version", false, "Show current schema version")
	cmd.Flags().BoolVar(&list, "list", false, "List all migrations")

	return cmd
}

func runMigrate(cmd *cobra.Command, url string, showVer bool) error {
	logger := newLogger()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	cfg := db.DefaultConfig(url)
	cfg.MaxConns = 5
	cfg.MinConns = 1

	database, err := db.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if showVer {
		version, err := database.CurrentVersion(ctx)
		if err != nil {
			return fmt.Errorf("get schema version: %w", err)
		}
		pending, err := database.Pending(ctx)
		if err != nil {
			return fmt.Errorf("list pending migrations: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Current schema version: %d\n", version)
		for _, m := range pending {
			fmt.Fprintf(out, "  pending %03d: %s\n", m.Version, m.Name)
		}
		return nil
	}

	logger.Info().Msg("running database migrations")
	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, err := database.CurrentVersion(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("could not get current version")
	} else {
		logger.Info().Int("version", version).Msg("migrations complete")
	}
	return nil
}

func listMigrations(cmd *cobra.Command) error {
	migrations, err := db.GetMigrations()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(migrations) == 0 {
		fmt.Fprintln(out, "No migrations found")
		return nil
	}

	fmt.Fprintln(out, "Available migrations:")
	for _, m := range migrations {
		fmt.Fprintf(out, "  %03d: %s\n", m.Version, m.Name)
	}
	return nil
}

func newRoleNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role-name ORGANIZATION [ROLE_ID]",
		Short: "Print the directory role identifier for an organization",
		Long: `Print the admin role identifier derived from an organization name, or the
identifier of one of its custom roles when a role id is given. Length bounds
are read from ADMIN_ROLE_MAX_LENGTH and ROLE_MAX_LENGTH.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			namer := config.LoadServerConfig().Namer()
			if len(args) == 1 {
				fmt.Fprintln(cmd.OutOrStdout(), namer.AdminRoleName(args[0]))
				return nil
			}
			roleID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || roleID <= 0 {
				return fmt.Errorf("invalid role id %q", args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), namer.RoleName(args[0], roleID))
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect server configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the configuration the server would start with",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadServerConfig()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Environment:        %s\n", cfg.Environment)
			fmt.Fprintf(out, "Listen address:     %s\n", cfg.ListenAddr)
			fmt.Fprintf(out, "Store:              %s\n", backend(cfg.DatabaseURL != "", "postgres", "memory"))
			fmt.Fprintf(out, "Directory:          %s\n", backend(cfg.Directory.Enabled(), cfg.Directory.URL, "memory"))
			fmt.Fprintf(out, "Callbacks:          %s\n", backend(cfg.Callbacks.Enabled(), cfg.Callbacks.URL, "recorder"))
			fmt.Fprintf(out, "Asset registry:     %s\n", backend(cfg.Registry.Enabled(), cfg.Registry.URL, "memory"))
			fmt.Fprintf(out, "Mail:               %s\n", backend(cfg.SMTP.Enabled(), cfg.SMTP.Host, "log only"))
			fmt.Fprintf(out, "Images:             %s\n", backend(cfg.S3.Enabled(), "s3://"+cfg.S3.Bucket, "pass-through"))
			fmt.Fprintf(out, "OIDC issuer:        %s\n", backend(cfg.OIDC.Enabled(), cfg.OIDC.Issuer, "disabled"))
			fmt.Fprintf(out, "Accept key max age: %s\n", cfg.AcceptKeyMaxAge)
			fmt.Fprintf(out, "System admin role:  %s\n", cfg.SystemAdminRole)
			fmt.Fprintf(out, "Rate limit:         %d per %s\n", cfg.RateLimit.Requests, cfg.RateLimit.Period)
		},
	})
	return cmd
}

func backend(enabled bool, remote, fallback string) string {
	if enabled {
		return remote
	}
	return fallback
}
