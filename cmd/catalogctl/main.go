// Package main is the operator CLI for the house plan catalog.
// It runs migrations, creates admin accounts, seeds content and
// performs maintenance against the same database as the web server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"

	"github.com/myfreehouseplans/catalog/internal/repository"
)

// ctlConfig is the subset of the server configuration the CLI needs.
type ctlConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

var (
	databaseURL string
	verbose     bool
	logger      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Operate the house plan catalog",
	Long: `catalogctl runs operator tasks against the catalog database:
schema migrations, admin accounts, seed content, public plan code
backfill and request log pruning.

The database is taken from --database-url or DATABASE_URL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var cfg ctlConfig
		if err := env.Parse(&cfg); err != nil {
			return fmt.Errorf("failed to parse environment: %w", err)
		}
		if databaseURL == "" {
			databaseURL = cfg.DatabaseURL
		}

		level := slog.LevelInfo
		if verbose || cfg.LogLevel == "debug" {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (default $DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(pruneLogsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// requireDatabaseURL fails early with a readable message.
func requireDatabaseURL() (string, error) {
	if databaseURL == "" {
		return "", fmt.Errorf("database URL is not set: use --database-url or DATABASE_URL")
	}
	return databaseURL, nil
}

// openRepository connects to the database for commands that read or write rows.
func openRepository(ctx context.Context) (*repository.Repository, error) {
	dsn, err := requireDatabaseURL()
	if err != nil {
		return nil, err
	}
	repo, err := repository.New(ctx, dsn, repository.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repo, nil
}
