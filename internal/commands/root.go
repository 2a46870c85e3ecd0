package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/punchamoorthee/wastebank/internal/config"
	"github.com/punchamoorthee/wastebank/internal/logging"
	"github.com/punchamoorthee/wastebank/internal/store"
)

// Opener yields the store a command works against. Tests swap it for a memory store.
type Opener func(ctx context.Context) (store.Store, func(), error)

// NewRootCommand creates the bankctl command tree.
func NewRootCommand() *cobra.Command {
	return newRoot(openFromEnv)
}

func newRoot(open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bankctl",
		Short: "Administer the waste-bank ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newOperatorCommand(open))
	rootCmd.AddCommand(newLookupCommand(open))

	return rootCmd
}

func openFromEnv(ctx context.Context) (store.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(cfg.LogLevel)
	return store.Open(ctx, cfg.StoreDriver, cfg.DBSource)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel)
			if cfg.StoreDriver != config.DriverPostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=%s", config.DriverPostgres)
			}
			if err := store.Migrate(cfg.DBSource); err != nil {
				return err
			}
			slog.Info("migrations applied")
			return nil
		},
	}
}
