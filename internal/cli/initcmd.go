package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shipfloor/shipfloor/internal/sqlite"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the fulfillment tables",
		Long:  "Connect to the database and create any missing tables and indexes. Safe to re-run.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flags.configFile, flags.dbPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := sqlite.OpenConnRetry(ctx, cfg.DBPath, cfg.ConnTimeout, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	fmt.Printf("schema ready in %s\n", cfg.DBPath)
	return nil
}
