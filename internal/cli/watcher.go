package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipfloor/shipfloor/internal/backorder"
	"github.com/shipfloor/shipfloor/internal/pool"
)

func newWatcherCmd() *cobra.Command {
	var (
		once     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watcher",
		Short: "Run the backorder reconciliation watcher",
		Long: "Scan open backorders against on-hand stock and close the groups\n" +
			"that can be fulfilled. Runs until interrupted unless --once is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatcher(cmd, once, interval)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between passes (default: watcher.interval from config)")
	return cmd
}

func runWatcher(cmd *cobra.Command, once bool, interval time.Duration) error {
	cfg, err := loadConfig(flags.configFile, flags.dbPath)
	if err != nil {
		return err
	}
	if interval <= 0 {
		interval = cfg.WatcherInterval
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	p, err := pool.New(cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	records := backorder.NewRecords(p, log)
	rec := backorder.NewReconciler(p, records, nil, nil, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		return rec.RunOnce(ctx)
	}
	rec.RunLoop(ctx, interval)
	return nil
}
