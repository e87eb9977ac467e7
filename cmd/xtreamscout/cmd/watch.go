package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xtreamscout/xtreamscout/internal/scheduler"
)

var watchSchedule string

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run scheduled snapshot downloads until interrupted",
	Long: `Run the download acquisition on a recurring cron schedule. The
process stays in the foreground and stops cleanly on SIGINT or SIGTERM.
A tick that fires while the previous acquisition is still running is
skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := setupLogging(cfg)
		if err := requireProvider(cfg); err != nil {
			return err
		}

		applyDownloadFlags(cmd, cfg)
		if cmd.Flags().Changed("schedule") {
			cfg.Watch.Schedule = watchSchedule
		}
		if err := scheduler.ValidateSchedule(cfg.Watch.Schedule); err != nil {
			return err
		}

		acq, cleanup, err := buildAcquisition(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		opts := acquisitionOptions(cfg)
		sched, err := scheduler.New(cfg.Watch.Schedule, func(ctx context.Context) error {
			_, err := acq.Run(ctx, opts)
			return err
		}, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("watch started", slog.String("schedule", cfg.Watch.Schedule))
		if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("watch stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule (5-field)")
	watchCmd.Flags().BoolVar(&downloadRaw, "raw", false, "archive account info with credentials unmasked")
	watchCmd.Flags().BoolVar(&downloadPretty, "pretty", false, "reindent JSON artifacts")
	watchCmd.Flags().IntVar(&downloadKeep, "keep", 0, "snapshots retained per server (0 keeps all)")
	watchCmd.Flags().BoolVar(&downloadSkipGuide, "skip-guide", false, "skip the XMLTV guide download")
	watchCmd.Flags().BoolVar(&downloadNoHistory, "no-history", false, "do not record runs in the history ledger")
	watchCmd.Flags().StringVar(&downloadSaveDir, "save-dir", "", "snapshot root directory")
	rootCmd.AddCommand(watchCmd)
}
