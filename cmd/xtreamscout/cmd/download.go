package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xtreamscout/xtreamscout/internal/config"
	"github.com/xtreamscout/xtreamscout/internal/database"
	"github.com/xtreamscout/xtreamscout/internal/repository"
	"github.com/xtreamscout/xtreamscout/internal/service"
	"github.com/xtreamscout/xtreamscout/internal/snapshot"
)

var (
	downloadRaw       bool
	downloadPretty    bool
	downloadKeep      int
	downloadSkipGuide bool
	downloadNoHistory bool
	downloadSaveDir   string
)

// downloadCmd represents the download command.
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Archive a snapshot of the full provider inventory",
	Long: `Download every provider listing (account info, live/VOD/series
categories and streams, and the XMLTV guide) into a timestamped snapshot
directory. Credentials in the archived account info are masked unless
--raw is given. Older snapshots beyond the retention count are pruned.`,
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

		acq, cleanup, err := buildAcquisition(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := acq.Run(cmd.Context(), acquisitionOptions(cfg))
		if err != nil {
			return err
		}

		fmt.Printf("snapshot: %s (%d artifacts", result.SnapshotDir, result.ArtifactCount)
		if result.GuideStats != nil {
			fmt.Printf(", guide: %d channels / %d programmes", result.GuideStats.Channels, result.GuideStats.Programmes)
		}
		fmt.Println(")")
		for _, warning := range result.Warnings {
			fmt.Println("warning:", warning)
		}
		return nil
	},
}

// applyDownloadFlags folds explicit download flags into the config.
func applyDownloadFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("raw") {
		cfg.Snapshot.Raw = downloadRaw
	}
	if flags.Changed("pretty") {
		cfg.Snapshot.Pretty = downloadPretty
	}
	if flags.Changed("keep") {
		cfg.Snapshot.Keep = downloadKeep
	}
	if flags.Changed("save-dir") {
		cfg.Snapshot.Dir = downloadSaveDir
	}
}

// acquisitionOptions maps snapshot config to per-run options.
func acquisitionOptions(cfg *config.Config) service.AcquisitionOptions {
	return service.AcquisitionOptions{
		Raw:       cfg.Snapshot.Raw,
		Pretty:    cfg.Snapshot.Pretty,
		Keep:      cfg.Snapshot.Keep,
		SkipGuide: downloadSkipGuide,
	}
}

// buildAcquisition assembles the acquisition service and its run-history
// ledger. The returned cleanup closes the database.
func buildAcquisition(cfg *config.Config, logger *slog.Logger) (*service.Acquisition, func(), error) {
	client := buildClient(cfg, logger)
	store := buildStore(cfg, logger)
	archiver := snapshot.NewArchiver(cfg.Snapshot.Dir, snapshot.WithLogger(logger))

	cleanup := func() {}
	var runs *repository.RunRepository
	if !downloadNoHistory {
		db, err := database.New(cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening run history: %w", err)
		}
		runs = repository.NewRunRepository(db.DB)
		cleanup = func() { db.Close() }
	}

	acq := service.NewAcquisition(client, store, archiver, runs, cfg.Provider.ServerKey(), logger)
	return acq, cleanup, nil
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadRaw, "raw", false, "archive account info with credentials unmasked")
	downloadCmd.Flags().BoolVar(&downloadPretty, "pretty", false, "reindent JSON artifacts")
	downloadCmd.Flags().IntVar(&downloadKeep, "keep", 0, "snapshots retained per server (0 keeps all)")
	downloadCmd.Flags().BoolVar(&downloadSkipGuide, "skip-guide", false, "skip the XMLTV guide download")
	downloadCmd.Flags().BoolVar(&downloadNoHistory, "no-history", false, "do not record the run in the history ledger")
	downloadCmd.Flags().StringVar(&downloadSaveDir, "save-dir", "", "snapshot root directory")
	rootCmd.AddCommand(downloadCmd)
}
