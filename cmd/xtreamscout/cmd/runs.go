package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xtreamscout/xtreamscout/internal/database"
	"github.com/xtreamscout/xtreamscout/internal/repository"
)

var runsLimit int

// runsCmd represents the runs command.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded acquisition runs for the configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := setupLogging(cfg)

		db, err := database.New(cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("opening run history: %w", err)
		}
		defer db.Close()

		repo := repository.NewRunRepository(db.DB)
		runs, err := repo.ListByServer(cmd.Context(), cfg.Provider.ServerKey(), runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tStarted\tStatus\tArtifacts\tWarnings\tSnapshot")
		for _, run := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				run.ID,
				run.StartedAt.Format(time.RFC3339),
				run.Status,
				run.ArtifactCount,
				run.WarningCount,
				run.SnapshotDir,
			)
		}
		return tw.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 lists all)")
	rootCmd.AddCommand(runsCmd)
}
