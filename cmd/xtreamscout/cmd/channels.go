package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xtreamscout/xtreamscout/internal/prober"
	"github.com/xtreamscout/xtreamscout/internal/render"
	"github.com/xtreamscout/xtreamscout/internal/service"
)

var (
	channelsName        string
	channelsCategory    string
	channelsEPGCheck    bool
	channelsStreamCheck bool
	channelsFormat      string
	channelsOutput      string
)

// channelsCmd represents the channels command.
var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Query live channels with guide depth and stream properties",
	Long: `Query the provider's live channels, filtered by name and category
substring (case-insensitive). Enrichment is opt-in: --epg-check counts
each matched channel's EPG programmes, and --stream-check probes the
stream's codec, resolution, frame rate, and audio properties with
ffprobe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := setupLogging(cfg)
		if err := requireProvider(cfg); err != nil {
			return err
		}

		if channelsFormat != "table" && channelsFormat != "csv" {
			return fmt.Errorf("unknown format %q (want table or csv)", channelsFormat)
		}

		var p prober.StreamProber
		if channelsStreamCheck {
			ffprobe, err := buildProber(cfg, logger)
			if err != nil {
				return err
			}
			p = ffprobe
		}

		client := buildClient(cfg, logger)
		store := buildStore(cfg, logger)
		svc := service.NewChannels(client, store, p, cfg.Provider.StreamExt, !channelsEPGCheck, logger)

		report, err := svc.Query(cmd.Context(), channelsName, channelsCategory)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if channelsOutput != "" {
			f, err := os.Create(channelsOutput)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		if channelsFormat == "csv" {
			if err := render.CSV(out, report.Channels); err != nil {
				return err
			}
		} else {
			if err := render.Table(out, report.Channels); err != nil {
				return err
			}
		}

		for _, warning := range report.Warnings {
			fmt.Fprintln(os.Stderr, "warning:", warning)
		}
		return nil
	},
}

func init() {
	channelsCmd.Flags().StringVar(&channelsName, "name", "", "channel name substring filter")
	channelsCmd.Flags().StringVar(&channelsCategory, "category", "", "category name substring filter")
	channelsCmd.Flags().BoolVar(&channelsEPGCheck, "epg-check", false, "count EPG programmes for each matched channel")
	channelsCmd.Flags().BoolVar(&channelsStreamCheck, "stream-check", false, "inspect stream properties with ffprobe")
	channelsCmd.Flags().StringVar(&channelsFormat, "format", "table", "output format (table, csv)")
	channelsCmd.Flags().StringVarP(&channelsOutput, "output", "o", "", "write output to file instead of stdout")
	rootCmd.AddCommand(channelsCmd)
}
