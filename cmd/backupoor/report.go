package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/backupoor/pkg/report"
)

var (
	reportFormat string
	reportTop    int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the aggregates of the stored tables",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportFormat, "format", "o", report.FormatMarkdown,
		"output format (json, yaml, markdown)")
	reportCmd.Flags().IntVar(&reportTop, "top", 0,
		"number of alarm names in the top alarms list (default report.top_n)")
}

func runReport(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx := cmd.Context()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopStore(st)

	summary, err := newAggregator(cfg, st).Summary(ctx, reportTop)
	if err != nil {
		return fmt.Errorf("computing report: %w", err)
	}

	return report.Encode(os.Stdout, summary, format)
}
