package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/backupoor/pkg/metrics"
	"github.com/ethpandaops/backupoor/pkg/pipeline"
	"github.com/ethpandaops/backupoor/pkg/upload"
)

var (
	runAlarmsPath  string
	runOutagesPath string
	runSkipExport  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest, join and persist the current exports",
	Long: `Read the alarm workbook and the outage export, join rectifier
failure alarms with later outages at the same site, replace the stored
tables and write the configured export artifacts.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runAlarmsPath, "alarms", "",
		"alarm workbook path (overrides inputs.alarms)")
	runCmd.Flags().StringVar(&runOutagesPath, "outages", "",
		"outage export path (overrides inputs.outages)")
	runCmd.Flags().BoolVar(&runSkipExport, "skip-export", false,
		"do not write or upload export artifacts")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runAlarmsPath != "" {
		cfg.Inputs.Alarms.Path = runAlarmsPath
	}

	if runOutagesPath != "" {
		cfg.Inputs.Outages.Path = runOutagesPath
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx := cmd.Context()

	var uploader upload.Uploader

	if cfg.Export.Upload.S3.Enabled && !runSkipExport {
		uploader, err = upload.NewS3Uploader(log, &cfg.Export.Upload.S3)
		if err != nil {
			return fmt.Errorf("creating S3 uploader: %w", err)
		}

		if err := uploader.Preflight(ctx); err != nil {
			return fmt.Errorf("s3 preflight: %w", err)
		}
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopStore(st)

	m := metrics.New()

	p, err := pipeline.New(log, cfg, st, m)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	res, runErr := p.Run(ctx)

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	if runErr != nil {
		return runErr
	}

	log.WithFields(logrus.Fields{
		"run_id":  res.RunID,
		"alarms":  res.Alarms,
		"outages": res.Outages,
		"joined":  res.Joined,
		"skipped": len(res.Skipped),
		"elapsed": res.Elapsed.String(),
	}).Info("Run completed")

	if runSkipExport {
		return nil
	}

	exporter := pipeline.NewExporter(log, &cfg.Export, st, newAggregator(cfg, st), uploader)

	if _, err := exporter.Export(ctx, res.RunID); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	return nil
}
