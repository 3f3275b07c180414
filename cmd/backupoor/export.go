package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/backupoor/pkg/pipeline"
	"github.com/ethpandaops/backupoor/pkg/store"
	"github.com/ethpandaops/backupoor/pkg/upload"
)

var (
	exportRunID  string
	exportUpload bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write export artifacts from the stored tables",
	Long: `Write the joined CSV dump and the configured XLSX and markdown
summaries from the current store contents, optionally uploading them.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportRunID, "run-id", "",
		"run id used as upload key prefix (default: latest completed run)")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false,
		"upload artifacts using export.upload.s3")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx := cmd.Context()

	var uploader upload.Uploader

	if exportUpload {
		if !cfg.Export.Upload.S3.Enabled {
			return fmt.Errorf("S3 upload is not configured or not enabled in config")
		}

		uploader, err = upload.NewS3Uploader(log, &cfg.Export.Upload.S3)
		if err != nil {
			return fmt.Errorf("creating S3 uploader: %w", err)
		}
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopStore(st)

	runID := exportRunID
	if runID == "" {
		latest, err := st.LatestRun(ctx, store.RunStatusCompleted)
		if err != nil {
			return err
		}

		if latest != nil {
			runID = latest.ID
		} else {
			runID = uuid.NewString()
		}
	}

	exporter := pipeline.NewExporter(log, &cfg.Export, st, newAggregator(cfg, st), uploader)

	paths, err := exporter.Export(ctx, runID)
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	for _, p := range paths {
		fmt.Println(p)
	}

	return nil
}
