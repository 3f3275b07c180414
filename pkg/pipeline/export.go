package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/backupoor/pkg/config"
	"github.com/ethpandaops/backupoor/pkg/fsutil"
	"github.com/ethpandaops/backupoor/pkg/report"
	"github.com/ethpandaops/backupoor/pkg/store"
	"github.com/ethpandaops/backupoor/pkg/upload"
)

// Exporter writes the artifacts of the current store contents: the joined
// CSV dump and, when configured, an XLSX workbook and a markdown summary.
type Exporter struct {
	log      logrus.FieldLogger
	cfg      *config.ExportConfig
	store    store.Store
	agg      *report.Aggregator
	uploader upload.Uploader
}

// NewExporter creates an Exporter. uploader may be nil.
func NewExporter(
	log logrus.FieldLogger,
	cfg *config.ExportConfig,
	st store.Store,
	agg *report.Aggregator,
	uploader upload.Uploader,
) *Exporter {
	return &Exporter{
		log:      log.WithField("component", "exporter"),
		cfg:      cfg,
		store:    st,
		agg:      agg,
		uploader: uploader,
	}
}

// Export writes every configured artifact into the export directory and
// uploads them under runID when an uploader is set. It returns the local
// artifact paths.
func (e *Exporter) Export(ctx context.Context, runID string) ([]string, error) {
	owner, err := fsutil.ParseOwner(e.cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("parsing export owner: %w", err)
	}

	if err := fsutil.MkdirAll(e.cfg.Dir, 0o755, owner); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	rows, err := e.store.ListJoinedRows(ctx)
	if err != nil {
		return nil, err
	}

	var summary *report.Summary

	if e.cfg.XLSXFile != "" || e.cfg.MarkdownFile != "" {
		if summary, err = e.agg.Summary(ctx, 0); err != nil {
			return nil, err
		}
	}

	type artifact struct {
		name  string
		write func(w io.Writer) error
	}

	var artifacts []artifact

	if e.cfg.CSVFile != "" {
		artifacts = append(artifacts, artifact{e.cfg.CSVFile, func(w io.Writer) error {
			return report.WriteJoinedCSV(w, rows)
		}})
	}

	if e.cfg.XLSXFile != "" {
		artifacts = append(artifacts, artifact{e.cfg.XLSXFile, func(w io.Writer) error {
			return report.WriteXLSX(w, summary, rows)
		}})
	}

	if e.cfg.MarkdownFile != "" {
		artifacts = append(artifacts, artifact{e.cfg.MarkdownFile, func(w io.Writer) error {
			return report.Encode(w, summary, report.FormatMarkdown)
		}})
	}

	paths := make([]string, 0, len(artifacts))

	for _, a := range artifacts {
		path := filepath.Join(e.cfg.Dir, a.name)

		size, err := fsutil.WriteFileAtomic(path, 0o644, owner, a.write)
		if err != nil {
			return paths, fmt.Errorf("writing %s: %w", a.name, err)
		}

		e.log.WithFields(logrus.Fields{
			"path": path,
			"size": units.HumanSize(float64(size)),
		}).Info("Wrote export")

		paths = append(paths, path)
	}

	if e.uploader != nil && len(paths) > 0 {
		if _, err := e.uploader.Upload(ctx, runID, paths); err != nil {
			return paths, fmt.Errorf("uploading exports: %w", err)
		}
	}

	return paths, nil
}
