package ingest

import (
	"fmt"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/backupoor/pkg/normalize"
	"github.com/ethpandaops/backupoor/pkg/record"
)

// Outage export column names.
const (
	ColOutageOccurredOn = "Occurred On (NT)"
	ColOutageClearedOn  = "Cleared On (NT)"
	ColOutageMOName     = "MO Name"
	ColOutageName       = "Name"
)

// OutageColumns lists the columns the outage table must carry.
var OutageColumns = []string{
	ColOutageOccurredOn,
	ColOutageClearedOn,
	ColOutageMOName,
	ColOutageName,
}

// OutageResult is the output of one outage source ingestion.
type OutageResult struct {
	Source  string
	Records []record.Outage
}

// OutageIngestor reads the single-table outage export.
type OutageIngestor struct {
	log logrus.FieldLogger
	cfg Config
}

// NewOutageIngestor creates an outage ingestor. cfg may be nil.
func NewOutageIngestor(log logrus.FieldLogger, cfg *Config) *OutageIngestor {
	return &OutageIngestor{
		log: log.WithField("component", "outage-ingestor"),
		cfg: cfg.withDefaults(),
	}
}

// Ingest reads a .csv file or the first sheet of a workbook, chosen by
// extension.
func (i *OutageIngestor) Ingest(path string) (*OutageResult, error) {
	log := i.log.WithField("source", path)

	if info, err := os.Stat(path); err == nil {
		log.WithField("size", units.HumanSize(float64(info.Size()))).
			Info("Reading outage source")
	}

	var (
		table Table
		err   error
	)

	switch {
	case IsDelimited(path):
		table, err = ReadCSV(path)
	case IsWorkbook(path):
		var tables []Table

		tables, err = ReadWorkbook(path)
		if err == nil {
			if len(tables) == 0 {
				err = fmt.Errorf("%w: workbook %s has no sheets", ErrSourceUnreadable, path)
			} else {
				table = tables[0]
			}
		}
	default:
		err = fmt.Errorf("%w: unsupported extension for %s", ErrSourceUnreadable, path)
	}

	if err != nil {
		log.WithError(err).Error("Failed to read outage source")

		return nil, err
	}

	return i.IngestTable(path, table)
}

// IngestTable converts an already-read table into outage records. A missing
// column is fatal for the whole source; a table without even a header row
// yields no records.
func (i *OutageIngestor) IngestTable(source string, t Table) (*OutageResult, error) {
	log := i.log.WithField("source", source)

	if len(t.Header) == 0 && len(t.Rows) == 0 {
		log.Warn("Outage source is empty")

		return &OutageResult{Source: source}, nil
	}

	idx := t.columnIndex()
	if miss := missing(idx, OutageColumns); len(miss) > 0 {
		log.WithField("missing", strings.Join(miss, ", ")).
			Error("Outage source lacks required columns")

		return nil, fmt.Errorf("%w: %s lacks %s",
			ErrSchemaMismatch, source, strings.Join(miss, ", "))
	}

	var (
		occurred = idx[ColOutageOccurredOn]
		cleared  = idx[ColOutageClearedOn]
		mo       = idx[ColOutageMOName]
		name     = idx[ColOutageName]
		result   = &OutageResult{
			Source:  source,
			Records: make([]record.Outage, 0, len(t.Rows)),
		}
	)

	for _, row := range t.Rows {
		if blankRow(row) {
			continue
		}

		moName := normalize.String(cell(row, mo))

		result.Records = append(result.Records, record.Outage{
			OccurredAt: i.cfg.Parser.Parse(cell(row, occurred), t.Date1904),
			ClearedAt:  i.cfg.Parser.Parse(cell(row, cleared), t.Date1904),
			MOName:     moName,
			Name:       normalize.String(cell(row, name)),
			SiteID:     i.cfg.Resolver.Resolve(moName),
		})
	}

	log.WithField("records", len(result.Records)).
		Info("Outage source processed")

	return result, nil
}
