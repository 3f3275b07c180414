package ingest

import (
	"fmt"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/backupoor/pkg/normalize"
	"github.com/ethpandaops/backupoor/pkg/record"
	"github.com/ethpandaops/backupoor/pkg/siteid"
)

// Alarm workbook column names.
const (
	ColAlarmOccurredOn   = "Occurred On (NT)"
	ColAlarmLastOccurred = "Last Occurred (NT)"
	ColAlarmClearedOn    = "Cleared On (NT)"
	ColAlarmSource       = "Alarm Source"
	ColAlarmName         = "Name"
)

// AlarmColumns lists the columns every alarm sheet must carry after
// harmonization.
var AlarmColumns = []string{
	ColAlarmOccurredOn,
	ColAlarmClearedOn,
	ColAlarmSource,
	ColAlarmName,
}

// SheetRename renames a column on sheets whose name matches Sheet
// (case-insensitive) before the schema is checked.
type SheetRename struct {
	Sheet string
	From  string
	To    string
}

// DefaultSheetRenames covers the PENINSULA region export, which reports the
// occurrence time as "Last Occurred (NT)".
var DefaultSheetRenames = []SheetRename{
	{Sheet: "PENINSULA", From: ColAlarmLastOccurred, To: ColAlarmOccurredOn},
}

// Config configures the ingestors.
type Config struct {
	Parser       *TimeParser
	Resolver     *siteid.Resolver
	SheetRenames []SheetRename
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}

	if out.Parser == nil {
		out.Parser = NewTimeParser(nil)
	}

	if out.Resolver == nil {
		out.Resolver = siteid.Default
	}

	if out.SheetRenames == nil {
		out.SheetRenames = DefaultSheetRenames
	}

	return out
}

// SkippedSheet records a sheet left out of the ingestion result.
type SkippedSheet struct {
	Name    string   `json:"name"`
	Missing []string `json:"missing"`
}

// AlarmResult is the output of one alarm workbook ingestion.
type AlarmResult struct {
	Source  string
	Records []record.Alarm
	Sheets  []string
	Skipped []SkippedSheet
}

// AlarmIngestor reads the multi-sheet alarm workbook.
type AlarmIngestor struct {
	log logrus.FieldLogger
	cfg Config
}

// NewAlarmIngestor creates an alarm ingestor. cfg may be nil.
func NewAlarmIngestor(log logrus.FieldLogger, cfg *Config) *AlarmIngestor {
	return &AlarmIngestor{
		log: log.WithField("component", "alarm-ingestor"),
		cfg: cfg.withDefaults(),
	}
}

// Ingest reads the workbook at path. Sheets missing a required column are
// skipped; ErrNoValidSheets is returned when none remain.
func (i *AlarmIngestor) Ingest(path string) (*AlarmResult, error) {
	log := i.log.WithField("source", path)

	if info, err := os.Stat(path); err == nil {
		log.WithField("size", units.HumanSize(float64(info.Size()))).
			Info("Reading alarm workbook")
	}

	if !IsWorkbook(path) {
		return nil, fmt.Errorf("%w: %s is not a workbook", ErrSourceUnreadable, path)
	}

	tables, err := ReadWorkbook(path)
	if err != nil {
		log.WithError(err).Error("Failed to read alarm workbook")

		return nil, err
	}

	return i.IngestTables(path, tables)
}

// IngestTables converts already-read sheets into alarm records.
func (i *AlarmIngestor) IngestTables(
	source string, tables []Table,
) (*AlarmResult, error) {
	log := i.log.WithField("source", source)

	result := &AlarmResult{Source: source}

	for ti := range tables {
		t := &tables[ti]

		i.harmonize(t)

		idx := t.columnIndex()
		if miss := missing(idx, AlarmColumns); len(miss) > 0 {
			log.WithFields(logrus.Fields{
				"sheet":   t.Name,
				"missing": strings.Join(miss, ", "),
			}).Warn("Sheet lacks required columns, skipping")

			result.Skipped = append(result.Skipped, SkippedSheet{
				Name:    t.Name,
				Missing: miss,
			})

			continue
		}

		records := i.sheetRecords(log, t, idx)
		result.Records = append(result.Records, records...)
		result.Sheets = append(result.Sheets, t.Name)

		log.WithFields(logrus.Fields{
			"sheet":   t.Name,
			"records": len(records),
		}).Debug("Sheet ingested")
	}

	if len(result.Sheets) == 0 {
		log.Error("No sheet of the alarm workbook has the required columns")

		return nil, fmt.Errorf("%w in %s", ErrNoValidSheets, source)
	}

	log.WithFields(logrus.Fields{
		"records": len(result.Records),
		"sheets":  len(result.Sheets),
		"skipped": len(result.Skipped),
	}).Info("Alarm workbook processed")

	return result, nil
}

// harmonize applies the column renames configured for the sheet. A rename
// never overwrites a column that already carries the target name.
func (i *AlarmIngestor) harmonize(t *Table) {
	for _, rn := range i.cfg.SheetRenames {
		if !strings.EqualFold(strings.TrimSpace(t.Name), rn.Sheet) {
			continue
		}

		idx := t.columnIndex()
		if _, exists := idx[rn.To]; exists {
			continue
		}

		if col, ok := idx[rn.From]; ok {
			t.Header[col] = rn.To
		}
	}
}

func (i *AlarmIngestor) sheetRecords(
	log logrus.FieldLogger, t *Table, idx map[string]int,
) []record.Alarm {
	var (
		region   = normalize.String(t.Name)
		occurred = idx[ColAlarmOccurredOn]
		cleared  = idx[ColAlarmClearedOn]
		src      = idx[ColAlarmSource]
		name     = idx[ColAlarmName]
		out      = make([]record.Alarm, 0, len(t.Rows))
	)

	for n, row := range t.Rows {
		if blankRow(row) {
			continue
		}

		source := normalize.String(cell(row, src))

		a := record.Alarm{
			OccurredAt: i.cfg.Parser.Parse(cell(row, occurred), t.Date1904),
			ClearedAt:  i.cfg.Parser.Parse(cell(row, cleared), t.Date1904),
			Source:     source,
			Name:       normalize.String(cell(row, name)),
			Region:     region,
			SiteID:     i.cfg.Resolver.Resolve(source),
		}

		if a.OccurredAt == nil {
			log.WithFields(logrus.Fields{
				"sheet": t.Name,
				"row":   n + 2,
				"value": cell(row, occurred),
			}).Debug("Unparsable occurrence time")
		}

		out = append(out, a)
	}

	return out
}
