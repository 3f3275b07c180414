package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ethpandaops/backupoor/pkg/store"
)

// Workbook sheet names.
const (
	SheetSummary = "summary"
	SheetSites   = "by_site"
	SheetAlarms  = "top_alarms"
	SheetRegions = "regions"
	SheetJoined  = "joined"
)

// WriteXLSX renders the summary and the joined rows as a workbook with one
// sheet per aggregate.
func WriteXLSX(w io.Writer, s *Summary, rows []store.JoinedRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("renaming default sheet: %w", err)
	}

	for _, name := range []string{SheetSites, SheetAlarms, SheetRegions, SheetJoined} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	summary := [][]any{
		{"Generated", s.GeneratedAt.Format(store.TimestampLayout)},
		{"Alarm class", s.AlarmClass},
		{"Alarms", s.Counts.Alarms},
		{"Outages", s.Counts.Outages},
		{"Joined", s.Counts.Joined},
		{"Sites with alarm class", s.ClassSites},
	}

	sites := [][]any{{"site_id", "avg_backup_minutes", "events"}}
	for _, b := range s.SiteBackups {
		sites = append(sites, []any{b.SiteID, b.AvgBackupMinutes, b.Events})
	}

	alarms := [][]any{{"name", "total"}}
	for _, c := range s.TopAlarms {
		alarms = append(alarms, []any{c.Name, c.Total})
	}

	regions := [][]any{{"region", "name", "total"}}
	for _, r := range s.RegionTop {
		regions = append(regions, []any{r.Region, r.Name, r.Total})
	}

	header := make([]any, len(store.JoinedColumns))
	for i, c := range store.JoinedColumns {
		header[i] = c
	}

	joined := [][]any{header}

	for i := range rows {
		fields := joinedFields(&rows[i])

		row := make([]any, len(fields))
		for j, v := range fields {
			row[j] = v
		}

		// Keep backup_minutes numeric.
		row[len(row)-1] = rows[i].BackupMinutes

		joined = append(joined, row)
	}

	for sheet, data := range map[string][][]any{
		SheetSummary: summary,
		SheetSites:   sites,
		SheetAlarms:  alarms,
		SheetRegions: regions,
		SheetJoined:  joined,
	} {
		if err := writeRows(f, sheet, data); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}

	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("resolving cell: %w", err)
		}

		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}

	return nil
}
