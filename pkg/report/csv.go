package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ethpandaops/backupoor/pkg/store"
)

// WriteJoinedCSV writes the joined table as CSV, header first, in storage
// column order. Missing timestamps are written as empty fields.
func WriteJoinedCSV(w io.Writer, rows []store.JoinedRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(store.JoinedColumns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for i := range rows {
		if err := cw.Write(joinedFields(&rows[i])); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	return nil
}

func joinedFields(r *store.JoinedRow) []string {
	return []string{
		deref(r.AlarmOccurredOn),
		deref(r.AlarmClearedOn),
		r.AlarmSource,
		r.AlarmName,
		r.Region,
		r.SiteParsedAlarm,
		deref(r.OutageOccurredOn),
		deref(r.OutageClearedOn),
		r.MOName,
		r.OutageName,
		r.SiteParsedOutage,
		r.BatteryBackupTime,
		strconv.FormatFloat(r.BackupMinutes, 'f', -1, 64),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
