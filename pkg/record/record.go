// Package record holds the typed records produced by each pipeline stage.
package record

import (
	"fmt"
	"time"
)

// Alarm is a single power alarm taken from one region sheet of the alarm
// workbook. Text fields are normalized.
type Alarm struct {
	OccurredAt *time.Time `json:"alarm_occurred_on"`
	ClearedAt  *time.Time `json:"alarm_cleared_on"`
	Source     string     `json:"alarm_source"`
	Name       string     `json:"alarm_name"`
	Region     string     `json:"region"`
	SiteID     string     `json:"site_parsed_alarm"`
}

// Outage is a single site outage from the outage export.
type Outage struct {
	OccurredAt *time.Time `json:"outage_occurred_on"`
	ClearedAt  *time.Time `json:"outage_cleared_on"`
	MOName     string     `json:"mo_name"`
	Name       string     `json:"outage_name"`
	SiteID     string     `json:"site_parsed_outage"`
}

// Joined pairs a rectifier alarm with an outage that happened at the same
// site at or after the alarm.
type Joined struct {
	Alarm         Alarm         `json:"alarm"`
	Outage        Outage        `json:"outage"`
	Backup        time.Duration `json:"battery_backup_time"`
	BackupMinutes float64       `json:"backup_minutes"`
}

// NewJoined builds a joined record, deriving the backup duration from the
// two occurrence times. It fails when either time is missing or the outage
// precedes the alarm.
func NewJoined(a Alarm, o Outage) (Joined, error) {
	if a.OccurredAt == nil || o.OccurredAt == nil {
		return Joined{}, fmt.Errorf("site %q: missing occurrence time", a.SiteID)
	}

	if o.OccurredAt.Before(*a.OccurredAt) {
		return Joined{}, fmt.Errorf(
			"site %q: outage at %s precedes alarm at %s",
			a.SiteID,
			o.OccurredAt.Format(time.DateTime),
			a.OccurredAt.Format(time.DateTime),
		)
	}

	d := o.OccurredAt.Sub(*a.OccurredAt)

	return Joined{
		Alarm:         a,
		Outage:        o,
		Backup:        d,
		BackupMinutes: d.Seconds() / 60.0,
	}, nil
}

// Validate reports whether j satisfies the causal ordering between alarm
// and outage and carries a consistent backup duration.
func (j Joined) Validate() error {
	want, err := NewJoined(j.Alarm, j.Outage)
	if err != nil {
		return err
	}

	if want.Backup != j.Backup {
		return fmt.Errorf(
			"site %q: backup %s does not match occurrence times (%s)",
			j.Alarm.SiteID, j.Backup, want.Backup,
		)
	}

	return nil
}

// FormatBackup renders a backup duration as "D days HH:MM:SS", the layout
// used by the battery_backup_time column.
func FormatBackup(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}

	total := int64(d / time.Second)
	days := total / 86400
	rem := total % 86400

	return fmt.Sprintf("%s%d days %02d:%02d:%02d",
		sign, days, rem/3600, (rem%3600)/60, rem%60)
}
