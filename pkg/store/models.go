package store

import (
	"time"

	"github.com/ethpandaops/backupoor/pkg/record"
)

// TimestampLayout is the text layout of every timestamp column.
const TimestampLayout = time.DateTime

// Run statuses.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// AlarmRow is a persisted alarm.
type AlarmRow struct {
	ID              uint    `gorm:"primaryKey" json:"-"`
	AlarmOccurredOn *string `gorm:"column:alarm_occurred_on;type:text" json:"alarm_occurred_on"`
	AlarmClearedOn  *string `gorm:"column:alarm_cleared_on;type:text" json:"alarm_cleared_on"`
	AlarmSource     string  `gorm:"column:alarm_source" json:"alarm_source"`
	AlarmName       string  `gorm:"column:alarm_name;index" json:"alarm_name"`
	Region          string  `gorm:"column:region;index" json:"region"`
	SiteParsedAlarm string  `gorm:"column:site_parsed_alarm;index" json:"site_parsed_alarm"`
}

// TableName overrides the default table name.
func (AlarmRow) TableName() string { return "alarms" }

// OutageRow is a persisted outage.
type OutageRow struct {
	ID               uint    `gorm:"primaryKey" json:"-"`
	OutageOccurredOn *string `gorm:"column:outage_occurred_on;type:text" json:"outage_occurred_on"`
	OutageClearedOn  *string `gorm:"column:outage_cleared_on;type:text" json:"outage_cleared_on"`
	MOName           string  `gorm:"column:mo_name" json:"mo_name"`
	OutageName       string  `gorm:"column:outage_name" json:"outage_name"`
	SiteParsedOutage string  `gorm:"column:site_parsed_outage;index" json:"site_parsed_outage"`
}

// TableName overrides the default table name.
func (OutageRow) TableName() string { return "outages" }

// JoinedRow is a persisted alarm/outage pair.
type JoinedRow struct {
	ID                uint    `gorm:"primaryKey" json:"-"`
	AlarmOccurredOn   *string `gorm:"column:alarm_occurred_on;type:text" json:"alarm_occurred_on"`
	AlarmClearedOn    *string `gorm:"column:alarm_cleared_on;type:text" json:"alarm_cleared_on"`
	AlarmSource       string  `gorm:"column:alarm_source" json:"alarm_source"`
	AlarmName         string  `gorm:"column:alarm_name" json:"alarm_name"`
	Region            string  `gorm:"column:region" json:"region"`
	SiteParsedAlarm   string  `gorm:"column:site_parsed_alarm;index" json:"site_parsed_alarm"`
	OutageOccurredOn  *string `gorm:"column:outage_occurred_on;type:text" json:"outage_occurred_on"`
	OutageClearedOn   *string `gorm:"column:outage_cleared_on;type:text" json:"outage_cleared_on"`
	MOName            string  `gorm:"column:mo_name" json:"mo_name"`
	OutageName        string  `gorm:"column:outage_name" json:"outage_name"`
	SiteParsedOutage  string  `gorm:"column:site_parsed_outage" json:"site_parsed_outage"`
	BatteryBackupTime string  `gorm:"column:battery_backup_time;type:text" json:"battery_backup_time"`
	BackupMinutes     float64 `gorm:"column:backup_minutes" json:"backup_minutes"`
}

// TableName overrides the default table name.
func (JoinedRow) TableName() string { return "alarms_outages_joined" }

// JoinedColumns lists the joined table columns in storage order.
var JoinedColumns = []string{
	"alarm_occurred_on",
	"alarm_cleared_on",
	"alarm_source",
	"alarm_name",
	"region",
	"site_parsed_alarm",
	"outage_occurred_on",
	"outage_cleared_on",
	"mo_name",
	"outage_name",
	"site_parsed_outage",
	"battery_backup_time",
	"backup_minutes",
}

// Run is one pipeline execution recorded in the run log.
type Run struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	StartedAt     time.Time  `gorm:"index" json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Status        string     `gorm:"index" json:"status"`
	AlarmsSource  string     `json:"alarms_source"`
	OutagesSource string     `json:"outages_source"`
	Alarms        int        `json:"alarms"`
	Outages       int        `json:"outages"`
	Joined        int        `json:"joined"`
	SkippedSheets int        `json:"skipped_sheets"`
	Error         string     `gorm:"type:text" json:"error,omitempty"`
	Hostname      string     `json:"hostname,omitempty"`
	Platform      string     `json:"platform,omitempty"`
}

// TableName overrides the default table name.
func (Run) TableName() string { return "runs" }

// formatTime renders t as wall-clock text in loc, the zone rows are read
// back in.
func formatTime(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}

	s := t.In(loc).Format(TimestampLayout)

	return &s
}

func parseTime(s *string, loc *time.Location) *time.Time {
	if s == nil || *s == "" {
		return nil
	}

	t, err := time.ParseInLocation(TimestampLayout, *s, loc)
	if err != nil {
		return nil
	}

	return &t
}

func newAlarmRow(a record.Alarm, loc *time.Location) AlarmRow {
	return AlarmRow{
		AlarmOccurredOn: formatTime(a.OccurredAt, loc),
		AlarmClearedOn:  formatTime(a.ClearedAt, loc),
		AlarmSource:     a.Source,
		AlarmName:       a.Name,
		Region:          a.Region,
		SiteParsedAlarm: a.SiteID,
	}
}

func (r AlarmRow) toRecord(loc *time.Location) record.Alarm {
	return record.Alarm{
		OccurredAt: parseTime(r.AlarmOccurredOn, loc),
		ClearedAt:  parseTime(r.AlarmClearedOn, loc),
		Source:     r.AlarmSource,
		Name:       r.AlarmName,
		Region:     r.Region,
		SiteID:     r.SiteParsedAlarm,
	}
}

func newOutageRow(o record.Outage, loc *time.Location) OutageRow {
	return OutageRow{
		OutageOccurredOn: formatTime(o.OccurredAt, loc),
		OutageClearedOn:  formatTime(o.ClearedAt, loc),
		MOName:           o.MOName,
		OutageName:       o.Name,
		SiteParsedOutage: o.SiteID,
	}
}

func (r OutageRow) toRecord(loc *time.Location) record.Outage {
	return record.Outage{
		OccurredAt: parseTime(r.OutageOccurredOn, loc),
		ClearedAt:  parseTime(r.OutageClearedOn, loc),
		MOName:     r.MOName,
		Name:       r.OutageName,
		SiteID:     r.SiteParsedOutage,
	}
}

func newJoinedRow(j record.Joined, loc *time.Location) JoinedRow {
	a := newAlarmRow(j.Alarm, loc)
	o := newOutageRow(j.Outage, loc)

	return JoinedRow{
		AlarmOccurredOn:   a.AlarmOccurredOn,
		AlarmClearedOn:    a.AlarmClearedOn,
		AlarmSource:       a.AlarmSource,
		AlarmName:         a.AlarmName,
		Region:            a.Region,
		SiteParsedAlarm:   a.SiteParsedAlarm,
		OutageOccurredOn:  o.OutageOccurredOn,
		OutageClearedOn:   o.OutageClearedOn,
		MOName:            o.MOName,
		OutageName:        o.OutageName,
		SiteParsedOutage:  o.SiteParsedOutage,
		BatteryBackupTime: record.FormatBackup(j.Backup),
		BackupMinutes:     j.BackupMinutes,
	}
}

func (r JoinedRow) toRecord(loc *time.Location) record.Joined {
	a := AlarmRow{
		AlarmOccurredOn: r.AlarmOccurredOn,
		AlarmClearedOn:  r.AlarmClearedOn,
		AlarmSource:     r.AlarmSource,
		AlarmName:       r.AlarmName,
		Region:          r.Region,
		SiteParsedAlarm: r.SiteParsedAlarm,
	}.toRecord(loc)
	o := OutageRow{
		OutageOccurredOn: r.OutageOccurredOn,
		OutageClearedOn:  r.OutageClearedOn,
		MOName:           r.MOName,
		OutageName:       r.OutageName,
		SiteParsedOutage: r.SiteParsedOutage,
	}.toRecord(loc)

	j := record.Joined{
		Alarm:         a,
		Outage:        o,
		BackupMinutes: r.BackupMinutes,
	}

	if a.OccurredAt != nil && o.OccurredAt != nil {
		j.Backup = o.OccurredAt.Sub(*a.OccurredAt)
	}

	return j
}
