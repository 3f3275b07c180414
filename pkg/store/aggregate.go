package store

import (
	"context"
	"fmt"
	"strings"
)

// TableCounts holds the row count of each data table.
type TableCounts struct {
	Alarms  int64 `json:"alarms" yaml:"alarms"`
	Outages int64 `json:"outages" yaml:"outages"`
	Joined  int64 `json:"joined" yaml:"joined"`
}

// SiteBackup is the mean battery backup observed at one site.
type SiteBackup struct {
	SiteID           string  `json:"site_id" yaml:"site_id"`
	AvgBackupMinutes float64 `json:"avg_backup_minutes" yaml:"avg_backup_minutes"`
	Events           int64   `json:"events" yaml:"events"`
}

// NameCount is an alarm name with its number of occurrences.
type NameCount struct {
	Name  string `json:"name" yaml:"name"`
	Total int64  `json:"total" yaml:"total"`
}

// RegionNameCount is an alarm name count within one region.
type RegionNameCount struct {
	Region string `json:"region" yaml:"region"`
	Name   string `json:"name" yaml:"name"`
	Total  int64  `json:"total" yaml:"total"`
}

// Counts returns the row count of each data table.
func (s *store) Counts(ctx context.Context) (TableCounts, error) {
	var c TableCounts

	db := s.db.WithContext(ctx)

	if err := db.Model(&AlarmRow{}).Count(&c.Alarms).Error; err != nil {
		return c, fmt.Errorf("counting alarms: %w", err)
	}

	if err := db.Model(&OutageRow{}).Count(&c.Outages).Error; err != nil {
		return c, fmt.Errorf("counting outages: %w", err)
	}

	if err := db.Model(&JoinedRow{}).Count(&c.Joined).Error; err != nil {
		return c, fmt.Errorf("counting joined records: %w", err)
	}

	return c, nil
}

// AverageBackupBySite returns the mean backup minutes per alarm site of the
// joined table, ordered by site.
func (s *store) AverageBackupBySite(ctx context.Context) ([]SiteBackup, error) {
	var out []SiteBackup
	if err := s.db.WithContext(ctx).
		Model(&JoinedRow{}).
		Select("site_parsed_alarm AS site_id, " +
			"AVG(backup_minutes) AS avg_backup_minutes, " +
			"COUNT(*) AS events").
		Group("site_parsed_alarm").
		Order("site_parsed_alarm ASC").
		Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("averaging backup by site: %w", err)
	}

	return out, nil
}

// AlarmNameCounts returns alarm names by descending frequency, ties broken
// by name. A limit of zero or less returns every name.
func (s *store) AlarmNameCounts(ctx context.Context, limit int) ([]NameCount, error) {
	q := s.db.WithContext(ctx).
		Model(&AlarmRow{}).
		Select("alarm_name AS name, COUNT(*) AS total").
		Group("alarm_name").
		Order("total DESC, alarm_name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []NameCount
	if err := q.Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("counting alarm names: %w", err)
	}

	return out, nil
}

// CountSitesWithAlarm returns the number of distinct sites that raised an
// alarm whose name contains fragment.
func (s *store) CountSitesWithAlarm(ctx context.Context, fragment string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&AlarmRow{}).
		Where("alarm_name LIKE ?", "%"+strings.ToUpper(fragment)+"%").
		Distinct("site_parsed_alarm").
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting sites with alarm: %w", err)
	}

	return n, nil
}

// RegionAlarmCounts returns alarm name counts per region, ordered by region,
// then descending count, then name.
func (s *store) RegionAlarmCounts(ctx context.Context) ([]RegionNameCount, error) {
	var out []RegionNameCount
	if err := s.db.WithContext(ctx).
		Model(&AlarmRow{}).
		Select("region, alarm_name AS name, COUNT(*) AS total").
		Group("region, alarm_name").
		Order("region ASC, total DESC, alarm_name ASC").
		Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("counting alarms by region: %w", err)
	}

	return out, nil
}
