// Package report computes the dashboard aggregates over the persisted
// tables and renders them for humans and machines.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/backupoor/pkg/store"
)

// DefaultTopN is the number of alarm names returned when no limit is given.
const DefaultTopN = 20

// Source is the subset of the store the aggregator reads from.
type Source interface {
	Counts(ctx context.Context) (store.TableCounts, error)
	AverageBackupBySite(ctx context.Context) ([]store.SiteBackup, error)
	AlarmNameCounts(ctx context.Context, limit int) ([]store.NameCount, error)
	CountSitesWithAlarm(ctx context.Context, fragment string) (int64, error)
	RegionAlarmCounts(ctx context.Context) ([]store.RegionNameCount, error)
}

// RegionTop is the most frequent alarm name of one region.
type RegionTop struct {
	Region string `json:"region" yaml:"region"`
	Name   string `json:"name" yaml:"name"`
	Total  int64  `json:"total" yaml:"total"`
}

// Summary bundles every aggregate.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
	AlarmClass  string             `json:"alarm_class" yaml:"alarm_class"`
	Counts      store.TableCounts  `json:"counts" yaml:"counts"`
	SiteBackups []store.SiteBackup `json:"site_backups" yaml:"site_backups"`
	TopAlarms   []store.NameCount  `json:"top_alarms" yaml:"top_alarms"`
	ClassSites  int64              `json:"class_sites" yaml:"class_sites"`
	RegionTop   []RegionTop        `json:"region_top" yaml:"region_top"`
}

// Aggregator computes the dashboard aggregates.
type Aggregator struct {
	log        logrus.FieldLogger
	src        Source
	alarmClass string
	topN       int
}

// NewAggregator creates an Aggregator. topN of zero or less falls back to
// DefaultTopN.
func NewAggregator(
	log logrus.FieldLogger,
	src Source,
	alarmClass string,
	topN int,
) *Aggregator {
	if topN <= 0 {
		topN = DefaultTopN
	}

	return &Aggregator{
		log:        log.WithField("component", "report"),
		src:        src,
		alarmClass: strings.ToUpper(alarmClass),
		topN:       topN,
	}
}

// SiteBackups returns the mean backup minutes per site, ordered by site.
func (a *Aggregator) SiteBackups(ctx context.Context) ([]store.SiteBackup, error) {
	out, err := a.src.AverageBackupBySite(ctx)
	if err != nil {
		return nil, err
	}

	return nonNil(out), nil
}

// TopAlarms returns the n most frequent alarm names. n of zero or less uses
// the configured default.
func (a *Aggregator) TopAlarms(ctx context.Context, n int) ([]store.NameCount, error) {
	if n <= 0 {
		n = a.topN
	}

	out, err := a.src.AlarmNameCounts(ctx, n)
	if err != nil {
		return nil, err
	}

	return nonNil(out), nil
}

// ClassSites returns the number of distinct sites that raised the target
// alarm class.
func (a *Aggregator) ClassSites(ctx context.Context) (int64, error) {
	return a.src.CountSitesWithAlarm(ctx, a.alarmClass)
}

// RegionTopAlarms returns the most frequent alarm name of each region.
// Ties go to the lexicographically smallest name.
func (a *Aggregator) RegionTopAlarms(ctx context.Context) ([]RegionTop, error) {
	counts, err := a.src.RegionAlarmCounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RegionTop, 0)

	// counts arrive ordered by region, then count descending, then name.
	for i, c := range counts {
		if i > 0 && counts[i-1].Region == c.Region {
			continue
		}

		out = append(out, RegionTop{Region: c.Region, Name: c.Name, Total: c.Total})
	}

	return out, nil
}

// Summary computes every aggregate. n limits the top alarms list like
// TopAlarms.
func (a *Aggregator) Summary(ctx context.Context, n int) (*Summary, error) {
	counts, err := a.src.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	sites, err := a.SiteBackups(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing site backups: %w", err)
	}

	top, err := a.TopAlarms(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("computing top alarms: %w", err)
	}

	classSites, err := a.ClassSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting class sites: %w", err)
	}

	regions, err := a.RegionTopAlarms(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing region top alarms: %w", err)
	}

	a.log.WithFields(logrus.Fields{
		"sites":   len(sites),
		"regions": len(regions),
	}).Debug("Computed summary")

	return &Summary{
		GeneratedAt: time.Now().UTC(),
		AlarmClass:  a.alarmClass,
		Counts:      counts,
		SiteBackups: sites,
		TopAlarms:   top,
		ClassSites:  classSites,
		RegionTop:   regions,
	}, nil
}

// nonNil keeps empty aggregates rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
