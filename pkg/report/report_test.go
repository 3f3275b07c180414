package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/backupoor/pkg/config"
	"github.com/ethpandaops/backupoor/pkg/record"
	"github.com/ethpandaops/backupoor/pkg/report"
	"github.com/ethpandaops/backupoor/pkg/store"
)

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func setupTestStore(t *testing.T) store.Store {
	t.Helper()

	s := store.NewStore(newLogger(), &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	}, time.UTC)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func at(minutes int) *time.Time {
	t := time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)

	return &t
}

func alarm(site, name, region string) record.Alarm {
	return record.Alarm{
		OccurredAt: at(0),
		Source:     "NODEB NAME=" + site,
		Name:       name,
		Region:     region,
		SiteID:     site,
	}
}

// seed loads a small dataset: site S1 with two joined events, S2 with one,
// a tie in region SUR and a clear winner in NORTE.
func seed(t *testing.T, s store.Store) {
	t.Helper()

	ctx := context.Background()

	alarms := []record.Alarm{
		alarm("S1", "MINOR RECT FAILURE", "NORTE"),
		alarm("S1", "MINOR RECT FAILURE", "NORTE"),
		alarm("S2", "MINOR RECT FAILURE", "SUR"),
		alarm("S3", "MAINS FAILURE", "SUR"),
		alarm("S3", "AC FAIL", "NORTE"),
	}
	require.NoError(t, s.ReplaceAlarms(ctx, alarms))

	var joined []record.Joined

	for _, p := range []struct {
		site    string
		minutes int
	}{{"S1", 30}, {"S1", 90}, {"S2", 45}} {
		j, err := record.NewJoined(alarm(p.site, "MINOR RECT FAILURE", "NORTE"), record.Outage{
			OccurredAt: at(p.minutes),
			MOName:     "NODEB NAME=" + p.site,
			Name:       "NODEB UNAVAILABLE",
			SiteID:     p.site,
		})
		require.NoError(t, err)

		joined = append(joined, j)
	}

	require.NoError(t, s.ReplaceJoined(ctx, joined))
}

func TestAggregator_Summary(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	agg := report.NewAggregator(newLogger(), s, "minor rect failure", 0)

	sum, err := agg.Summary(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, "MINOR RECT FAILURE", sum.AlarmClass)
	assert.Equal(t, store.TableCounts{Alarms: 5, Joined: 3}, sum.Counts)
	assert.Equal(t, int64(2), sum.ClassSites)

	require.Len(t, sum.SiteBackups, 2)
	assert.Equal(t, "S1", sum.SiteBackups[0].SiteID)
	assert.InDelta(t, 60.0, sum.SiteBackups[0].AvgBackupMinutes, 1e-9)
	assert.Equal(t, "S2", sum.SiteBackups[1].SiteID)
	assert.InDelta(t, 45.0, sum.SiteBackups[1].AvgBackupMinutes, 1e-9)

	assert.Equal(t, []store.NameCount{
		{Name: "MINOR RECT FAILURE", Total: 3},
		{Name: "AC FAIL", Total: 1},
		{Name: "MAINS FAILURE", Total: 1},
	}, sum.TopAlarms)

	assert.Equal(t, []report.RegionTop{
		{Region: "NORTE", Name: "MINOR RECT FAILURE", Total: 2},
		// SUR ties at one each; the smaller name wins.
		{Region: "SUR", Name: "MAINS FAILURE", Total: 1},
	}, sum.RegionTop)
}

func TestAggregator_TopAlarmsLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var alarms []record.Alarm

	for i := range 25 {
		for range i + 1 {
			alarms = append(alarms, alarm("S", fmt.Sprintf("ALARM %02d", i), "R"))
		}
	}

	require.NoError(t, s.ReplaceAlarms(ctx, alarms))

	agg := report.NewAggregator(newLogger(), s, "", 0)

	top, err := agg.TopAlarms(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, report.DefaultTopN)
	assert.Equal(t, "ALARM 24", top[0].Name)
	assert.Equal(t, int64(25), top[0].Total)

	top, err = agg.TopAlarms(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, top, 3)
}

func TestAggregator_EmptyTables(t *testing.T) {
	s := setupTestStore(t)

	sum, err := report.NewAggregator(newLogger(), s, "MINOR RECT FAILURE", 5).
		Summary(context.Background(), 0)
	require.NoError(t, err)

	assert.Empty(t, sum.SiteBackups)
	assert.Empty(t, sum.TopAlarms)
	assert.Empty(t, sum.RegionTop)
	assert.Zero(t, sum.ClassSites)

	var buf bytes.Buffer
	require.NoError(t, report.Encode(&buf, sum, report.FormatJSON))
	assert.Contains(t, buf.String(), `"site_backups": []`)
}

func TestWriteJoinedCSV(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	rows, err := s.ListJoinedRows(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteJoinedCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, store.JoinedColumns, records[0])
	assert.Equal(t, []string{
		"2025-01-03 08:00:00",
		"",
		"NODEB NAME=S1",
		"MINOR RECT FAILURE",
		"NORTE",
		"S1",
		"2025-01-03 08:30:00",
		"",
		"NODEB NAME=S1",
		"NODEB UNAVAILABLE",
		"S1",
		"0 days 00:30:00",
		"30",
	}, records[1])
}

func TestWriteJoinedCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteJoinedCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestWriteXLSX(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	ctx := context.Background()

	sum, err := report.NewAggregator(newLogger(), s, "MINOR RECT FAILURE", 0).Summary(ctx, 0)
	require.NoError(t, err)

	rows, err := s.ListJoinedRows(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteXLSX(&buf, sum, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)

	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{
		report.SheetSummary,
		report.SheetSites,
		report.SheetAlarms,
		report.SheetRegions,
		report.SheetJoined,
	}, f.GetSheetList())

	sites, err := f.GetRows(report.SheetSites)
	require.NoError(t, err)
	require.Len(t, sites, 3)
	assert.Equal(t, []string{"site_id", "avg_backup_minutes", "events"}, sites[0])
	assert.Equal(t, "S1", sites[1][0])
	assert.Equal(t, "60", sites[1][1])

	joined, err := f.GetRows(report.SheetJoined)
	require.NoError(t, err)
	assert.Len(t, joined, 4)
}

func TestMarkdown(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	sum, err := report.NewAggregator(newLogger(), s, "MINOR RECT FAILURE", 0).
		Summary(context.Background(), 0)
	require.NoError(t, err)

	md := report.Markdown(sum)

	assert.Contains(t, md, "# Battery Backup Report")
	assert.Contains(t, md, "| Sites with MINOR RECT FAILURE | 2 |")
	assert.Contains(t, md, "| S1 | 60.00 | 2 |")
	assert.Contains(t, md, "| 1 | MINOR RECT FAILURE | 3 |")
	assert.Contains(t, md, "| SUR | MAINS FAILURE | 1 |")
}

func TestEncode(t *testing.T) {
	sum := &report.Summary{
		GeneratedAt: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		AlarmClass:  "MINOR RECT FAILURE",
		Counts:      store.TableCounts{Alarms: 2},
		TopAlarms:   []store.NameCount{{Name: "MINOR RECT FAILURE", Total: 2}},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, report.Encode(&buf, sum, report.FormatJSON))

		var got report.Summary
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, int64(2), got.Counts.Alarms)
		assert.Equal(t, sum.TopAlarms, got.TopAlarms)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, report.Encode(&buf, sum, report.FormatYAML))

		var got map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "MINOR RECT FAILURE", got["alarm_class"])
	})

	t.Run("unknown", func(t *testing.T) {
		var buf bytes.Buffer
		require.Error(t, report.Encode(&buf, sum, "xml"))
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "json", want: report.FormatJSON},
		{in: "yaml", want: report.FormatYAML},
		{in: "yml", want: report.FormatYAML},
		{in: "md", want: report.FormatMarkdown},
		{in: "markdown", want: report.FormatMarkdown},
		{in: "html", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := report.ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
