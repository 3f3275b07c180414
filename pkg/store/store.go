// Package store persists ingested and joined records in a relational
// database. Every Replace operation swaps a table's full contents inside one
// transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/backupoor/pkg/config"
	"github.com/ethpandaops/backupoor/pkg/record"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrInvalidRecord is returned when a joined record violates the causal
// ordering between its alarm and outage.
var ErrInvalidRecord = errors.New("invalid joined record")

const batchSize = 500

// Store provides persistence for the alarm, outage and joined tables.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	ReplaceAlarms(ctx context.Context, alarms []record.Alarm) error
	ReplaceOutages(ctx context.Context, outages []record.Outage) error
	ReplaceJoined(ctx context.Context, joined []record.Joined) error

	ListAlarms(ctx context.Context) ([]record.Alarm, error)
	ListOutages(ctx context.Context) ([]record.Outage, error)
	ListJoined(ctx context.Context) ([]record.Joined, error)
	ListJoinedRows(ctx context.Context) ([]JoinedRow, error)
	Counts(ctx context.Context) (TableCounts, error)

	AverageBackupBySite(ctx context.Context) ([]SiteBackup, error)
	AlarmNameCounts(ctx context.Context, limit int) ([]NameCount, error)
	CountSitesWithAlarm(ctx context.Context, fragment string) (int64, error)
	RegionAlarmCounts(ctx context.Context) ([]RegionNameCount, error)

	CreateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	LatestRun(ctx context.Context, status string) (*Run, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	loc *time.Location
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
// Stored timestamps are read back in loc; nil means UTC.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
	loc *time.Location,
) Store {
	if loc == nil {
		loc = time.UTC
	}

	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
		loc: loc,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if s.cfg.Driver == "sqlite" {
		// SQLite allows a single writer, and an in-memory database only
		// exists on the connection that created it.
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&AlarmRow{},
		&OutageRow{},
		&JoinedRow{},
		&Run{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// replaceAll deletes every row of T's table and inserts rows in one
// transaction. On failure the previous contents are kept.
func replaceAll[T any](ctx context.Context, db *gorm.DB, rows []T) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(new(T)).Error; err != nil {
			return fmt.Errorf("clearing table: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}

		if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
			return fmt.Errorf("inserting rows: %w", err)
		}

		return nil
	})
}

// ReplaceAlarms replaces the contents of the alarms table.
func (s *store) ReplaceAlarms(ctx context.Context, alarms []record.Alarm) error {
	rows := make([]AlarmRow, 0, len(alarms))
	for _, a := range alarms {
		rows = append(rows, newAlarmRow(a, s.loc))
	}

	if err := replaceAll(ctx, s.db, rows); err != nil {
		return fmt.Errorf("replacing alarms: %w", err)
	}

	s.log.WithField("rows", len(rows)).Debug("Replaced alarms table")

	return nil
}

// ReplaceOutages replaces the contents of the outages table.
func (s *store) ReplaceOutages(ctx context.Context, outages []record.Outage) error {
	rows := make([]OutageRow, 0, len(outages))
	for _, o := range outages {
		rows = append(rows, newOutageRow(o, s.loc))
	}

	if err := replaceAll(ctx, s.db, rows); err != nil {
		return fmt.Errorf("replacing outages: %w", err)
	}

	s.log.WithField("rows", len(rows)).Debug("Replaced outages table")

	return nil
}

// ReplaceJoined replaces the contents of the joined table. The whole batch
// is rejected, leaving the table untouched, if any record fails validation
// either as given or as its stored text reads back. The two differ only
// when two instants share a wall-clock time in the store location.
func (s *store) ReplaceJoined(ctx context.Context, joined []record.Joined) error {
	rows := make([]JoinedRow, 0, len(joined))

	for i, j := range joined {
		if err := j.Validate(); err != nil {
			return fmt.Errorf("%w: row %d: %w", ErrInvalidRecord, i, err)
		}

		row := newJoinedRow(j, s.loc)
		if err := row.toRecord(s.loc).Validate(); err != nil {
			return fmt.Errorf("%w: row %d as stored: %w", ErrInvalidRecord, i, err)
		}

		rows = append(rows, row)
	}

	if err := replaceAll(ctx, s.db, rows); err != nil {
		return fmt.Errorf("replacing joined records: %w", err)
	}

	s.log.WithField("rows", len(rows)).Debug("Replaced joined table")

	return nil
}

// ListAlarms returns all alarms in insertion order.
func (s *store) ListAlarms(ctx context.Context) ([]record.Alarm, error) {
	var rows []AlarmRow
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing alarms: %w", err)
	}

	out := make([]record.Alarm, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord(s.loc))
	}

	return out, nil
}

// ListOutages returns all outages in insertion order.
func (s *store) ListOutages(ctx context.Context) ([]record.Outage, error) {
	var rows []OutageRow
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing outages: %w", err)
	}

	out := make([]record.Outage, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord(s.loc))
	}

	return out, nil
}

// ListJoined returns all joined records in insertion order.
func (s *store) ListJoined(ctx context.Context) ([]record.Joined, error) {
	rows, err := s.ListJoinedRows(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]record.Joined, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord(s.loc))
	}

	return out, nil
}

// ListJoinedRows returns the joined table as stored.
func (s *store) ListJoinedRows(ctx context.Context) ([]JoinedRow, error) {
	var rows []JoinedRow
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing joined records: %w", err)
	}

	return rows, nil
}

// CreateRun appends a run to the run log, assigning an ID when empty.
func (s *store) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("creating run: %w", err)
	}

	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

// LatestRun returns the most recent run with the given status, or nil when
// there is none.
func (s *store) LatestRun(ctx context.Context, status string) (*Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("started_at DESC").
		Limit(1).
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("finding latest %s run: %w", status, err)
	}

	if len(runs) == 0 {
		return nil, nil
	}

	return &runs[0], nil
}
