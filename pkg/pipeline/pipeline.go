// Package pipeline runs one ingest, join and persist cycle and records it in
// the run log.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/backupoor/pkg/config"
	"github.com/ethpandaops/backupoor/pkg/ingest"
	"github.com/ethpandaops/backupoor/pkg/join"
	"github.com/ethpandaops/backupoor/pkg/metrics"
	"github.com/ethpandaops/backupoor/pkg/siteid"
	"github.com/ethpandaops/backupoor/pkg/store"
)

// Sources names the two input files of a run.
type Sources struct {
	Alarms  string
	Outages string
}

// Result summarizes a run.
type Result struct {
	RunID   string                `json:"run_id"`
	Sources Sources               `json:"sources"`
	Alarms  int                   `json:"alarms"`
	Outages int                   `json:"outages"`
	Joined  int                   `json:"joined"`
	Skipped []ingest.SkippedSheet `json:"skipped,omitempty"`
	Stats   join.Stats            `json:"stats"`
	Elapsed time.Duration         `json:"elapsed"`
}

// Pipeline executes runs against a store.
type Pipeline struct {
	log     logrus.FieldLogger
	cfg     *config.Config
	store   store.Store
	metrics *metrics.Metrics
	alarms  *ingest.AlarmIngestor
	outages *ingest.OutageIngestor
	engine  *join.Engine
}

// New creates a pipeline from configuration. m may be nil.
func New(
	log logrus.FieldLogger,
	cfg *config.Config,
	st store.Store,
	m *metrics.Metrics,
) (*Pipeline, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	renames := make([]ingest.SheetRename, 0, len(cfg.Ingest.SheetRenames))
	for _, rn := range cfg.Ingest.SheetRenames {
		renames = append(renames, ingest.SheetRename{
			Sheet: rn.Sheet,
			From:  rn.From,
			To:    rn.To,
		})
	}

	ingestCfg := &ingest.Config{
		Parser:       ingest.NewTimeParser(loc),
		Resolver:     siteid.Default,
		SheetRenames: renames,
	}

	return &Pipeline{
		log:     log.WithField("component", "pipeline"),
		cfg:     cfg,
		store:   st,
		metrics: m,
		alarms:  ingest.NewAlarmIngestor(log, ingestCfg),
		outages: ingest.NewOutageIngestor(log, ingestCfg),
		engine:  join.NewEngine(log, cfg.Join.AlarmClass),
	}, nil
}

// ResolveSources picks the input files from configuration.
func (p *Pipeline) ResolveSources() (Sources, error) {
	in := p.cfg.Inputs

	alarms, err := ingest.Resolve(in.Alarms.Path, in.Alarms.Dir, in.Alarms.Pattern)
	if err != nil {
		return Sources{}, fmt.Errorf("locating alarm workbook: %w", err)
	}

	outages, err := ingest.Resolve(in.Outages.Path, in.Outages.Dir, in.Outages.Pattern)
	if err != nil {
		return Sources{}, fmt.Errorf("locating outage export: %w", err)
	}

	return Sources{Alarms: alarms, Outages: outages}, nil
}

// Run resolves the configured sources and executes one run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	src, err := p.ResolveSources()
	if err != nil {
		return p.finish(ctx, newRun(), &Result{}, err)
	}

	return p.RunSources(ctx, src)
}

// RunSources executes one run over the given files. Ingestion failures
// abort before anything is persisted. The outcome is appended to the run
// log either way.
func (p *Pipeline) RunSources(ctx context.Context, src Sources) (*Result, error) {
	run := newRun()
	run.AlarmsSource = src.Alarms
	run.OutagesSource = src.Outages

	res := &Result{RunID: run.ID, Sources: src}

	err := p.execute(ctx, src, res)

	return p.finish(ctx, run, res, err)
}

func newRun() *store.Run {
	return &store.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

func (p *Pipeline) execute(ctx context.Context, src Sources, res *Result) error {
	log := p.log.WithField("run_id", res.RunID)

	alarms, err := p.alarms.Ingest(src.Alarms)
	if err != nil {
		return fmt.Errorf("ingesting alarms: %w", err)
	}

	res.Alarms = len(alarms.Records)
	res.Skipped = alarms.Skipped

	outages, err := p.outages.Ingest(src.Outages)
	if err != nil {
		return fmt.Errorf("ingesting outages: %w", err)
	}

	res.Outages = len(outages.Records)

	if err := p.store.ReplaceAlarms(ctx, alarms.Records); err != nil {
		return err
	}

	if err := p.store.ReplaceOutages(ctx, outages.Records); err != nil {
		return err
	}

	joined, stats := p.engine.JoinWithStats(alarms.Records, outages.Records)
	res.Stats = stats
	res.Joined = len(joined)

	if err := p.store.ReplaceJoined(ctx, joined); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"alarms":  res.Alarms,
		"outages": res.Outages,
		"joined":  res.Joined,
		"skipped": len(res.Skipped),
	}).Info("Run persisted")

	return nil
}

// finish completes the run log entry and metrics for a run.
func (p *Pipeline) finish(
	ctx context.Context,
	run *store.Run,
	res *Result,
	runErr error,
) (*Result, error) {
	finished := time.Now().UTC()
	res.RunID = run.ID
	res.Elapsed = finished.Sub(run.StartedAt)

	run.FinishedAt = &finished
	run.Alarms = res.Alarms
	run.Outages = res.Outages
	run.Joined = res.Joined
	run.SkippedSheets = len(res.Skipped)
	run.Status = store.RunStatusCompleted

	if runErr != nil {
		run.Status = store.RunStatusFailed
		run.Error = runErr.Error()
	}

	fillHost(ctx, run)

	if err := p.store.CreateRun(ctx, run); err != nil {
		p.log.WithError(err).WithField("run_id", run.ID).
			Warn("Failed to record run")
	}

	if p.metrics != nil {
		p.metrics.ObserveRun(metrics.Run{
			Alarms:     res.Alarms,
			Outages:    res.Outages,
			Skipped:    len(res.Skipped),
			Joined:     res.Joined,
			Duration:   res.Elapsed,
			Success:    runErr == nil,
			FinishedAt: finished,
		})
	}

	if runErr != nil {
		p.log.WithError(runErr).WithField("run_id", run.ID).Error("Run failed")

		return res, runErr
	}

	return res, nil
}

// fillHost records the executing host. Best-effort.
func fillHost(ctx context.Context, run *store.Run) {
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil {
		return
	}

	run.Hostname = info.Hostname
	run.Platform = info.Platform

	if info.PlatformVersion != "" {
		run.Platform += " " + info.PlatformVersion
	}
}
