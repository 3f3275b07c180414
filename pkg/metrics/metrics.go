// Package metrics exposes pipeline and store metrics in the Prometheus
// format, either over HTTP or as a node exporter textfile.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/backupoor/pkg/store"
)

const namespace = "backupoor"

// Record sources.
const (
	SourceAlarms  = "alarms"
	SourceOutages = "outages"
)

// Run represents the outcome of one pipeline run.
type Run struct {
	Alarms     int
	Outages    int
	Skipped    int
	Joined     int
	Duration   time.Duration
	Success    bool
	FinishedAt time.Time
}

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	recordsIngested *prometheus.CounterVec
	sheetsSkipped   prometheus.Counter
	joinedRows      prometheus.Gauge
	runDuration     prometheus.Gauge
	lastSuccess     prometheus.Gauge
	runsTotal       *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Records ingested by source.",
		}, []string{"source"}),
		sheetsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_skipped_total",
			Help:      "Alarm workbook sheets skipped for missing columns.",
		}),
		joinedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "joined_rows",
			Help:      "Joined rows produced by the last run.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.recordsIngested,
		m.sheetsSkipped,
		m.joinedRows,
		m.runDuration,
		m.lastSuccess,
		m.runsTotal,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records the outcome of a pipeline run.
func (m *Metrics) ObserveRun(r Run) {
	m.recordsIngested.WithLabelValues(SourceAlarms).Add(float64(r.Alarms))
	m.recordsIngested.WithLabelValues(SourceOutages).Add(float64(r.Outages))
	m.sheetsSkipped.Add(float64(r.Skipped))
	m.runDuration.Set(r.Duration.Seconds())

	if !r.Success {
		m.runsTotal.WithLabelValues(store.RunStatusFailed).Inc()

		return
	}

	m.joinedRows.Set(float64(r.Joined))
	m.lastSuccess.Set(float64(r.FinishedAt.Unix()))
	m.runsTotal.WithLabelValues(store.RunStatusCompleted).Inc()
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, replacing the file atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}

	return nil
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Counter reports table row counts.
type Counter interface {
	Counts(ctx context.Context) (store.TableCounts, error)
}

// RegisterTableGauges adds gauges reporting the current row count of each
// data table, queried on every scrape, plus the Go runtime collectors.
func (m *Metrics) RegisterTableGauges(log logrus.FieldLogger, c Counter) {
	log = log.WithField("component", "metrics")

	table := func(name, help string, pick func(store.TableCounts) int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			counts, err := c.Counts(ctx)
			if err != nil {
				log.WithError(err).Warn("Metrics count query failed")

				return 0
			}

			return float64(pick(counts))
		})
	}

	m.registry.MustRegister(
		table("alarms_rows", "Rows in the alarms table.",
			func(t store.TableCounts) int64 { return t.Alarms }),
		table("outages_rows", "Rows in the outages table.",
			func(t store.TableCounts) int64 { return t.Outages }),
		table("joined_table_rows", "Rows in the joined table.",
			func(t store.TableCounts) int64 { return t.Joined }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
