package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/backupoor/pkg/config"
	"github.com/ethpandaops/backupoor/pkg/report"
	"github.com/ethpandaops/backupoor/pkg/store"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFiles []string
	logLevel string
	log      *logrus.Logger
)

func main() {
	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Failed to execute command")
	}
}

var rootCmd = &cobra.Command{
	Use:   "backupoor",
	Short: "Battery backup correlation of power alarms and site outages",
	Long: `Backupoor joins rectifier failure alarms with the site outages that
follow them, measures how long batteries held each site up, persists the
result and reports on it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}

		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}

		log.SetLevel(level)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("backupoor %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&cfgFiles, "config", nil,
		"config file path (repeatable, merged in order)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level ("+strings.Join(logLevels(), ", ")+"), overrides global.log_level")

	rootCmd.AddCommand(versionCmd)
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}

// loadConfig loads the merged configuration and applies its log level
// unless --log-level was given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if logLevel == "" {
		level, err := logrus.ParseLevel(cfg.Global.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid global.log_level %q: %w", cfg.Global.LogLevel, err)
		}

		log.SetLevel(level)
	}

	return cfg, nil
}

// openStore starts the configured store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st := store.NewStore(log, &cfg.Database, loc)
	if err := st.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting store: %w", err)
	}

	return st, nil
}

func newAggregator(cfg *config.Config, st store.Store) *report.Aggregator {
	return report.NewAggregator(log, st, cfg.Join.AlarmClass, cfg.Report.TopN)
}

func stopStore(st store.Store) {
	if err := st.Stop(); err != nil {
		log.WithError(err).Warn("Failed to close store")
	}
}
