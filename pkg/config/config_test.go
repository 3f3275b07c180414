package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
global:
  log_level: info
inputs:
  alarms:
    path: /data/alarms.xlsx
  outages:
    path: /data/outages.csv
database:
  driver: sqlite
  sqlite:
    path: /data/original.db
report:
  top_n: 10
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, "/data/alarms.xlsx", cfg.Inputs.Alarms.Path)
				assert.Equal(t, "/data/original.db", cfg.Database.SQLite.Path)
				assert.Equal(t, 10, cfg.Report.TopN)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"BACKUPOOR_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "nested field override - database.sqlite.path",
			envVars: map[string]string{
				"BACKUPOOR_DATABASE_SQLITE_PATH": "/tmp/override.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/override.db", cfg.Database.SQLite.Path)
			},
		},
		{
			name: "int override - report.top_n",
			envVars: map[string]string{
				"BACKUPOOR_REPORT_TOP_N": "5",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5, cfg.Report.TopN)
			},
		},
		{
			name: "override of a key absent from the file",
			envVars: map[string]string{
				"BACKUPOOR_JOIN_ALARM_CLASS": "MAJOR RECT FAILURE",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "MAJOR RECT FAILURE", cfg.Join.AlarmClass)
			},
		},
		{
			name: "boolean override - upload.s3.enabled",
			envVars: map[string]string{
				"BACKUPOOR_EXPORT_UPLOAD_S3_ENABLED": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Export.Upload.S3.Enabled)
			},
		},
		{
			name: "duration override - api.read_header_timeout",
			envVars: map[string]string{
				"BACKUPOOR_API_READ_HEADER_TIMEOUT": "3s",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3*time.Second, cfg.API.ReadHeaderTimeout)
			},
		},
		{
			name: "multiple overrides",
			envVars: map[string]string{
				"BACKUPOOR_GLOBAL_TIMEZONE":     "America/Lima",
				"BACKUPOOR_DATABASE_DRIVER":     "postgres",
				"BACKUPOOR_INPUTS_OUTAGES_PATH": "/other/outages.csv",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "America/Lima", cfg.Global.Timezone)
				assert.Equal(t, "postgres", cfg.Database.Driver)
				assert.Equal(t, "/other/outages.csv", cfg.Inputs.Outages.Path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_DefaultsAppliedWhenEmpty(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultTimezone, cfg.Global.Timezone)
	assert.Equal(t, DefaultAlarmsPath, cfg.Inputs.Alarms.Path)
	assert.Equal(t, DefaultOutagesPath, cfg.Inputs.Outages.Path)
	assert.Equal(t, DefaultAlarmClass, cfg.Join.AlarmClass)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Database.SQLite.Path)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, DefaultTopN, cfg.Report.TopN)
	assert.Equal(t, DefaultCSVFile, cfg.Export.CSVFile)
	assert.Equal(t, DefaultListen, cfg.API.Listen)
	assert.Equal(t, 10*time.Second, cfg.API.ReadHeaderTimeout)
	assert.False(t, cfg.Export.Upload.S3.Enabled)

	require.Len(t, cfg.Ingest.SheetRenames, 1)
	assert.Equal(t, SheetRenameConfig{
		Sheet: "PENINSULA",
		From:  "Last Occurred (NT)",
		To:    "Occurred On (NT)",
	}, cfg.Ingest.SheetRenames[0])

	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ValidateAPI())
}

func TestLoad_MergesFilesInOrder(t *testing.T) {
	base := writeConfig(t, "base.yaml", `
database:
  sqlite:
    path: /data/base.db
report:
  top_n: 7
api:
  cors_origins:
    - https://dash.example.com
`)
	overlay := writeConfig(t, "overlay.yaml", `
report:
  top_n: 3
ingest:
  sheet_renames:
    - sheet: NORTE
      from: Occurred (NT)
      to: Occurred On (NT)
`)

	cfg, err := Load(base, overlay)
	require.NoError(t, err)

	assert.Equal(t, "/data/base.db", cfg.Database.SQLite.Path)
	assert.Equal(t, 3, cfg.Report.TopN)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.API.CORSOrigins)

	require.Len(t, cfg.Ingest.SheetRenames, 1)
	assert.Equal(t, "NORTE", cfg.Ingest.SheetRenames[0].Sheet)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(_ *Config) {},
		},
		{
			name:    "unknown timezone",
			mutate:  func(cfg *Config) { cfg.Global.Timezone = "Mars/Olympus" },
			wantErr: "global.timezone",
		},
		{
			name:    "unsupported driver",
			mutate:  func(cfg *Config) { cfg.Database.Driver = "mysql" },
			wantErr: "unsupported driver",
		},
		{
			name:    "sqlite without path",
			mutate:  func(cfg *Config) { cfg.Database.SQLite.Path = "" },
			wantErr: "database.sqlite",
		},
		{
			name: "alarm source without path or pattern",
			mutate: func(cfg *Config) {
				cfg.Inputs.Alarms = SourceConfig{Dir: "/data"}
			},
			wantErr: "inputs.alarms",
		},
		{
			name: "outage source with pattern only",
			mutate: func(cfg *Config) {
				cfg.Inputs.Outages = SourceConfig{Dir: "/data", Pattern: "nodeb_*.csv"}
			},
		},
		{
			name: "incomplete sheet rename",
			mutate: func(cfg *Config) {
				cfg.Ingest.SheetRenames = []SheetRenameConfig{{Sheet: "SUR"}}
			},
			wantErr: "ingest.sheet_renames[0]",
		},
		{
			name:    "negative top_n",
			mutate:  func(cfg *Config) { cfg.Report.TopN = -1 },
			wantErr: "report.top_n",
		},
		{
			name:    "s3 enabled without bucket",
			mutate:  func(cfg *Config) { cfg.Export.Upload.S3.Enabled = true },
			wantErr: "bucket is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAPI(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.API.RateLimit.Enabled = true
	cfg.API.RateLimit.RequestsPerMinute = 0
	require.ErrorContains(t, cfg.ValidateAPI(), "requests_per_minute")

	cfg.API.RateLimit.RequestsPerMinute = 60
	cfg.API.Listen = ""
	require.ErrorContains(t, cfg.ValidateAPI(), "listen address")
}

func TestLocation(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Global.Timezone = "America/Lima"

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Lima", loc.String())
}
