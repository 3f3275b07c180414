package config

import (
	"fmt"
	"strings"
	"time"
	// Embedded zone database so timezone settings work in minimal images.
	_ "time/tzdata"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variable overrides, e.g.
// BACKUPOOR_DATABASE_SQLITE_PATH overrides database.sqlite.path.
const EnvPrefix = "BACKUPOOR"

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultTimezone is the location export timestamps are read in.
	DefaultTimezone = "UTC"

	// DefaultAlarmsPath is the default alarm workbook.
	DefaultAlarmsPath = "LOGS DE AE SEMANA 01-2025.xlsx"

	// DefaultOutagesPath is the default outage export.
	DefaultOutagesPath = "nodeb_unavailable_2025 01.csv"

	// DefaultAlarmClass is the alarm name fragment joined against outages.
	DefaultAlarmClass = "MINOR RECT FAILURE"

	// DefaultSQLitePath is the default SQLite database file.
	DefaultSQLitePath = "etl_alarms.db"

	// DefaultExportDir is where run artifacts are written.
	DefaultExportDir = "."

	// DefaultCSVFile is the joined table CSV dump file name.
	DefaultCSVFile = "resultados_joined.csv"

	// DefaultTopN is the number of alarm names in the top alarms report.
	DefaultTopN = 20

	// DefaultListen is the API server listen address.
	DefaultListen = ":8080"
)

// Config is the root configuration for backupoor.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Inputs   InputsConfig   `yaml:"inputs" mapstructure:"inputs"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Join     JoinConfig     `yaml:"join" mapstructure:"join"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	API      APIConfig      `yaml:"api" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// InputsConfig locates the two input files.
type InputsConfig struct {
	Alarms  SourceConfig `yaml:"alarms" mapstructure:"alarms"`
	Outages SourceConfig `yaml:"outages" mapstructure:"outages"`
}

// SourceConfig points at an input file. Path wins; otherwise the newest file
// in Dir matching Pattern is used.
type SourceConfig struct {
	Path    string `yaml:"path,omitempty" mapstructure:"path"`
	Dir     string `yaml:"dir,omitempty" mapstructure:"dir"`
	Pattern string `yaml:"pattern,omitempty" mapstructure:"pattern"`
}

// IngestConfig contains schema harmonization settings.
type IngestConfig struct {
	SheetRenames []SheetRenameConfig `yaml:"sheet_renames" mapstructure:"sheet_renames"`
}

// SheetRenameConfig renames column From to To on the named sheet.
type SheetRenameConfig struct {
	Sheet string `yaml:"sheet" mapstructure:"sheet"`
	From  string `yaml:"from" mapstructure:"from"`
	To    string `yaml:"to" mapstructure:"to"`
}

// JoinConfig contains join settings.
type JoinConfig struct {
	AlarmClass string `yaml:"alarm_class" mapstructure:"alarm_class"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// ReportConfig contains aggregation settings.
type ReportConfig struct {
	TopN int `yaml:"top_n" mapstructure:"top_n"`
}

// ExportConfig controls the artifacts written after a run.
type ExportConfig struct {
	Dir          string       `yaml:"dir" mapstructure:"dir"`
	Owner        string       `yaml:"owner,omitempty" mapstructure:"owner"`
	CSVFile      string       `yaml:"csv_file" mapstructure:"csv_file"`
	XLSXFile     string       `yaml:"xlsx_file,omitempty" mapstructure:"xlsx_file"`
	MarkdownFile string       `yaml:"markdown_file,omitempty" mapstructure:"markdown_file"`
	Upload       UploadConfig `yaml:"upload,omitempty" mapstructure:"upload"`
}

// UploadConfig groups remote upload targets.
type UploadConfig struct {
	S3 S3UploadConfig `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3UploadConfig contains S3 upload settings.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
}

// MetricsConfig controls metric output of batch runs.
type MetricsConfig struct {
	// Textfile, when set, receives the run metrics in the node exporter
	// textfile format after each run.
	Textfile string `yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// APIConfig contains the reporting API server settings.
type APIConfig struct {
	Listen            string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins       []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	ReadHeaderTimeout time.Duration   `yaml:"read_header_timeout" mapstructure:"read_header_timeout"`
	RateLimit         RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// setDefaults registers a default for every key so that environment
// overrides are visible to AllSettings even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("global.timezone", DefaultTimezone)

	v.SetDefault("inputs.alarms.path", DefaultAlarmsPath)
	v.SetDefault("inputs.alarms.dir", ".")
	v.SetDefault("inputs.alarms.pattern", "")
	v.SetDefault("inputs.outages.path", DefaultOutagesPath)
	v.SetDefault("inputs.outages.dir", ".")
	v.SetDefault("inputs.outages.pattern", "")

	v.SetDefault("ingest.sheet_renames", []map[string]any{{
		"sheet": "PENINSULA",
		"from":  "Last Occurred (NT)",
		"to":    "Occurred On (NT)",
	}})

	v.SetDefault("join.alarm_class", DefaultAlarmClass)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", DefaultSQLitePath)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "backupoor")
	v.SetDefault("database.postgres.ssl_mode", "disable")

	v.SetDefault("report.top_n", DefaultTopN)

	v.SetDefault("export.dir", DefaultExportDir)
	v.SetDefault("export.owner", "")
	v.SetDefault("export.csv_file", DefaultCSVFile)
	v.SetDefault("export.xlsx_file", "")
	v.SetDefault("export.markdown_file", "")
	v.SetDefault("export.upload.s3.enabled", false)
	v.SetDefault("export.upload.s3.endpoint_url", "")
	v.SetDefault("export.upload.s3.region", "")
	v.SetDefault("export.upload.s3.bucket", "")
	v.SetDefault("export.upload.s3.prefix", "")
	v.SetDefault("export.upload.s3.access_key_id", "")
	v.SetDefault("export.upload.s3.secret_access_key", "")
	v.SetDefault("export.upload.s3.force_path_style", false)
	v.SetDefault("export.upload.s3.storage_class", "")
	v.SetDefault("export.upload.s3.acl", "")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("api.listen", DefaultListen)
	v.SetDefault("api.cors_origins", []string{})
	v.SetDefault("api.read_header_timeout", "10s")
	v.SetDefault("api.rate_limit.enabled", false)
	v.SetDefault("api.rate_limit.requests_per_minute", 120)
}

// Load reads and merges configuration files in order, then applies
// BACKUPOOR_* environment overrides. With no paths only defaults and the
// environment are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

var validDrivers = map[string]struct{}{
	"sqlite":   {},
	"postgres": {},
}

// Validate checks the configuration used by the run, report and export
// commands.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.Inputs.Alarms.Path == "" && c.Inputs.Alarms.Pattern == "" {
		return fmt.Errorf("inputs.alarms: path or pattern is required")
	}

	if c.Inputs.Outages.Path == "" && c.Inputs.Outages.Pattern == "" {
		return fmt.Errorf("inputs.outages: path or pattern is required")
	}

	for i, rn := range c.Ingest.SheetRenames {
		if rn.Sheet == "" || rn.From == "" || rn.To == "" {
			return fmt.Errorf("ingest.sheet_renames[%d]: sheet, from and to are required", i)
		}
	}

	if c.Report.TopN < 0 {
		return fmt.Errorf("report.top_n must not be negative")
	}

	if c.Export.Upload.S3.Enabled && c.Export.Upload.S3.Bucket == "" {
		return fmt.Errorf("export.upload.s3: bucket is required when enabled")
	}

	return nil
}

// Validate checks the database settings.
func (d *DatabaseConfig) Validate() error {
	if _, ok := validDrivers[d.Driver]; !ok {
		return fmt.Errorf("database: unsupported driver %q", d.Driver)
	}

	if d.Driver == "sqlite" && d.SQLite.Path == "" {
		return fmt.Errorf("database.sqlite: path is required")
	}

	if d.Driver == "postgres" && d.Postgres.Host == "" {
		return fmt.Errorf("database.postgres: host is required")
	}

	return nil
}

// ValidateAPI checks the settings used by the api command.
func (c *Config) ValidateAPI() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.API.Listen == "" {
		return fmt.Errorf("api: listen address is required")
	}

	if c.API.RateLimit.Enabled && c.API.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("api.rate_limit: requests_per_minute must be positive")
	}

	return nil
}

// Location returns the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Global.Timezone)
	if err != nil {
		return nil, fmt.Errorf("global.timezone: %w", err)
	}

	return loc, nil
}
