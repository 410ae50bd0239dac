package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"ecomstudio/internal/scheduler"
)

type Config struct {
	// HTTP Server
	Port       string
	AdminToken string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	SeedDir      string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Stats engine
	BusinessTimezone    string
	StatsQueryTimeout   time.Duration
	StatsMaxConcurrency int

	// Snapshot worker
	SnapshotSchedule string
	SnapshotDebounce time.Duration

	// Google Sheets report export
	GoogleSpreadsheetID      string
	GoogleReportSheetName    string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Logging
	LogFormat string
	LogLevel  string
}

// fileConfig is the YAML layout read from CONFIG_FILE.
type fileConfig struct {
	Server struct {
		Port       string `yaml:"port"`
		AdminToken string `yaml:"admin_token"`
	} `yaml:"server"`
	Backend struct {
		Kind       string `yaml:"kind"`
		SQLitePath string `yaml:"sqlite_path"`
		SeedDir    string `yaml:"seed_dir"`
	} `yaml:"backend"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
		Queue    string `yaml:"queue"`
	} `yaml:"amqp"`
	Stats struct {
		Timezone       string `yaml:"timezone"`
		QueryTimeout   string `yaml:"query_timeout"`
		MaxConcurrency int    `yaml:"max_concurrency"`
	} `yaml:"stats"`
	Snapshot struct {
		Schedule string `yaml:"schedule"`
		Debounce string `yaml:"debounce"`
	} `yaml:"snapshot"`
	Google struct {
		SpreadsheetID      string `yaml:"spreadsheet_id"`
		ReportSheetName    string `yaml:"report_sheet_name"`
		ServiceAccountFile string `yaml:"service_account_file"`
	} `yaml:"google"`
	Log struct {
		Format string `yaml:"format"`
		Level  string `yaml:"level"`
	} `yaml:"log"`
}

func defaults() *Config {
	return &Config{
		Port:                  "8081",
		DataBackend:           "memory",
		SQLiteDBPath:          "./data/ecomstudio.db",
		SeedDir:               "./data",
		AMQPExchange:          "ecomstudio",
		AMQPQueue:             "ledger_recorded",
		BusinessTimezone:      "UTC",
		StatsQueryTimeout:     5 * time.Second,
		StatsMaxConcurrency:   0,
		SnapshotSchedule:      "0 */15 * * * *",
		SnapshotDebounce:      30 * time.Second,
		GoogleReportSheetName: "Stats",
		LogFormat:             "text",
		LogLevel:              "info",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile overlays non-empty values from a YAML file. A missing file is
// not an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.Port, fc.Server.Port)
	setString(&c.AdminToken, fc.Server.AdminToken)
	setString(&c.DataBackend, fc.Backend.Kind)
	setString(&c.SQLiteDBPath, fc.Backend.SQLitePath)
	setString(&c.SeedDir, fc.Backend.SeedDir)
	setString(&c.AMQPURL, fc.AMQP.URL)
	setString(&c.AMQPExchange, fc.AMQP.Exchange)
	setString(&c.AMQPQueue, fc.AMQP.Queue)
	setString(&c.BusinessTimezone, fc.Stats.Timezone)
	if fc.Stats.MaxConcurrency != 0 {
		c.StatsMaxConcurrency = fc.Stats.MaxConcurrency
	}
	if err := setDuration(&c.StatsQueryTimeout, fc.Stats.QueryTimeout); err != nil {
		return fmt.Errorf("parse config: stats.query_timeout: %w", err)
	}
	setString(&c.SnapshotSchedule, fc.Snapshot.Schedule)
	if err := setDuration(&c.SnapshotDebounce, fc.Snapshot.Debounce); err != nil {
		return fmt.Errorf("parse config: snapshot.debounce: %w", err)
	}
	setString(&c.GoogleSpreadsheetID, fc.Google.SpreadsheetID)
	setString(&c.GoogleReportSheetName, fc.Google.ReportSheetName)
	setString(&c.GoogleServiceAccountFile, fc.Google.ServiceAccountFile)
	setString(&c.LogFormat, fc.Log.Format)
	setString(&c.LogLevel, fc.Log.Level)
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.AdminToken = getEnv("ADMIN_TOKEN", c.AdminToken)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.SeedDir = getEnv("SEED_DIR", c.SeedDir)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.BusinessTimezone = getEnv("BUSINESS_TIMEZONE", c.BusinessTimezone)
	c.StatsQueryTimeout = getEnvDuration("STATS_QUERY_TIMEOUT", c.StatsQueryTimeout)
	c.StatsMaxConcurrency = getEnvInt("STATS_MAX_CONCURRENCY", c.StatsMaxConcurrency)

	c.SnapshotSchedule = getEnv("SNAPSHOT_SCHEDULE", c.SnapshotSchedule)
	c.SnapshotDebounce = getEnvDuration("SNAPSHOT_DEBOUNCE", c.SnapshotDebounce)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleReportSheetName = getEnv("GOOGLE_REPORT_SHEET_NAME", c.GoogleReportSheetName)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)

	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Location returns the business timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SheetsEnabled reports whether snapshot export to Google Sheets is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid business timezone '%s': %v", c.BusinessTimezone, err))
	}
	if c.StatsQueryTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid stats query timeout %v: must not be negative", c.StatsQueryTimeout))
	}
	if c.StatsMaxConcurrency < 0 || c.StatsMaxConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid stats max concurrency %d: must be between 0 and 64", c.StatsMaxConcurrency))
	}

	if c.SnapshotSchedule != "" {
		if err := scheduler.ValidateSpec(c.SnapshotSchedule); err != nil {
			errors = append(errors, err.Error())
		}
	}
	if c.SnapshotDebounce < 0 || c.SnapshotDebounce > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid snapshot debounce %v: must be between 0 and 1 hour", c.SnapshotDebounce))
	}

	if c.SheetsEnabled() {
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "console":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of [text json console]", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
