// Package config loads tracker settings from an optional file and SPEND_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, so sheet_id is SPEND_SHEET_ID
// and bigquery.table is SPEND_BIGQUERY_TABLE.
const EnvPrefix = "SPEND"

// ErrMissingConfig is wrapped by ConfigurationError.
var ErrMissingConfig = errors.New("missing configuration")

// ConfigurationError names the required keys that are not set, or a key whose
// value cannot be used.
type ConfigurationError struct {
	Missing []string
	Key     string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("invalid configuration %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("missing configuration: %s", strings.Join(e.Missing, ", "))
}

func (e *ConfigurationError) Unwrap() []error {
	var errs []error
	if len(e.Missing) > 0 {
		errs = append(errs, ErrMissingConfig)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Config holds every tracker setting.
type Config struct {
	SheetID         string         `mapstructure:"sheet_id"`
	HistoryRange    string         `mapstructure:"range"`
	AppendRange     string         `mapstructure:"append_range"`
	CredentialsFile string         `mapstructure:"credentials_file"`
	CredentialsJSON string         `mapstructure:"credentials_json"`
	CacheTTL        time.Duration  `mapstructure:"cache_ttl"`
	Timezone        string         `mapstructure:"timezone"`
	Port            int            `mapstructure:"port"`
	LogLevel        string         `mapstructure:"log_level"`
	APIKey          string         `mapstructure:"api_key"`
	Export          ExportConfig   `mapstructure:"export"`
	BigQuery        BigQueryConfig `mapstructure:"bigquery"`
}

// ExportConfig locates CSV exports in Cloud Storage.
type ExportConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// BigQueryConfig locates the daily totals snapshot table.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
	Table   string `mapstructure:"table"`
}

var keys = []string{
	"sheet_id",
	"range",
	"append_range",
	"credentials_file",
	"credentials_json",
	"cache_ttl",
	"timezone",
	"port",
	"log_level",
	"api_key",
	"export.bucket",
	"export.prefix",
	"bigquery.project",
	"bigquery.dataset",
	"bigquery.table",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("export.prefix", "exports")
	v.SetDefault("bigquery.dataset", "finance")
	v.SetDefault("bigquery.table", "daily_totals")
}

// Load reads configPath when it is non-empty, then overlays environment
// variables. The file format follows its extension.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", k, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the keys every command needs.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.SheetID) == "" {
		missing = append(missing, "sheet_id")
	}
	if strings.TrimSpace(c.HistoryRange) == "" {
		missing = append(missing, "range")
	}
	if strings.TrimSpace(c.AppendRange) == "" {
		missing = append(missing, "append_range")
	}
	if strings.TrimSpace(c.CredentialsJSON) == "" && strings.TrimSpace(c.CredentialsFile) == "" {
		missing = append(missing, "credentials_file or credentials_json")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	if _, err := c.Location(); err != nil {
		return &ConfigurationError{Key: "timezone", Err: err}
	}
	return nil
}

// Location resolves Timezone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Credentials returns the credential JSON, reading CredentialsFile when the
// inline value is empty. Both empty yields nil.
func (c *Config) Credentials() ([]byte, error) {
	if strings.TrimSpace(c.CredentialsJSON) != "" {
		return []byte(c.CredentialsJSON), nil
	}
	if c.CredentialsFile == "" {
		return nil, nil
	}
	b, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return b, nil
}
