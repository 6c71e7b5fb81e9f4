package config

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"

	OutputSizeCompact = "compact"
	OutputSizeFull    = "full"
)

type Config struct {
	Extract      ExtractConfig
	AlphaVantage AlphaVantageConfig `mapstructure:"alphavantage"`
	Database     DatabaseConfig
	Load         LoadConfig
	Schedule     ScheduleConfig
	Env          string
}

type ExtractConfig struct {
	Backoff BackoffConfig
	Timeout time.Duration `mapstructure:"timeout"`
}

type BackoffConfig struct {
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	RetryMax     int           `mapstructure:"retry_max"`
}

type AlphaVantageConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Function   string `mapstructure:"function"`
	Symbol     string `mapstructure:"symbol"`
	OutputSize string `mapstructure:"output_size"`
	Datatype   string `mapstructure:"datatype"`
}

type DatabaseConfig struct {
	Driver            string   `mapstructure:"driver"`
	Path              string   `mapstructure:"path"`
	Table             string   `mapstructure:"table"`
	ConnInitFnQueries []string `mapstructure:"conn_init_fn_queries"`
}

type LoadConfig struct {
	Transactional bool `mapstructure:"transactional"`
}

type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// NewConfig loads the configuration from the provided base config reader
// and merges it with the environment-specific configuration.
func NewConfig(baseConfigReader io.Reader, envConfigReader io.Reader, env string) (*Config, error) {
	if env == "" { // Use the provided 'env' or default to "dev"
		env = "dev"
	}

	viper.SetConfigType("yaml")

	// Read the base configuration
	if err := viper.ReadConfig(baseConfigReader); err != nil {
		return nil, fmt.Errorf("error reading base config: %w", err)
	}

	// Merge with environment-specific configuration (only if provided)
	if envConfigReader != nil {
		if err := viper.MergeConfig(envConfigReader); err != nil {
			return nil, fmt.Errorf("error merging %s config: %w", env, err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Set the environment directly
	config.Env = env

	return &config, nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverDuckDB:
	default:
		return fmt.Errorf("unsupported database driver %q, expected %q or %q", c.Database.Driver, DriverPostgres, DriverDuckDB)
	}

	switch c.AlphaVantage.OutputSize {
	case OutputSizeCompact, OutputSizeFull:
	default:
		return fmt.Errorf("unsupported output size %q, expected %q or %q", c.AlphaVantage.OutputSize, OutputSizeCompact, OutputSizeFull)
	}

	if c.AlphaVantage.Symbol == "" {
		return fmt.Errorf("alphavantage.symbol is required")
	}
	if c.AlphaVantage.BaseURL == "" {
		return fmt.Errorf("alphavantage.base_url is required")
	}
	if c.Database.Table == "" {
		return fmt.Errorf("database.table is required")
	}

	return nil
}
