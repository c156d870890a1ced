package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"marketadjust/internal/marketindex"
)

// envPrefix is the prefix for environment variable overrides
const envPrefix = "MCADJ"

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Engine  EngineConfig  `yaml:"engine" envconfig:"ENGINE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ReportsDir  string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	HistoryFile string `yaml:"history_file" envconfig:"HISTORY_FILE"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// EngineConfig contains the market index engine defaults. Out-of-range
// values are clamped, not rejected, matching the engine's error design.
type EngineConfig struct {
	MinSalesPerMonth      int     `yaml:"min_sales_per_month" envconfig:"MIN_SALES_PER_MONTH"`
	SmoothWindow          int     `yaml:"smooth_window" envconfig:"SMOOTH_WINDOW"`
	IQRMultiplier         float64 `yaml:"iqr_multiplier" envconfig:"IQR_MULTIPLIER"`
	UseIQR                bool    `yaml:"use_iqr" envconfig:"USE_IQR"`
	UseRegressionOutliers bool    `yaml:"use_regression_outliers" envconfig:"USE_REGRESSION_OUTLIERS"`
	NoAdjustmentDays      int     `yaml:"no_adjustment_days" envconfig:"NO_ADJUSTMENT_DAYS"`
	IndexColumn           string  `yaml:"index_column" envconfig:"INDEX_COLUMN"`
	TrendLookbackMonths   int     `yaml:"trend_lookback_months" envconfig:"TREND_LOOKBACK_MONTHS"`
}

// ToEngine converts the configured defaults into an engine configuration,
// clamping invalid values into range
func (ec EngineConfig) ToEngine() marketindex.Config {
	cfg := marketindex.Config{
		MinSalesPerMonth:      ec.MinSalesPerMonth,
		SmoothWindow:          ec.SmoothWindow,
		IQRMultiplier:         ec.IQRMultiplier,
		UseIQR:                ec.UseIQR,
		UseRegressionOutliers: ec.UseRegressionOutliers,
		NoAdjustmentDays:      ec.NoAdjustmentDays,
		IndexColumn:           marketindex.ParseIndexColumn(ec.IndexColumn),
		TrendLookbackMonths:   ec.TrendLookbackMonths,
	}
	cfg.Normalize()
	return cfg
}

// Default returns the default configuration
func Default() *Config {
	engineDefaults := marketindex.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    100,
			RateLimitBurst:  50,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/marketadjust.log",
		},
		Paths: PathsConfig{
			DataDir:     "data",
			ReportsDir:  "data/reports",
			HistoryFile: "data/history.json",
			LogsDir:     "logs",
		},
		Engine: EngineConfig{
			MinSalesPerMonth:      engineDefaults.MinSalesPerMonth,
			SmoothWindow:          engineDefaults.SmoothWindow,
			IQRMultiplier:         engineDefaults.IQRMultiplier,
			UseIQR:                engineDefaults.UseIQR,
			UseRegressionOutliers: engineDefaults.UseRegressionOutliers,
			NoAdjustmentDays:      engineDefaults.NoAdjustmentDays,
			IndexColumn:           engineDefaults.IndexColumn.String(),
			TrendLookbackMonths:   engineDefaults.TrendLookbackMonths,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variable overrides, in increasing precedence.
func Load() (*Config, error) {
	return LoadFromFile(getConfigFilePath())
}

// LoadFromFile loads the configuration using the given YAML file path.
// A missing file is not an error; defaults and environment apply.
func LoadFromFile(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", filePath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", filePath, err)
		}
	}

	// Environment overrides; fields without a matching variable keep their
	// file or default values
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for structural defects. Engine values
// are exempt: they are clamped by ToEngine instead.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// getConfigFilePath returns the config file path, honoring the override
// environment variable
func getConfigFilePath() string {
	if path := os.Getenv(envPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}
	return "config.yaml"
}
