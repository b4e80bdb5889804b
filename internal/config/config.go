// Package config provides centralized configuration for nfchat, loaded
// from a YAML file and NFCHAT_* environment variables via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete nfchat configuration.
type Config struct {
	Training TrainingConfig `mapstructure:"training"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// TrainingConfig controls the model trainer and order selector.
type TrainingConfig struct {
	// MaxIterations caps the EM loop per fit.
	MaxIterations int `mapstructure:"max_iterations"`
	// Tolerance is the relative log-likelihood convergence threshold.
	Tolerance float64 `mapstructure:"tolerance"`
	// CovarianceFloor keeps emission variances strictly positive.
	CovarianceFloor float64 `mapstructure:"covariance_floor"`
	// MaxAutoStates is the ceiling for automatic state-count selection.
	MaxAutoStates int `mapstructure:"max_auto_states"`
}

// IngestConfig controls flow loading and sessionization.
type IngestConfig struct {
	// SessionGapMs splits a source's flows into sessions at larger gaps.
	SessionGapMs int64 `mapstructure:"session_gap_ms"`
	// MinSessionLength drops sessions with fewer flows.
	MinSessionLength int `mapstructure:"min_session_length"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Training: TrainingConfig{
			MaxIterations:   100,
			Tolerance:       1e-4,
			CovarianceFloor: 1e-6,
			MaxAutoStates:   15,
		},
		Ingest: IngestConfig{
			SessionGapMs:     30 * 60 * 1000,
			MinSessionLength: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("training.max_iterations", defaults.Training.MaxIterations)
	viper.SetDefault("training.tolerance", defaults.Training.Tolerance)
	viper.SetDefault("training.covariance_floor", defaults.Training.CovarianceFloor)
	viper.SetDefault("training.max_auto_states", defaults.Training.MaxAutoStates)

	viper.SetDefault("ingest.session_gap_ms", defaults.Ingest.SessionGapMs)
	viper.SetDefault("ingest.min_session_length", defaults.Ingest.MinSessionLength)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)

	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Init wires viper to the config file and NFCHAT_* environment variables.
// A missing config file is not an error; environment and defaults apply.
func Init() error {
	SetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(ConfigDir())
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("NFCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: read %s: %w", viper.ConfigFileUsed(), err)
		}
	}
	return nil
}

// Load reads the configuration from viper into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return &cfg, nil
}

// Validate returns the list of problems with the configuration.
func (c *Config) Validate() []string {
	var errs []string

	if c.Training.MaxIterations < 1 {
		errs = append(errs, "training.max_iterations must be positive")
	}
	if c.Training.Tolerance <= 0 {
		errs = append(errs, "training.tolerance must be positive")
	}
	if c.Training.CovarianceFloor <= 0 {
		errs = append(errs, "training.covariance_floor must be positive")
	}
	if c.Training.MaxAutoStates < 2 {
		errs = append(errs, "training.max_auto_states must be at least 2")
	}
	if c.Ingest.SessionGapMs < 0 {
		errs = append(errs, "ingest.session_gap_ms must not be negative")
	}
	if c.Ingest.MinSessionLength < 1 {
		errs = append(errs, "ingest.min_session_length must be positive")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	return errs
}

// ConfigDir returns the user's nfchat config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nfchat")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nfchat"
	}
	return filepath.Join(home, ".config", "nfchat")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
