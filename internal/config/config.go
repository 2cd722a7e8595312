package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultURLSource is the public ASTER GDEM archive listing.
const DefaultURLSource = "https://www.opentopodata.org/datasets/aster30m_urls.txt"

// Config defines configuration for the demfetch CLI.
type Config struct {
	URLSource       string        `yaml:"url_source"`
	OutputDir       string        `yaml:"output_dir"`
	StagingDir      string        `yaml:"staging_dir"`
	Workers         int           `yaml:"workers"`
	BatchSize       int           `yaml:"batch_size"`
	ExcludeSuffixes []string      `yaml:"exclude_suffixes"`
	TokenFile       string        `yaml:"token_file"`
	Timeout         time.Duration `yaml:"timeout"`
	Retry           RetryConfig   `yaml:"retry"`
}

// RetryConfig defines retry behavior for downloads.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		URLSource:       DefaultURLSource,
		OutputDir:       filepath.Join("data", "aster30m"),
		Workers:         4,
		ExcludeSuffixes: []string{"_num.tif"},
		TokenFile:       "token.txt",
		Timeout:         60 * time.Second,
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    5 * time.Second,
		},
	}
}

// Staging returns the staging directory, defaulting to a temp_zips
// directory next to the output directory.
func (c *Config) Staging() string {
	if c.StagingDir != "" {
		return c.StagingDir
	}
	return filepath.Join(filepath.Dir(c.OutputDir), "temp_zips")
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	URLSource       string          `yaml:"url_source"`
	OutputDir       string          `yaml:"output_dir"`
	StagingDir      string          `yaml:"staging_dir"`
	Workers         int             `yaml:"workers"`
	BatchSize       int             `yaml:"batch_size"`
	ExcludeSuffixes []string        `yaml:"exclude_suffixes"`
	TokenFile       string          `yaml:"token_file"`
	Timeout         string          `yaml:"timeout"`
	Retry           yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Delay    string `yaml:"delay"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.URLSource != "" {
		cfg.URLSource = yc.URLSource
	}
	if yc.OutputDir != "" {
		cfg.OutputDir = yc.OutputDir
	}
	if yc.StagingDir != "" {
		cfg.StagingDir = yc.StagingDir
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.BatchSize != 0 {
		cfg.BatchSize = yc.BatchSize
	}
	if len(yc.ExcludeSuffixes) > 0 {
		cfg.ExcludeSuffixes = yc.ExcludeSuffixes
	}
	if yc.TokenFile != "" {
		cfg.TokenFile = yc.TokenFile
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Delay != "" {
		d, err := time.ParseDuration(yc.Retry.Delay)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.delay: %w", err)
		}
		cfg.Retry.Delay = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the DEMFETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("DEMFETCH_URL_SOURCE"); v != "" {
		c.URLSource = v
	}
	if v := os.Getenv("DEMFETCH_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("DEMFETCH_STAGING_DIR"); v != "" {
		c.StagingDir = v
	}
	if v := os.Getenv("DEMFETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse DEMFETCH_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("DEMFETCH_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse DEMFETCH_BATCH_SIZE: %w", err)
		}
		c.BatchSize = n
	}
	if v := os.Getenv("DEMFETCH_EXCLUDE_SUFFIXES"); v != "" {
		c.ExcludeSuffixes = splitList(v)
	}
	if v := os.Getenv("DEMFETCH_TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("DEMFETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse DEMFETCH_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("DEMFETCH_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse DEMFETCH_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("DEMFETCH_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse DEMFETCH_RETRY_DELAY: %w", err)
		}
		c.Retry.Delay = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URLSource == "" {
		return errors.New("config: url_source is required")
	}
	if c.OutputDir == "" {
		return errors.New("config: output_dir is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("config: retry.attempts must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
