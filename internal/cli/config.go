package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional project file. Explicit flags override it.
type Config struct {
	// Timeout is the per-test timeout, e.g. "5s".
	Timeout string `yaml:"timeout,omitempty"`

	// DB is the SQLite database for run history.
	DB string `yaml:"db,omitempty"`

	// MetricsFile receives Prometheus metrics after each run.
	MetricsFile string `yaml:"metrics_file,omitempty"`

	// Suites are the default glob patterns for suite discovery.
	Suites []string `yaml:"suites,omitempty"`
}

// LoadConfig reads a config file strictly. A missing file yields an empty
// config unless required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Timeout != "" {
		if _, err := cfg.TimeoutDuration(); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return &cfg, nil
}

// TimeoutDuration parses Timeout. It returns 0 when unset.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", c.Timeout)
	}
	return d, nil
}

func (opts *RootOptions) loadConfig() (*Config, error) {
	cfg, err := LoadConfig(opts.Config, opts.configSet)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}
