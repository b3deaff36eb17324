// Package config loads CLI configuration from defaults, an optional YAML
// file and GLOBALASSIST_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Credential backends.
const (
	CredentialsFile   = "file"
	CredentialsMemory = "memory"
	CredentialsRedis  = "redis"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config is the resolved CLI configuration.
type Config struct {
	BaseURL        string            `yaml:"base_url" env:"GLOBALASSIST_API_URL"`
	RequestTimeout time.Duration     `yaml:"request_timeout" env:"GLOBALASSIST_REQUEST_TIMEOUT"`
	RetryAttempts  int               `yaml:"retry_attempts" env:"GLOBALASSIST_RETRY_ATTEMPTS"`
	Model          string            `yaml:"model" env:"GLOBALASSIST_MODEL"`
	Output         string            `yaml:"output" env:"GLOBALASSIST_OUTPUT"`
	Credentials    CredentialsConfig `yaml:"credentials"`
	Log            LogConfig         `yaml:"log"`
}

// CredentialsConfig selects where tokens are persisted.
type CredentialsConfig struct {
	Backend  string        `yaml:"backend" env:"GLOBALASSIST_CREDENTIALS"`
	File     string        `yaml:"file" env:"GLOBALASSIST_CREDENTIALS_FILE"`
	RedisURL string        `yaml:"redis_url" env:"GLOBALASSIST_REDIS_URL"`
	RedisTTL time.Duration `yaml:"redis_ttl" env:"GLOBALASSIST_REDIS_TTL"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"GLOBALASSIST_LOG_LEVEL"`
	Format string `yaml:"format" env:"GLOBALASSIST_LOG_FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:        "http://localhost:5000/api",
		RequestTimeout: 30 * time.Second,
		RetryAttempts:  1,
		Model:          "kiwi-4.5",
		Output:         OutputText,
		Credentials: CredentialsConfig{
			Backend: CredentialsFile,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Path of the YAML file. When empty, DefaultPath is tried and a missing
	// file is not an error.
	Path string
	// Environment replaces the process environment, mainly for tests.
	Environment map[string]string
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "globalassist", "config.yaml")
}

// Load resolves the configuration.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	envOpts := env.Options{}
	if opts.Environment != nil {
		envOpts.Environment = opts.Environment
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return nil
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("config: base_url is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: request_timeout must not be negative")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("config: retry_attempts must be at least 1")
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("config: unknown output %q", c.Output)
	}
	switch c.Credentials.Backend {
	case CredentialsFile, CredentialsMemory:
	case CredentialsRedis:
		if c.Credentials.RedisURL == "" {
			return fmt.Errorf("config: credentials.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown credentials backend %q", c.Credentials.Backend)
	}
	if _, err := c.Log.ZerologLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// ZerologLevel parses Level.
func (l LogConfig) ZerologLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(l.Level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("config: log level: %w", err)
	}
	return lvl, nil
}
