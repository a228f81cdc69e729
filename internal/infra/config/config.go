package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Extract  ExtractConfig  `mapstructure:"extract" yaml:"extract"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	Dir           string        `mapstructure:"dir" yaml:"dir"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	VerifyTLS     bool          `mapstructure:"verify_tls" yaml:"verify_tls"`
	ChunkSize     int           `mapstructure:"chunk_size" yaml:"chunk_size"`

	// Targets overrides the built-in archive list when non-empty.
	Targets []string `mapstructure:"targets" yaml:"targets"`
}

type ExtractConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

type RetryConfig struct {
	Attempts   int           `mapstructure:"attempts" yaml:"attempts"`
	Backoff    time.Duration `mapstructure:"backoff" yaml:"backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	// SQLitePath is where run history is recorded. Empty disables history.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// Load reads configuration from the given YAML file, environment variables
// (TRIPFETCH_ prefix) and built-in defaults. An empty path skips the file
// and runs on defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("download.base_url", "https://divvy-tripdata.s3.amazonaws.com")
	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.max_concurrent", 5)
	v.SetDefault("download.timeout", 600*time.Second)
	v.SetDefault("download.verify_tls", false)
	v.SetDefault("download.chunk_size", 1024)
	v.SetDefault("extract.workers", 5)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.backoff", time.Second)
	v.SetDefault("retry.max_backoff", 10*time.Second)
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.sqlite_path", "tripfetch.db")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}

		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("TRIPFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Download.BaseURL == "" {
		return errors.New("download.base_url is required")
	}

	if c.Download.Dir == "" {
		c.Download.Dir = "./downloads"
	}

	if c.Download.MaxConcurrent <= 0 {
		return fmt.Errorf("download.max_concurrent must be positive, got %d", c.Download.MaxConcurrent)
	}

	if c.Download.ChunkSize <= 0 {
		c.Download.ChunkSize = 1024
	}

	if c.Extract.Workers <= 0 {
		return fmt.Errorf("extract.workers must be positive, got %d", c.Extract.Workers)
	}

	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}

	if c.Retry.Backoff <= 0 {
		c.Retry.Backoff = time.Second
	}

	if c.Retry.MaxBackoff < c.Retry.Backoff {
		c.Retry.MaxBackoff = c.Retry.Backoff
	}

	return nil
}
