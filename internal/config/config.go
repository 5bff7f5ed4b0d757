// Package config handles the XDG configuration directory, config.yaml,
// TASKMAN_* environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"taskman/internal/logging"
)

const (
	// AppName is the application directory name.
	AppName = "taskman"

	// ConfigFile is the optional config file name (without extension).
	ConfigFile = "config"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TASKMAN"

	// DefaultAPIURL is the backend used when nothing else is configured.
	DefaultAPIURL = "http://localhost:5000"

	// DefaultRequestTimeout bounds every backend call.
	DefaultRequestTimeout = 10 * time.Second
)

// ErrConfigFailed marks any failure to read or validate configuration.
var ErrConfigFailed = errors.New("config: failed to load")

// Error carries the path involved in a configuration failure.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ErrConfigFailed.Error()
	}
	return fmt.Sprintf("%v: %s: %v", ErrConfigFailed, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrConfigFailed.
func (e *Error) Is(target error) bool { return target == ErrConfigFailed }

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path. Session files live here.
	Dir string

	// APIURL is the backend base URL.
	APIURL string

	// LogLevel is one of logging.ValidLevels.
	LogLevel string

	// LogFile, when set, receives JSON logs.
	LogFile string

	// RequestTimeout bounds each backend call.
	RequestTimeout time.Duration

	// Debug enables debug logging to stderr.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool
}

// New loads configuration for the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/taskman or $HOME/.config/taskman.
//
// Precedence, highest first: TASKMAN_* environment (including values
// loaded from .env files), config.yaml, built-in defaults.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}

	for _, envFile := range []string{".env", filepath.Join(dir, ".env")} {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Path: envFile, Err: err}
		}
	}

	v := viper.New()
	v.SetConfigName(ConfigFile)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("log_level", logging.LevelInfo)
	v.SetDefault("log_file", "")
	v.SetDefault("request_timeout", DefaultRequestTimeout)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &Error{Path: filepath.Join(dir, ConfigFile+".yaml"), Err: err}
		}
	}

	cfg := &Config{
		Dir:            dir,
		APIURL:         strings.TrimRight(strings.TrimSpace(v.GetString("api_url")), "/"),
		LogLevel:       logging.ParseLevel(v.GetString("log_level")),
		LogFile:        v.GetString("log_file"),
		RequestTimeout: v.GetDuration("request_timeout"),
	}
	if cfg.LogFile != "" && !filepath.IsAbs(cfg.LogFile) {
		cfg.LogFile = filepath.Join(dir, cfg.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Path: dir, Err: err}
	}
	return cfg, nil
}

// Validate checks the settings that would make every backend call fail.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("api_url is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api_url %q: scheme must be http or https", c.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid api_url %q: missing host", c.APIURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request_timeout: %s", c.RequestTimeout)
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}
