package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/localrivet/configurator"
)

// Default configuration values.
const (
	DefaultConfigFilename = ".cwmanager.json"
	EnvPrefix             = "CWMANAGER"

	DefaultServerName     = "cwmanager"
	DefaultWorkers        = 1
	DefaultQueueSize      = 64
	DefaultMermaidTimeout = 30
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// ServerConfig describes the server in the MCP handshake.
type ServerConfig struct {
	// Name is reported as serverInfo.name and used by the info://server resource.
	Name string `json:"name" env:"SERVER_NAME" validate:"required"`

	// Version is reported as serverInfo.version. Defaults to the build version.
	Version string `json:"version" env:"SERVER_VERSION"`

	// Instructions are sent to the client during initialize.
	Instructions string `json:"instructions" env:"SERVER_INSTRUCTIONS"`
}

// DispatchConfig sizes the request pipeline.
type DispatchConfig struct {
	// Workers is the number of requests handled concurrently. One keeps
	// handling strictly sequential.
	Workers int `json:"workers" env:"DISPATCH_WORKERS" validate:"min:1"`

	// QueueSize bounds the requests waiting for a worker.
	QueueSize int `json:"queue_size" env:"DISPATCH_QUEUE_SIZE" validate:"min:1"`
}

// MermaidConfig configures the Mermaid checker tools.
type MermaidConfig struct {
	// Enabled registers the check_mermaid_* and list_mermaid_blocks tools.
	Enabled bool `json:"enabled" env:"MERMAID_ENABLED"`

	// CliPath is an explicit mmdc path. Empty means search PATH.
	CliPath string `json:"cli_path" env:"MERMAID_CLI_PATH"`

	// TimeoutSeconds bounds a single mmdc run.
	TimeoutSeconds int `json:"timeout_seconds" env:"MERMAID_TIMEOUT_SECONDS" validate:"min:1"`

	// SkipVersionCheck disables the mmdc version warning.
	SkipVersionCheck bool `json:"skip_version_check" env:"MERMAID_SKIP_VERSION_CHECK"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `json:"level" env:"LOG_LEVEL" validate:"required"`

	// Format is the log format ("text", "json").
	Format string `json:"format" env:"LOG_FORMAT"`
}

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Dispatch DispatchConfig `json:"dispatch"`
	Mermaid  MermaidConfig  `json:"mermaid"`
	Logging  LoggingConfig  `json:"logging"`

	configPath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.Server.Name = DefaultServerName
	cfg.Dispatch.Workers = DefaultWorkers
	cfg.Dispatch.QueueSize = DefaultQueueSize
	cfg.Mermaid.Enabled = true
	cfg.Mermaid.TimeoutSeconds = DefaultMermaidTimeout
	cfg.Logging.Level = DefaultLogLevel
	cfg.Logging.Format = DefaultLogFormat

	return cfg
}

// Load reads the configuration from path. An empty path searches for
// DefaultConfigFilename and falls back to defaults when none exists.
func Load(ctx context.Context, path string, log *slog.Logger) (*Config, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	cfg := NewConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename

		if found, err := configurator.FindConfigFile(path); err == nil {
			path = found
			log.Debug("Found config file", "path", found)
		}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}

		log.Debug("Config file not found, using defaults", "path", path)

		path = ""
	}

	if err := load(ctx, log, path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.configPath = path

	return cfg, nil
}

// load applies the default, file and environment providers in order. The
// file provider is skipped when path is empty.
func load(ctx context.Context, log *slog.Logger, path string, cfg *Config) error {
	if path == "" {
		return configurator.New(log).
			WithProvider(configurator.NewDefaultProvider()).
			WithProvider(configurator.NewEnvProvider(EnvPrefix)).
			WithValidator(configurator.NewDefaultValidator()).
			Load(ctx, cfg)
	}

	log.Info("Loading configuration", "path", path)

	return configurator.New(log).
		WithProvider(configurator.NewDefaultProvider()).
		WithProvider(configurator.NewFileProvider(path)).
		WithProvider(configurator.NewEnvProvider(EnvPrefix)).
		WithValidator(configurator.NewDefaultValidator()).
		Load(ctx, cfg)
}

// Validate checks values the loader cannot express as tags.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Name) == "" {
		errs = append(errs, errors.New("server.name is required"))
	}

	if c.Dispatch.Workers < 1 {
		errs = append(errs, fmt.Errorf("dispatch.workers must be at least 1, got %d", c.Dispatch.Workers))
	}

	if c.Dispatch.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("dispatch.queue_size must be at least 1, got %d", c.Dispatch.QueueSize))
	}

	if c.Mermaid.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("mermaid.timeout_seconds must be at least 1, got %d", c.Mermaid.TimeoutSeconds))
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	return nil
}

// SaveToFile writes the configuration as JSON.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := configurator.SaveToFile(c, path, configurator.FormatJSON); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	c.configPath = path

	return nil
}

// Path returns the file the configuration was loaded from, or "" when only
// defaults and environment variables applied.
func (c *Config) Path() string {
	return c.configPath
}

// MermaidTimeout returns the mmdc timeout as a duration.
func (c *Config) MermaidTimeout() time.Duration {
	return time.Duration(c.Mermaid.TimeoutSeconds) * time.Second
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}

	return l, nil
}
