package cwmanager

import (
	"io"
	"log/slog"

	"github.com/wagiedev/cwmanager/internal/config"
	"github.com/wagiedev/cwmanager/internal/mermaid"
)

// Config is the complete server configuration. See config.Load.
type Config = config.Config

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return config.NewConfig()
}

// options holds everything New needs before building a Server.
type options struct {
	logger        *slog.Logger
	config        *Config
	in            io.Reader
	out           io.Writer
	registrations []Registration
	observers     []Observer
	builtins      bool
	mermaidRunner mermaid.Runner
}

// Option configures a Server using the functional options pattern.
type Option func(*options)

func applyOptions(opts []Option) *options {
	o := &options{builtins: true}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = NopLogger()
	}

	if o.config == nil {
		o.config = NewConfig()
	}

	return o
}

// ===== Basic Configuration =====

// WithLogger sets the logger for diagnostic output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConfig sets the server configuration. Defaults to NewConfig().
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithIO sets the streams Run serves on. Defaults to os.Stdin and os.Stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
	}
}

// ===== Registrations =====

// WithRegistration adds tools or resources to the server.
// Registrations are applied after the built-in ones, in order.
func WithRegistration(regs ...Registration) Option {
	return func(o *options) {
		o.registrations = append(o.registrations, regs...)
	}
}

// WithoutBuiltins skips the add, multiply, greeting and info registrations.
func WithoutBuiltins() Option {
	return func(o *options) {
		o.builtins = false
	}
}

// ===== Observability =====

// WithObserver adds an observer notified after every dispatch, alongside
// the OpenTelemetry observer.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, observer)
	}
}

// withMermaidRunner replaces the mmdc runner. Used by tests.
func withMermaidRunner(runner mermaid.Runner) Option {
	return func(o *options) {
		o.mermaidRunner = runner
	}
}
