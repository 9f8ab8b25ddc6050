package cwmanager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/wagiedev/cwmanager/internal/builtin"
	"github.com/wagiedev/cwmanager/internal/dispatch"
	"github.com/wagiedev/cwmanager/internal/mcp"
	"github.com/wagiedev/cwmanager/internal/mermaid"
	"github.com/wagiedev/cwmanager/internal/protocol"
	"github.com/wagiedev/cwmanager/internal/registry"
	"github.com/wagiedev/cwmanager/internal/stdio"
	"github.com/wagiedev/cwmanager/internal/telemetry"
)

// Server is a configured MCP server. All registrations happen in New; the
// registry is frozen before New returns.
type Server struct {
	log        *slog.Logger
	config     *Config
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	in         io.Reader
	out        io.Writer
}

// New builds a server from options.
//
// Registration order is: built-in tools and resources, the Mermaid tools
// when enabled, then WithRegistration values. Any registration error aborts
// construction.
func New(opts ...Option) (*Server, error) {
	o := applyOptions(opts)

	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	log := o.logger
	cfg := o.config

	reg := registry.New(log)

	if o.builtins {
		if err := builtin.Register(reg, cfg.Server.Name); err != nil {
			return nil, err
		}
	}

	if cfg.Mermaid.Enabled {
		checker := mermaid.NewChecker(&mermaid.Config{
			CliPath:          cfg.Mermaid.CliPath,
			Timeout:          cfg.MermaidTimeout(),
			SkipVersionCheck: cfg.Mermaid.SkipVersionCheck,
			Runner:           o.mermaidRunner,
			Logger:           log,
		})

		if err := mermaid.NewTools(checker).Register(reg); err != nil {
			return nil, err
		}
	}

	for _, r := range o.registrations {
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}

	reg.Freeze()

	otelObserver, err := telemetry.NewGlobalObserver()
	if err != nil {
		return nil, fmt.Errorf("create telemetry observer: %w", err)
	}

	observers := append([]Observer{otelObserver}, o.observers...)

	in, out := o.in, o.out
	if in == nil {
		in = os.Stdin
	}

	if out == nil {
		out = os.Stdout
	}

	log.Debug("Server initialized",
		"tools", len(reg.Tools()),
		"resources", len(reg.Resources()),
	)

	return &Server{
		log:        log,
		config:     cfg,
		registry:   reg,
		dispatcher: dispatch.New(reg, log, dispatch.WithObserver(dispatch.MultiObserver(observers...))),
		in:         in,
		out:        out,
	}, nil
}

// Dispatch runs one request through the dispatch core and returns its
// envelope. It never panics on handler failure.
func (s *Server) Dispatch(ctx context.Context, req *Request) *Response {
	return s.dispatcher.Dispatch(ctx, req)
}

// Tools returns the tool registrations in registration order.
func (s *Server) Tools() []*Registration {
	return s.registry.Tools()
}

// Resources returns the resource registrations in registration order.
func (s *Server) Resources() []*Registration {
	return s.registry.Resources()
}

// Config returns the configuration the server was built with.
func (s *Server) Config() *Config {
	return s.config
}

// Run serves MCP over the configured streams until the input reaches EOF,
// ctx is cancelled, or the transport fails. Requests already queued when
// input ends are answered before Run returns.
//
// A clean EOF or cancellation returns nil; a transport failure is returned.
func (s *Server) Run(ctx context.Context) error {
	transport := stdio.New(s.log, s.in, s.out)

	controller := protocol.NewController(s.log, transport,
		protocol.WithWorkers(s.config.Dispatch.Workers),
		protocol.WithQueueSize(s.config.Dispatch.QueueSize),
	)

	version := s.config.Server.Version
	if version == "" {
		version = Version
	}

	mcp.NewServer(s.log, s.dispatcher, mcp.Info{
		Name:         s.config.Server.Name,
		Version:      version,
		Instructions: s.config.Server.Instructions,
	}).Register(controller)

	if err := controller.Start(ctx); err != nil {
		return fmt.Errorf("start protocol controller: %w", err)
	}

	s.log.Info("Serving MCP on stdio",
		"name", s.config.Server.Name,
		"version", version,
		"workers", s.config.Dispatch.Workers,
	)

	err := controller.Wait()

	controller.Stop()

	if closeErr := transport.Close(); closeErr != nil {
		s.log.Warn("Failed to close transport", "error", closeErr)
	}

	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	s.log.Info("Server stopped")

	return nil
}
