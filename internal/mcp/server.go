package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/cwmanager/internal/dispatch"
	"github.com/wagiedev/cwmanager/internal/errors"
	"github.com/wagiedev/cwmanager/internal/protocol"
	"github.com/wagiedev/cwmanager/internal/registry"
)

// MCP method names served by Server.
const (
	MethodInitialize            = "initialize"
	MethodInitialized           = "notifications/initialized"
	MethodPing                  = "ping"
	MethodToolsList             = "tools/list"
	MethodToolsCall             = "tools/call"
	MethodResourcesList         = "resources/list"
	MethodResourceTemplatesList = "resources/templates/list"
	MethodResourcesRead         = "resources/read"
)

// CodeResourceNotFound is the MCP error code for an unknown resource URI.
const CodeResourceNotFound = -32002

// LatestProtocolVersion is offered to clients requesting an unknown version.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists the protocol versions the server speaks,
// newest first.
var SupportedProtocolVersions = []string{
	LatestProtocolVersion,
	"2025-03-26",
	"2024-11-05",
}

// Info describes the server in the initialize handshake.
type Info struct {
	Name         string
	Version      string
	Instructions string
}

// HandlerRegistrar is the part of protocol.Controller the server installs
// itself into.
type HandlerRegistrar interface {
	RegisterHandler(method string, handler protocol.RequestHandler)
	RegisterNotificationHandler(method string, handler protocol.NotificationHandler)
}

// Compile-time verification that the controller accepts the server's handlers.
var _ HandlerRegistrar = (*protocol.Controller)(nil)

// Server answers MCP requests using a dispatcher.
type Server struct {
	dispatcher *dispatch.Dispatcher
	info       Info
	log        *slog.Logger

	mu              sync.Mutex
	protocolVersion string
	client          *mcp.Implementation
}

// NewServer creates an MCP server on top of a dispatcher.
func NewServer(log *slog.Logger, dispatcher *dispatch.Dispatcher, info Info) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Server{
		dispatcher: dispatcher,
		info:       info,
		log:        log.With("component", "mcp"),
	}
}

// Register installs every MCP method handler on the controller.
func (s *Server) Register(r HandlerRegistrar) {
	r.RegisterHandler(MethodInitialize, s.Initialize)
	r.RegisterHandler(MethodPing, s.Ping)
	r.RegisterHandler(MethodToolsList, s.ListTools)
	r.RegisterHandler(MethodToolsCall, s.CallTool)
	r.RegisterHandler(MethodResourcesList, s.ListResources)
	r.RegisterHandler(MethodResourceTemplatesList, s.ListResourceTemplates)
	r.RegisterHandler(MethodResourcesRead, s.ReadResource)
	r.RegisterNotificationHandler(MethodInitialized, s.initialized)
}

// ProtocolVersion returns the version negotiated by initialize, or "" before
// the handshake.
func (s *Server) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.protocolVersion
}

// Client returns the client implementation reported during initialize.
func (s *Server) Client() *mcp.Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.client
}

type initializeParams struct {
	ProtocolVersion string              `json:"protocolVersion"`
	ClientInfo      *mcp.Implementation `json:"clientInfo,omitempty"`
}

// Initialize negotiates the protocol version and reports capabilities.
func (s *Server) Initialize(_ context.Context, req *protocol.Request) (any, error) {
	var params initializeParams
	if err := req.Bind(&params); err != nil {
		return nil, err
	}

	version := negotiateVersion(params.ProtocolVersion)

	s.mu.Lock()
	s.protocolVersion = version
	s.client = params.ClientInfo
	s.mu.Unlock()

	clientName := ""
	if params.ClientInfo != nil {
		clientName = params.ClientInfo.Name
	}

	s.log.Info("Client initializing",
		"client", clientName,
		"requested_version", params.ProtocolVersion,
		"protocol_version", version,
	)

	return &mcp.InitializeResult{
		Capabilities: &mcp.ServerCapabilities{
			Tools:     &mcp.ToolCapabilities{},
			Resources: &mcp.ResourceCapabilities{},
		},
		Instructions:    s.info.Instructions,
		ProtocolVersion: version,
		ServerInfo: &mcp.Implementation{
			Name:    s.info.Name,
			Version: s.info.Version,
		},
	}, nil
}

func negotiateVersion(requested string) string {
	if slices.Contains(SupportedProtocolVersions, requested) {
		return requested
	}

	return LatestProtocolVersion
}

func (s *Server) initialized(context.Context, *protocol.Request) {
	s.log.Debug("Client initialized", "protocol_version", s.ProtocolVersion())
}

// Ping answers with an empty result.
func (s *Server) Ping(context.Context, *protocol.Request) (any, error) {
	return struct{}{}, nil
}

// ListTools reports every registered tool with its input schema.
func (s *Server) ListTools(context.Context, *protocol.Request) (any, error) {
	regs := s.dispatcher.Registry().Tools()

	tools := make([]*mcp.Tool, 0, len(regs))
	for _, reg := range regs {
		tools = append(tools, &mcp.Tool{
			Name:        reg.Name,
			Description: reg.Description,
			InputSchema: reg.Params.JSONSchema(),
		})
	}

	return &mcp.ListToolsResult{Tools: tools}, nil
}

// CallTool dispatches a tool invocation.
//
// An unknown tool is a protocol error. Argument and handler failures are
// reported inside the result so the client can show them to the model.
func (s *Server) CallTool(ctx context.Context, req *protocol.Request) (any, error) {
	var params mcp.CallToolParamsRaw
	if err := req.Bind(&params); err != nil {
		return nil, err
	}

	if params.Name == "" {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "tools/call requires a tool name", nil)
	}

	args, err := decodeArguments(params.Arguments)
	if err != nil {
		return nil, protocol.NewError(protocol.CodeInvalidParams, err.Error(), nil)
	}

	resp := s.dispatcher.Dispatch(ctx, &dispatch.Request{
		ID:         requestID(req),
		Kind:       registry.KindTool.String(),
		Identifier: params.Name,
		Arguments:  args,
	})

	if resp.OK() {
		return TextResult(PayloadText(resp.Payload)), nil
	}

	if resp.Error.Kind == errors.KindNotFound {
		return nil, protocol.NewError(
			protocol.CodeInvalidParams,
			"Unknown tool: "+params.Name,
			errorData(resp.Error),
		)
	}

	return ErrorResult(fmt.Sprintf("%s: %s", resp.Error.Kind, resp.Error.Message)), nil
}

// ListResources reports the resources without placeholders.
func (s *Server) ListResources(context.Context, *protocol.Request) (any, error) {
	resources := make([]*mcp.Resource, 0)

	for _, reg := range s.dispatcher.Registry().Resources() {
		if reg.Templated() {
			continue
		}

		resources = append(resources, &mcp.Resource{
			Name:        reg.Name,
			URI:         reg.Name,
			Description: reg.Description,
			MIMEType:    reg.MIMEType,
		})
	}

	return &mcp.ListResourcesResult{Resources: resources}, nil
}

// ListResourceTemplates reports the resources with placeholders.
func (s *Server) ListResourceTemplates(context.Context, *protocol.Request) (any, error) {
	templates := make([]*mcp.ResourceTemplate, 0)

	for _, reg := range s.dispatcher.Registry().Resources() {
		if !reg.Templated() {
			continue
		}

		templates = append(templates, &mcp.ResourceTemplate{
			Name:        reg.Name,
			URITemplate: reg.Name,
			Description: reg.Description,
			MIMEType:    reg.MIMEType,
		})
	}

	return &mcp.ListResourceTemplatesResult{ResourceTemplates: templates}, nil
}

// ReadResource dispatches a resource read.
func (s *Server) ReadResource(ctx context.Context, req *protocol.Request) (any, error) {
	var params mcp.ReadResourceParams
	if err := req.Bind(&params); err != nil {
		return nil, err
	}

	if params.URI == "" {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "resources/read requires a uri", nil)
	}

	resp := s.dispatcher.Dispatch(ctx, &dispatch.Request{
		ID:         requestID(req),
		Kind:       registry.KindResource.String(),
		Identifier: params.URI,
	})

	if !resp.OK() {
		return nil, resourceError(params.URI, resp.Error)
	}

	text, _ := resp.Payload.(string)

	mimeType := registry.DefaultMIMEType
	if match, err := s.dispatcher.Registry().Resolve(registry.KindResource, params.URI); err == nil {
		mimeType = match.Registration.MIMEType
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      params.URI,
			MIMEType: mimeType,
			Text:     text,
		}},
	}, nil
}

func resourceError(uri string, info *dispatch.ErrorInfo) *protocol.Error {
	switch info.Kind {
	case errors.KindNotFound:
		return protocol.NewError(CodeResourceNotFound, "Resource not found: "+uri, errorData(info))
	case errors.KindArgument:
		return protocol.NewError(protocol.CodeInvalidParams, info.Message, errorData(info))
	default:
		return protocol.NewError(protocol.CodeInternalError, info.Message, errorData(info))
	}
}

func errorData(info *dispatch.ErrorInfo) map[string]any {
	return map[string]any{
		"kind":    info.Kind,
		"message": info.Message,
	}
}

// decodeArguments reads tool arguments, keeping numbers as json.Number so
// large integers survive coercion.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object: %w", err)
	}

	return args, nil
}

// requestID turns the JSON-RPC id into a dispatch correlation id.
func requestID(req *protocol.Request) string {
	var id any
	if err := json.Unmarshal(req.ID, &id); err != nil || id == nil {
		return ""
	}

	return fmt.Sprint(id)
}
