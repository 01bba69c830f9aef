// Package mcp exposes the desktop tools, workflow runs and the terminal
// demo over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/stevehiehn/deskagent/internal/demo"
	"github.com/stevehiehn/deskagent/internal/engine"
	"github.com/stevehiehn/deskagent/internal/observability"
	"github.com/stevehiehn/deskagent/internal/plan"
	"github.com/stevehiehn/deskagent/internal/tools"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "deskagent"

// Server routes MCP tool calls to the tool registry, the workflow engine
// and the terminal demo.
type Server struct {
	mcpServer *server.MCPServer
	registry  *tools.Registry
	runner    *engine.Runner
	terminal  *demo.Terminal
	metrics   *observability.Metrics
	logger    *zap.Logger
	version   string

	workflowDir string
	workflows   map[string]*plan.Workflow
	demoOpts    []demo.Option

	// inputMu serializes everything that drives the physical keyboard or
	// mouse: input tools, workflow runs and the terminal demo.
	inputMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records tool calls, workflow runs and demo runs on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithWorkflowDir exposes every workflow file in dir as its own tool.
func WithWorkflowDir(dir string) Option {
	return func(s *Server) { s.workflowDir = dir }
}

// WithDemoOptions configures the terminal demo.
func WithDemoOptions(opts ...demo.Option) Option {
	return func(s *Server) { s.demoOpts = append(s.demoOpts, opts...) }
}

// New creates a server for registry.
func New(registry *tools.Registry, opts ...Option) *Server {
	s := &Server{
		registry:  registry,
		logger:    zap.NewNop(),
		version:   "dev",
		workflows: map[string]*plan.Workflow{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("mcp")

	engineOpts := []engine.Option{engine.WithLogger(s.logger.Named("engine"))}
	if s.metrics != nil {
		engineOpts = append(engineOpts, engine.WithObserver(s.metrics))
	}
	s.runner = engine.New(registry, engineOpts...)
	s.terminal = demo.NewTerminal(registry, append([]demo.Option{demo.WithLogger(s.logger)}, s.demoOpts...)...)

	s.mcpServer = server.NewMCPServer(
		ServerName,
		s.version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves MCP over stdin/stdout until stdin closes. Logging must
// not write to stdout while this runs.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP over stdio", zap.Int("tools", len(s.registry.Names())))
	return server.ServeStdio(s.mcpServer, server.WithErrorLogger(zap.NewStdLog(s.logger)))
}

func (s *Server) registerTools() {
	for _, t := range s.registry.List() {
		s.addTool(t.Name, t.Description, t.Schema)
	}
	s.addTool(toolRunWorkflow, "Execute a sequence of tool calls in order", runWorkflowSchema)
	s.addTool(toolDemoTerminal, "Open a terminal, type a command, press Enter and capture the result", demoTerminalSchema)
	s.loadWorkflowTools()
}

func (s *Server) addTool(name, description string, schema tools.Schema) {
	raw, err := json.Marshal(schema)
	if err != nil {
		s.logger.Error("failed to encode tool schema", zap.String("tool", name), zap.Error(err))
		return
	}
	s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, description, raw),
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return s.Call(ctx, name, getArgs(request)), nil
		})
}

// getArgs extracts arguments from request as map[string]any
func getArgs(request mcp.CallToolRequest) map[string]any {
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		return args
	}
	return map[string]any{}
}

// Call dispatches one tool call by name and formats its result for MCP
// clients.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	s.logger.Debug("tool call", zap.String("tool", name))
	switch name {
	case toolRunWorkflow:
		return s.runWorkflow(ctx, args)
	case toolDemoTerminal:
		return s.runDemo(ctx, args)
	}
	if w, ok := s.workflows[name]; ok {
		return s.runWorkflowFile(ctx, w, args)
	}

	t, ok := s.registry.Get(name)
	if !ok {
		return mcp.NewToolResultError("Unknown tool: " + name)
	}
	if t.Input {
		s.inputMu.Lock()
		defer s.inputMu.Unlock()
	}
	h, _ := s.registry.Resolve(name)
	out := engine.Call(ctx, h, args)
	s.recordToolCall(name, out)
	return toolResult(name, out)
}

func (s *Server) recordToolCall(name string, out engine.Outcome) {
	if s.metrics == nil {
		return
	}
	_, ok := out.(engine.Success)
	s.metrics.RecordToolCall(name, ok)
}

// toolResult renders a tool outcome. Successful screenshots become image
// content; everything else is indented JSON text.
func toolResult(name string, out engine.Outcome) *mcp.CallToolResult {
	var payload any
	switch o := out.(type) {
	case engine.Success:
		payload = o.Payload
		if name == "screenshot" {
			if img, meta, ok := splitImage(o.Payload); ok {
				return mcp.NewToolResultImage(jsonText(meta), img, "image/png")
			}
		}
	case engine.Failure:
		payload = o.Payload
		if payload == nil {
			payload = map[string]any{"success": false, "error": o.Message}
		}
	}
	return mcp.NewToolResultText(jsonText(payload))
}

// splitImage separates the base64 image from a screenshot payload.
func splitImage(payload any) (string, map[string]any, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", nil, false
	}
	img, ok := m["image"].(string)
	if !ok || img == "" {
		return "", nil, false
	}
	meta := make(map[string]any, len(m)-1)
	for k, v := range m {
		if k != "image" {
			meta[k] = v
		}
	}
	return img, meta, true
}

func jsonText(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
