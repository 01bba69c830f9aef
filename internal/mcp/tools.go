package mcp

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/stevehiehn/deskagent/internal/demo"
	"github.com/stevehiehn/deskagent/internal/plan"
	"github.com/stevehiehn/deskagent/internal/tools"
)

const (
	toolRunWorkflow  = "run_workflow"
	toolDemoTerminal = "demo_terminal_workflow"
)

var runWorkflowSchema = tools.Schema{
	Type: "object",
	Properties: map[string]tools.Property{
		"steps": {
			Type:        "array",
			Description: "Ordered steps. Each step has tool, args, wait_after_ms, description and continue_on_error.",
			Items:       &tools.Property{Type: "object"},
		},
	},
	Required: []string{"steps"},
}

var demoTerminalSchema = tools.Schema{
	Type: "object",
	Properties: map[string]tools.Property{
		"text":               {Type: "string", Description: "Command to type into the terminal", Default: "echo hello world"},
		"terminal_wait_ms":   {Type: "integer", Description: "Wait after opening the terminal", Default: 2000},
		"post_type_wait_ms":  {Type: "integer", Description: "Wait after typing", Default: 500},
		"post_enter_wait_ms": {Type: "integer", Description: "Wait after pressing Enter", Default: 1000},
		"capture_screenshot": {Type: "boolean", Description: "Capture a screenshot once the command ran", Default: true},
		"close_terminal":     {Type: "boolean", Description: "Close the terminal when done", Default: true},
	},
}

func (s *Server) runWorkflow(ctx context.Context, args map[string]any) *mcp.CallToolResult {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return mcp.NewToolResultText(jsonText(s.runner.Run(ctx, args["steps"])))
}

func (s *Server) runDemo(ctx context.Context, args map[string]any) *mcp.CallToolResult {
	o := demo.DefaultOptions()
	if v, ok := args["text"].(string); ok {
		o.Text = v
	}
	o.TerminalWait = msArg(args, "terminal_wait_ms", o.TerminalWait)
	o.PostTypeWait = msArg(args, "post_type_wait_ms", o.PostTypeWait)
	o.PostEnterWait = msArg(args, "post_enter_wait_ms", o.PostEnterWait)
	if v, ok := args["capture_screenshot"].(bool); ok {
		o.CaptureScreenshot = v
	}
	if v, ok := args["close_terminal"].(bool); ok {
		o.CloseTerminal = v
	}

	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	rep := s.terminal.Run(ctx, o)
	if s.metrics != nil {
		s.metrics.RecordDemo(rep.Success)
	}
	return mcp.NewToolResultText(jsonText(rep))
}

// msArg reads a non-negative millisecond count. Anything else keeps def.
func msArg(args map[string]any, name string, def time.Duration) time.Duration {
	var ms float64
	switch v := args[name].(type) {
	case float64:
		ms = v
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	default:
		return def
	}
	if ms < 0 || math.IsNaN(ms) {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// loadWorkflowTools reads every YAML file in the workflow directory and
// registers each workflow as a tool named after it. Files that fail to
// load, and names taken by other tools, are skipped.
func (s *Server) loadWorkflowTools() {
	if s.workflowDir == "" {
		return
	}
	entries, err := os.ReadDir(s.workflowDir)
	if err != nil {
		s.logger.Warn("cannot read workflow directory", zap.String("dir", s.workflowDir), zap.Error(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		path := filepath.Join(s.workflowDir, e.Name())
		w, err := plan.LoadFile(path)
		if err != nil {
			s.logger.Warn("skipping workflow file", zap.String("file", path), zap.Error(err))
			continue
		}
		if _, taken := s.registry.Get(w.Name); taken || w.Name == toolRunWorkflow || w.Name == toolDemoTerminal {
			s.logger.Warn("workflow name collides with a built-in tool", zap.String("name", w.Name))
			continue
		}
		if _, dup := s.workflows[w.Name]; dup {
			s.logger.Warn("duplicate workflow name", zap.String("name", w.Name), zap.String("file", path))
			continue
		}
		if err := plan.Validate(w, s.registry, nil); err != nil {
			s.logger.Warn("skipping invalid workflow", zap.String("file", path), zap.Error(err))
			continue
		}
		s.workflows[w.Name] = w
		s.addTool(w.Name, workflowDescription(w), workflowSchema(w))
		s.logger.Debug("registered workflow tool", zap.String("name", w.Name), zap.String("file", path))
	}
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func workflowDescription(w *plan.Workflow) string {
	if w.Description != "" {
		return w.Description
	}
	return "Execute the " + w.Name + " workflow"
}

// workflowSchema converts workflow inputs to string arguments.
func workflowSchema(w *plan.Workflow) tools.Schema {
	schema := tools.Schema{Type: "object", Properties: map[string]tools.Property{}}
	for name, inp := range w.Inputs {
		p := tools.Property{Type: "string", Description: inp.Description}
		if inp.Default != "" {
			p.Default = inp.Default
		}
		schema.Properties[name] = p
		if inp.Required && inp.Default == "" {
			schema.Required = append(schema.Required, name)
		}
	}
	sort.Strings(schema.Required)
	return schema
}

func (s *Server) runWorkflowFile(ctx context.Context, w *plan.Workflow, args map[string]any) *mcp.CallToolResult {
	inputs := map[string]string{}
	for k, v := range args {
		if str, ok := v.(string); ok {
			inputs[k] = str
		}
	}
	steps, err := w.ResolvedSteps(inputs)
	if err != nil {
		return mcp.NewToolResultText(jsonText(map[string]any{"success": false, "error": err.Error()}))
	}

	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return mcp.NewToolResultText(jsonText(s.runner.Run(ctx, steps)))
}
