package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevehiehn/deskagent/internal/demo"
	"github.com/stevehiehn/deskagent/internal/observability"
	"github.com/stevehiehn/deskagent/internal/tools"
)

type fakeDesk struct {
	mu    sync.Mutex
	calls []string
	typed []string
	fail  map[string]string
}

func (f *fakeDesk) record(name string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if msg, ok := f.fail[name]; ok {
		return map[string]any{"success": false, "error": msg}, false
	}
	return nil, true
}

func (f *fakeDesk) registry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	simple := func(name string, input bool, props map[string]tools.Property, required ...string) tools.Tool {
		return tools.Tool{
			Name:        name,
			Description: name + " tool",
			Schema:      tools.Schema{Properties: props, Required: required},
			Input:       input,
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				if res, ok := f.record(name); !ok {
					return res, nil
				}
				if name == "type_text" {
					f.mu.Lock()
					f.typed = append(f.typed, args["text"].(string))
					f.mu.Unlock()
				}
				return map[string]any{"success": true}, nil
			},
		}
	}
	for _, tool := range []tools.Tool{
		simple("click", true, map[string]tools.Property{"x": {Type: "integer"}, "y": {Type: "integer"}}, "x", "y"),
		simple("type_text", true, map[string]tools.Property{"text": {Type: "string"}, "interval": {Type: "number"}}, "text"),
		simple("press_key", true, map[string]tools.Property{"key": {Type: "string"}}, "key"),
		simple("hotkey", true, map[string]tools.Property{"keys": {Type: "array"}}, "keys"),
		{
			Name:        "screenshot",
			Description: "Capture the screen",
			Schema:      tools.Schema{Properties: map[string]tools.Property{}},
			Handler: func(context.Context, map[string]any) (any, error) {
				f.record("screenshot")
				return map[string]any{"success": true, "image": "aGVsbG8=", "width": 2, "height": 1, "format": "png"}, nil
			},
		},
		{
			Name:        "boom",
			Description: "Always errors",
			Schema:      tools.Schema{Properties: map[string]tools.Property{}},
			Handler: func(context.Context, map[string]any) (any, error) {
				return nil, errors.New("kaput")
			},
		},
	} {
		require.NoError(t, r.Register(tool))
	}
	return r
}

func testDemoOptions() Option {
	return WithDemoOptions(
		demo.WithPlatform("linux"),
		demo.WithDetector(func() (string, bool) { return "xterm", true }),
		demo.WithLauncher(func(string) error { return nil }),
		demo.WithSleep(func(time.Duration) {}),
	)
}

// decode converts a tool result into generic JSON for assertions.
func decode(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func firstText(t *testing.T, v any) map[string]any {
	t.Helper()
	content := decode(t, v)["content"].([]any)
	require.NotEmpty(t, content)
	item := content[0].(map[string]any)
	require.Equal(t, "text", item["type"])
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(item["text"].(string)), &out))
	return out
}

func TestToolsListIncludesRegistryAndWorkflowTools(t *testing.T) {
	f := &fakeDesk{}
	s := New(f.registry(t), testDemoOptions())

	resp := s.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	body := decode(t, resp)
	listed := body["result"].(map[string]any)["tools"].([]any)

	names := map[string]map[string]any{}
	for _, item := range listed {
		m := item.(map[string]any)
		names[m["name"].(string)] = m
	}
	for _, want := range []string{"click", "type_text", "press_key", "hotkey", "screenshot", "boom", "run_workflow", "demo_terminal_workflow"} {
		assert.Contains(t, names, want)
	}

	schema := names["click"]["inputSchema"].(map[string]any)
	assert.Equal(t, "object", schema["type"])
	assert.ElementsMatch(t, []any{"x", "y"}, schema["required"])
	assert.Equal(t, "click tool", names["click"]["description"])
}

func TestCallToolViaProtocol(t *testing.T) {
	f := &fakeDesk{}
	s := New(f.registry(t), testDemoOptions())

	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"click","arguments":{"x":1,"y":2}}}`))
	body := decode(t, resp)
	content := body["result"].(map[string]any)["content"].([]any)
	require.Len(t, content, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(content[0].(map[string]any)["text"].(string)), &payload))
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, []string{"click"}, f.calls)
}

func TestCallUnknownTool(t *testing.T) {
	s := New((&fakeDesk{}).registry(t))
	res := decode(t, s.Call(context.Background(), "teleport", nil))
	assert.Equal(t, true, res["isError"])
	content := res["content"].([]any)
	assert.Equal(t, "Unknown tool: teleport", content[0].(map[string]any)["text"])
}

func TestCallHandlerErrorBecomesFailurePayload(t *testing.T) {
	s := New((&fakeDesk{}).registry(t))
	out := firstText(t, s.Call(context.Background(), "boom", map[string]any{}))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "kaput", out["error"])
}

func TestCallMissingRequiredArgument(t *testing.T) {
	s := New((&fakeDesk{}).registry(t))
	out := firstText(t, s.Call(context.Background(), "click", map[string]any{"x": 1}))
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], `missing required argument "y"`)
}

func TestScreenshotReturnsImageContent(t *testing.T) {
	s := New((&fakeDesk{}).registry(t))
	res := decode(t, s.Call(context.Background(), "screenshot", map[string]any{}))
	content := res["content"].([]any)

	var image map[string]any
	for _, c := range content {
		if m := c.(map[string]any); m["type"] == "image" {
			image = m
		}
	}
	require.NotNil(t, image, "expected image content")
	assert.Equal(t, "image/png", image["mimeType"])
	assert.Equal(t, "aGVsbG8=", image["data"])
}

func TestRunWorkflowTool(t *testing.T) {
	f := &fakeDesk{fail: map[string]string{"press_key": "no keyboard"}}
	reg := prometheus.NewRegistry()
	m := observability.InitMetrics(reg)
	s := New(f.registry(t), WithMetrics(m))

	out := firstText(t, s.Call(context.Background(), "run_workflow", map[string]any{
		"steps": []any{
			map[string]any{"tool": "click", "args": map[string]any{"x": 1.0, "y": 2.0}},
			map[string]any{"tool": "press_key", "args": map[string]any{"key": "enter"}},
			map[string]any{"tool": "type_text", "args": map[string]any{"text": "never"}},
		},
	}))

	assert.Equal(t, false, out["succeeded"])
	assert.Equal(t, float64(3), out["step_count"])
	assert.Equal(t, float64(1), out["completed_count"])
	assert.Equal(t, float64(1), out["halted_at_index"])
	assert.Equal(t, "no keyboard", out["error"])
	assert.Len(t, out["results"], 2)
	assert.Equal(t, []string{"click", "press_key"}, f.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkflowRunsTotal.WithLabelValues(observability.OutcomeFailed)))
}

func TestRunWorkflowRejectsMissingSteps(t *testing.T) {
	s := New((&fakeDesk{}).registry(t))
	out := firstText(t, s.Call(context.Background(), "run_workflow", map[string]any{}))
	assert.Equal(t, false, out["succeeded"])
	assert.Equal(t, "No steps provided", out["error"])
}

func TestDemoTerminalWorkflowTool(t *testing.T) {
	f := &fakeDesk{}
	reg := prometheus.NewRegistry()
	m := observability.InitMetrics(reg)
	s := New(f.registry(t), WithMetrics(m), testDemoOptions())

	out := firstText(t, s.Call(context.Background(), "demo_terminal_workflow", map[string]any{
		"text":               "ls -la",
		"capture_screenshot": false,
		"terminal_wait_ms":   10.0,
	}))

	assert.Equal(t, true, out["success"])
	assert.Equal(t, "ls -la", out["text_typed"])
	assert.Equal(t, "xterm", out["terminal_command"])
	assert.Equal(t, "Linux", out["platform"])
	assert.Equal(t, []any{"detect_terminal", "open_terminal", "wait_for_terminal", "type_text", "press_enter", "close_terminal"}, out["steps_completed"])
	assert.Equal(t, []string{"ls -la"}, f.typed)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DemoRunsTotal.WithLabelValues(observability.OutcomeSucceeded)))
}

func TestMsArg(t *testing.T) {
	def := 7 * time.Millisecond
	assert.Equal(t, 250*time.Millisecond, msArg(map[string]any{"w": 250.0}, "w", def))
	assert.Equal(t, 3*time.Millisecond, msArg(map[string]any{"w": 3}, "w", def))
	assert.Equal(t, def, msArg(map[string]any{"w": -1.0}, "w", def))
	assert.Equal(t, def, msArg(map[string]any{"w": "soon"}, "w", def))
	assert.Equal(t, def, msArg(map[string]any{}, "w", def))
}

func TestInputToolsAreSerialized(t *testing.T) {
	var active, maxActive int32
	r := tools.NewRegistry()
	require.NoError(t, r.Register(tools.Tool{
		Name:   "press_key",
		Input:  true,
		Schema: tools.Schema{Properties: map[string]tools.Property{}},
		Handler: func(context.Context, map[string]any) (any, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&maxActive)
				if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil, nil
		},
	}))
	s := New(r)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Call(context.Background(), "press_key", map[string]any{})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestWorkflowDirectoryTools(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("greet.yaml", `
name: greet
description: Type a greeting
inputs:
  who:
    required: true
    description: who to greet
steps:
  - tool: type_text
    args:
      text: "hello ${{inputs.who}}"
  - tool: press_key
    args: {key: enter}
`)
	write("collide.yaml", "name: click\nsteps:\n  - tool: click\n    args: {x: 1, y: 1}\n")
	write("invalid.yml", "name: broken\nsteps:\n  - tool: teleport\n")
	write("notes.txt", "not a workflow")

	f := &fakeDesk{}
	s := New(f.registry(t), WithWorkflowDir(dir))

	assert.Contains(t, s.workflows, "greet")
	assert.NotContains(t, s.workflows, "click")
	assert.NotContains(t, s.workflows, "broken")

	out := firstText(t, s.Call(context.Background(), "greet", map[string]any{"who": "bob"}))
	assert.Equal(t, true, out["succeeded"])
	assert.Equal(t, []string{"hello bob"}, f.typed)

	missing := firstText(t, s.Call(context.Background(), "greet", map[string]any{}))
	assert.Equal(t, false, missing["success"])
	assert.Contains(t, missing["error"], `missing required input "who"`)
}

func TestWorkflowSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "w.yaml"), []byte(`
name: w
inputs:
  b: {required: true}
  a: {required: true, default: x}
  c: {description: optional}
steps:
  - tool: press_key
    args: {key: "${{inputs.b}}"}
`), 0o644))
	s := New((&fakeDesk{}).registry(t), WithWorkflowDir(dir))
	schema := workflowSchema(s.workflows["w"])
	assert.Equal(t, []string{"b"}, schema.Required)
	assert.Equal(t, "x", schema.Properties["a"].Default)
	assert.Equal(t, "optional", schema.Properties["c"].Description)
}
