package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevehiehn/deskagent/internal/desktop"
	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
)

// fakeDriver records calls and returns canned values.
type fakeDriver struct {
	calls    []string
	err      error
	monitors []desktop.Monitor
	shot     desktop.Image
	region   *desktop.Monitor
	typed    string
	interval time.Duration
	keys     []string
	windows  []desktop.Window
}

func (f *fakeDriver) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeDriver) TypeText(_ context.Context, text string, interval time.Duration) error {
	f.typed, f.interval = text, interval
	return f.record("type")
}
func (f *fakeDriver) PressKey(_ context.Context, key string, mods []string) error {
	f.keys = append(append([]string{}, mods...), key)
	return f.record("key")
}
func (f *fakeDriver) Hotkey(_ context.Context, keys []string) error {
	f.keys = keys
	return f.record("hotkey")
}
func (f *fakeDriver) Click(context.Context, int, int, string) error { return f.record("click") }
func (f *fakeDriver) DoubleClick(context.Context, int, int) error   { return f.record("double_click") }
func (f *fakeDriver) MoveTo(context.Context, int, int, time.Duration) error {
	return f.record("move")
}
func (f *fakeDriver) DragTo(context.Context, int, int, time.Duration) error {
	return f.record("drag")
}
func (f *fakeDriver) Scroll(context.Context, int, *desktop.Point) error { return f.record("scroll") }
func (f *fakeDriver) MousePosition(context.Context) (desktop.Point, error) {
	return desktop.Point{X: 3, Y: 4}, f.record("position")
}
func (f *fakeDriver) Monitors(context.Context) ([]desktop.Monitor, error) {
	return f.monitors, f.record("monitors")
}
func (f *fakeDriver) Screenshot(_ context.Context, region *desktop.Monitor) (desktop.Image, error) {
	f.region = region
	return f.shot, f.record("screenshot")
}
func (f *fakeDriver) ListWindows(context.Context) ([]desktop.Window, error) {
	return f.windows, f.record("windows")
}
func (f *fakeDriver) FocusWindow(context.Context, string, string) error { return f.record("focus") }

type fakeProbe struct{}

func (fakeProbe) CPUPercent(context.Context) (float64, error) { return 12.5, nil }
func (fakeProbe) Memory(context.Context) (MemoryStats, error) {
	return MemoryStats{Total: 100, Available: 40, Percent: 60}, nil
}
func (fakeProbe) Disk(context.Context, string) (DiskStats, error) {
	return DiskStats{Total: 1000, Free: 250, Percent: 75}, nil
}

func newTestTools(t *testing.T, d *fakeDriver, policy Policy) *Registry {
	t.Helper()
	return Builtin(d, policy, WithSystemProbe(fakeProbe{}))
}

func call(t *testing.T, r *Registry, name string, a map[string]any) map[string]any {
	t.Helper()
	out, err := r.Execute(context.Background(), name, a)
	require.NoError(t, err)
	m, ok := out.(map[string]any)
	require.True(t, ok, "expected mapping result, got %T", out)
	return m
}

func TestBuiltinToolNames(t *testing.T) {
	r := newTestTools(t, &fakeDriver{}, DefaultPolicy())
	assert.Equal(t, []string{
		"screenshot", "get_screen_size",
		"analyze_screen", "analyze_image",
		"click", "double_click", "move_to", "drag_to", "scroll", "get_mouse_position",
		"type_text", "press_key", "hotkey",
		"read_file", "write_file", "list_files", "upload_file", "download_file",
		"execute_command", "get_system_info", "list_windows", "focus_window",
	}, r.Names())

	for _, tool := range r.List() {
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.Schema.Type, tool.Name)
		for _, req := range tool.Schema.Required {
			assert.Contains(t, tool.Schema.Properties, req, tool.Name)
		}
	}
	click, _ := r.Get("click")
	assert.True(t, click.Input)
	info, _ := r.Get("get_system_info")
	assert.False(t, info.Input)
}

func TestRegistryRegisterErrors(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(Tool{}), dagerrors.ErrToolNameEmpty)
	assert.ErrorIs(t, r.Register(Tool{Name: "x"}), dagerrors.ErrNilHandler)
}

func TestRegistryReplaceKeepsOrder(t *testing.T) {
	r := NewRegistry()
	h := func(context.Context, map[string]any) (any, error) { return nil, nil }
	require.NoError(t, r.Register(Tool{Name: "a", Handler: h}))
	require.NoError(t, r.Register(Tool{Name: "b", Handler: h}))
	require.NoError(t, r.Register(Tool{Name: "a", Description: "again", Handler: h}))

	assert.Equal(t, []string{"a", "b"}, r.Names())
	a, _ := r.Get("a")
	assert.Equal(t, "again", a.Description)
}

func TestRegistryExecuteUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, dagerrors.ErrToolUnregistered)
	_, err = r.Execute(context.Background(), "", nil)
	assert.ErrorIs(t, err, dagerrors.ErrToolNameEmpty)

	_, ok := r.Resolve("nope")
	assert.False(t, ok)
}

func TestResolvedHandlerChecksArguments(t *testing.T) {
	r := newTestTools(t, &fakeDriver{}, DefaultPolicy())
	h, ok := r.Resolve("click")
	require.True(t, ok)

	_, err := h(context.Background(), map[string]any{"x": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required argument "y"`)

	_, err = h(context.Background(), map[string]any{"x": 1, "y": 2, "z": 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unexpected argument "z"`)
}

func TestClick(t *testing.T) {
	d := &fakeDriver{}
	r := newTestTools(t, d, DefaultPolicy())

	out := call(t, r, "click", map[string]any{"x": float64(100), "y": 200})
	assert.Equal(t, map[string]any{"success": true, "x": 100, "y": 200, "button": "left"}, out)
	assert.Equal(t, []string{"click"}, d.calls)

	out = call(t, r, "click", map[string]any{"x": 1, "y": 2, "button": "thumb"})
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Invalid button: thumb", out["error"])

	out = call(t, r, "click", map[string]any{"x": 1.5, "y": 2})
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "must be an integer")
}

func TestDriverErrorBecomesFailure(t *testing.T) {
	d := &fakeDriver{err: errors.New("xdotool: not found")}
	r := newTestTools(t, d, DefaultPolicy())

	out := call(t, r, "double_click", map[string]any{"x": 1, "y": 2})
	assert.Equal(t, map[string]any{"success": false, "error": "xdotool: not found"}, out)
}

func TestKeyboardTools(t *testing.T) {
	d := &fakeDriver{}
	r := newTestTools(t, d, DefaultPolicy())

	out := call(t, r, "type_text", map[string]any{"text": "hello", "interval": 0.02})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "hello", d.typed)
	assert.Equal(t, 20*time.Millisecond, d.interval)

	out = call(t, r, "press_key", map[string]any{"key": "c", "modifiers": []any{"ctrl"}})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, []string{"ctrl", "c"}, d.keys)

	out = call(t, r, "hotkey", map[string]any{"keys": []any{"alt", "f4"}})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, []string{"alt", "f4"}, out["keys"])

	out = call(t, r, "hotkey", map[string]any{"keys": []any{}})
	assert.Equal(t, false, out["success"])
}

func TestFeatureFlagsGateTools(t *testing.T) {
	d := &fakeDriver{}
	policy := DefaultPolicy()
	policy.Features = Features{}
	r := newTestTools(t, d, policy)

	cases := map[string]map[string]any{
		"click":           {"x": 1, "y": 1},
		"type_text":       {"text": "x"},
		"screenshot":      {},
		"read_file":       {"path": "/tmp/x"},
		"execute_command": {"command": "echo hi"},
	}
	want := map[string]string{
		"click":           msgMouseDisabled,
		"type_text":       msgKeyboardDisabled,
		"screenshot":      msgScreenshotDisabled,
		"read_file":       msgFileAccessDisabled,
		"execute_command": msgCommandDisabled,
	}
	for name, a := range cases {
		out := call(t, r, name, a)
		assert.Equal(t, false, out["success"], name)
		assert.Equal(t, want[name], out["error"], name)
	}
	assert.Empty(t, d.calls)
}

func pngImage(t *testing.T, w, h int) desktop.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return desktop.Image{PNG: buf.Bytes(), Width: w, Height: h}
}

func TestScreenshot(t *testing.T) {
	d := &fakeDriver{
		shot:     pngImage(t, 8, 4),
		monitors: []desktop.Monitor{{Name: "a", Width: 8, Height: 4, Primary: true}, {Name: "b", X: 8, Width: 8, Height: 4}},
	}
	r := newTestTools(t, d, DefaultPolicy())

	out := call(t, r, "screenshot", nil)
	require.Equal(t, true, out["success"])
	assert.Equal(t, "png", out["format"])
	assert.Equal(t, 8, out["width"])
	data, err := base64.StdEncoding.DecodeString(out["image"].(string))
	require.NoError(t, err)
	assert.Equal(t, d.shot.PNG, data)
	assert.Nil(t, d.region)

	call(t, r, "screenshot", map[string]any{"monitor": 1})
	require.NotNil(t, d.region)
	assert.Equal(t, "b", d.region.Name)

	out = call(t, r, "screenshot", map[string]any{"monitor": 5})
	assert.Equal(t, "Invalid monitor index: 5", out["error"])
}

func TestScreenSize(t *testing.T) {
	d := &fakeDriver{monitors: []desktop.Monitor{{Width: 1280, Height: 720}, {Width: 1920, Height: 1080, Primary: true}}}
	r := newTestTools(t, d, DefaultPolicy())

	out := call(t, r, "get_screen_size", nil)
	assert.Equal(t, map[string]any{"success": true, "width": 1920, "height": 1080, "monitors": 2}, out)

	out = call(t, r, "get_screen_size", map[string]any{"monitor": 0})
	assert.Equal(t, map[string]any{"success": true, "width": 1280, "height": 720}, out)
}

func TestMouseQueries(t *testing.T) {
	d := &fakeDriver{}
	r := newTestTools(t, d, DefaultPolicy())

	out := call(t, r, "get_mouse_position", nil)
	assert.Equal(t, map[string]any{"success": true, "x": 3, "y": 4}, out)

	out = call(t, r, "scroll", map[string]any{"clicks": -3})
	assert.Equal(t, map[string]any{"success": true, "clicks": -3}, out)

	out = call(t, r, "drag_to", map[string]any{"x": 1, "y": 2, "duration": -1})
	assert.Equal(t, false, out["success"])
}

func TestFileToolsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := newTestTools(t, &fakeDriver{}, DefaultPolicy())
	path := filepath.Join(dir, "nested", "out.txt")

	out := call(t, r, "write_file", map[string]any{"path": path, "content": "hello"})
	require.Equal(t, true, out["success"])
	assert.Equal(t, path, out["path"])

	out = call(t, r, "read_file", map[string]any{"path": path})
	assert.Equal(t, map[string]any{"success": true, "content": "hello", "binary": false}, out)

	out = call(t, r, "download_file", map[string]any{"path": path})
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), out["content"])
	assert.Equal(t, "out.txt", out["filename"])
	assert.Equal(t, 5, out["size"])

	out = call(t, r, "list_files", map[string]any{"path": filepath.Join(dir, "nested")})
	items := out["items"].([]map[string]any)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{"name": "out.txt", "is_dir": false, "size": int64(5)}, items[0])
}

func TestFileToolsBinary(t *testing.T) {
	dir := t.TempDir()
	r := newTestTools(t, &fakeDriver{}, DefaultPolicy())
	path := filepath.Join(dir, "blob.bin")
	raw := []byte{0xff, 0xfe, 0x00, 0x01}
	encoded := base64.StdEncoding.EncodeToString(raw)

	out := call(t, r, "upload_file", map[string]any{"path": path, "content": encoded, "binary": true})
	require.Equal(t, true, out["success"])
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	out = call(t, r, "read_file", map[string]any{"path": path})
	assert.Equal(t, map[string]any{"success": true, "content": encoded, "binary": true}, out)

	out = call(t, r, "write_file", map[string]any{"path": path, "content": "%%%", "binary": true})
	assert.Equal(t, false, out["success"])
}

func TestFileToolsMissing(t *testing.T) {
	dir := t.TempDir()
	r := newTestTools(t, &fakeDriver{}, DefaultPolicy())
	missing := filepath.Join(dir, "missing.txt")

	assert.Equal(t, "File not found: "+missing, call(t, r, "read_file", map[string]any{"path": missing})["error"])
	assert.Equal(t, "File not found: "+missing, call(t, r, "download_file", map[string]any{"path": missing})["error"])
	assert.Equal(t, "Directory not found: "+missing, call(t, r, "list_files", map[string]any{"path": missing})["error"])

	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Equal(t, "Not a directory: "+file, call(t, r, "list_files", map[string]any{"path": file})["error"])
}

func TestFileToolsRespectAllowedPaths(t *testing.T) {
	allowed := t.TempDir()
	outside := t.TempDir()
	policy := DefaultPolicy()
	policy.AllowedPaths = []string{allowed}
	r := newTestTools(t, &fakeDriver{}, policy)

	out := call(t, r, "write_file", map[string]any{"path": filepath.Join(allowed, "ok.txt"), "content": "x"})
	assert.Equal(t, true, out["success"])

	target := filepath.Join(outside, "no.txt")
	out = call(t, r, "write_file", map[string]any{"path": target, "content": "x"})
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "path not allowed")
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestPolicyCheckPath(t *testing.T) {
	base := t.TempDir()
	p := Policy{AllowedPaths: []string{filepath.Join(base, "a")}}

	assert.NoError(t, p.CheckPath(filepath.Join(base, "a")))
	assert.NoError(t, p.CheckPath(filepath.Join(base, "a", "b", "c.txt")))
	assert.ErrorIs(t, p.CheckPath(filepath.Join(base, "ab")), dagerrors.ErrPathNotAllowed)
	assert.ErrorIs(t, p.CheckPath(filepath.Join(base, "a", "..", "b")), dagerrors.ErrPathNotAllowed)

	assert.NoError(t, Policy{}.CheckPath("/anything"))
}

func TestPolicyCheckPathFollowsSymlinks(t *testing.T) {
	base := t.TempDir()
	allowed := filepath.Join(base, "allowed")
	secret := filepath.Join(base, "secret")
	require.NoError(t, os.Mkdir(allowed, 0o755))
	require.NoError(t, os.Mkdir(secret, 0o755))
	require.NoError(t, os.Symlink(secret, filepath.Join(allowed, "escape")))

	p := Policy{AllowedPaths: []string{allowed}}
	assert.ErrorIs(t, p.CheckPath(filepath.Join(allowed, "escape", "x.txt")), dagerrors.ErrPathNotAllowed)
}

func TestPolicyCheckCommand(t *testing.T) {
	p := DefaultPolicy()
	assert.NoError(t, p.CheckCommand("echo hello"))
	assert.ErrorIs(t, p.CheckCommand("sudo RM -RF /"), dagerrors.ErrCommandBlocked)
	assert.ErrorIs(t, p.CheckCommand("mkfs.ext4 /dev/sda"), dagerrors.ErrCommandBlocked)
}

func TestExecuteCommand(t *testing.T) {
	r := newTestTools(t, &fakeDriver{}, DefaultPolicy())

	out := call(t, r, "execute_command", map[string]any{"command": "echo hello"})
	require.Equal(t, true, out["success"])
	assert.Equal(t, "hello", strings.TrimSpace(out["stdout"].(string)))
	assert.Equal(t, 0, out["exit_code"])

	out = call(t, r, "execute_command", map[string]any{"command": "exit 7"})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 7, out["exit_code"])

	out = call(t, r, "execute_command", map[string]any{"command": "rm -rf /tmp/nothing"})
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "command blocked by security policy")
}

func TestExecuteCommandTimeout(t *testing.T) {
	r := newTestTools(t, &fakeDriver{}, DefaultPolicy())
	out := call(t, r, "execute_command", map[string]any{"command": "sleep 5", "timeout": 1})
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Command timed out after 1 seconds", out["error"])
}

func TestSystemInfo(t *testing.T) {
	r := newTestTools(t, &fakeDriver{}, DefaultPolicy())
	out := call(t, r, "get_system_info", nil)
	require.Equal(t, true, out["success"])
	assert.Equal(t, 12.5, out["cpu_percent"])
	assert.Equal(t, MemoryStats{Total: 100, Available: 40, Percent: 60}, out["memory"])
	assert.Equal(t, DiskStats{Total: 1000, Free: 250, Percent: 75}, out["disk"])
	assert.NotEmpty(t, out["platform"])
}

func TestWindowTools(t *testing.T) {
	d := &fakeDriver{windows: []desktop.Window{{Handle: "0x1", Title: "Terminal"}}}
	r := newTestTools(t, d, DefaultPolicy())

	out := call(t, r, "list_windows", nil)
	assert.Equal(t, d.windows, out["windows"])

	out = call(t, r, "focus_window", nil)
	assert.Equal(t, "Must provide title or handle", out["error"])

	out = call(t, r, "focus_window", map[string]any{"title": "Terminal"})
	assert.Equal(t, map[string]any{"success": true, "title": "Terminal", "handle": nil}, out)

	out = call(t, r, "focus_window", map[string]any{"handle": 42})
	assert.Equal(t, "42", out["handle"])
}
