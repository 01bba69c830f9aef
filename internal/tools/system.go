package tools

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/stevehiehn/deskagent/internal/runner"
)

const msgCommandDisabled = "Command execution is disabled"

// SystemProbe reports host resource usage.
type SystemProbe interface {
	CPUPercent(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (MemoryStats, error)
	Disk(ctx context.Context, path string) (DiskStats, error)
}

type MemoryStats struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Percent   float64 `json:"percent"`
}

type DiskStats struct {
	Total   uint64  `json:"total"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// hostProbe reads statistics through gopsutil.
type hostProbe struct{}

func (hostProbe) CPUPercent(ctx context.Context) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil || len(pcts) == 0 {
		return 0, err
	}
	return pcts[0], nil
}

func (hostProbe) Memory(ctx context.Context) (MemoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, err
	}
	return MemoryStats{Total: vm.Total, Available: vm.Available, Percent: vm.UsedPercent}, nil
}

func (hostProbe) Disk(ctx context.Context, path string) (DiskStats, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskStats{}, err
	}
	return DiskStats{Total: u.Total, Free: u.Free, Percent: u.UsedPercent}, nil
}

func (ts *toolset) systemTools() []Tool {
	return []Tool{
		{
			Name:        "execute_command",
			Description: "Run a shell command.",
			Schema: Schema{
				Properties: map[string]Property{
					"command": stringProp("Command to execute"),
					"timeout": integerProp("Max execution time in seconds"),
				},
				Required: []string{"command"},
			},
			Handler: gate(ts.policy.Features.CommandExecution, msgCommandDisabled, ts.executeCommand),
		},
		{
			Name:        "get_system_info",
			Description: "Get system resource usage (CPU, RAM, disk).",
			Handler:     ts.systemInfo,
		},
		{
			Name:        "list_windows",
			Description: "List all open windows.",
			Handler:     ts.listWindows,
		},
		{
			Name:        "focus_window",
			Description: "Bring a window to the foreground.",
			Schema: Schema{Properties: map[string]Property{
				"title":  stringProp("Window title (partial match)"),
				"handle": stringProp("Window handle ID as reported by list_windows"),
			}},
			Handler: ts.focusWindow,
		},
	}
}

func (ts *toolset) executeCommand(ctx context.Context, raw map[string]any) (any, error) {
	a := args(raw)
	command, err := a.str("command")
	if err != nil {
		return failed(err), nil
	}
	if err := ts.policy.CheckCommand(command); err != nil {
		return failed(err), nil
	}
	timeout := ts.policy.MaxCommandTimeout
	if secs, err := a.optInteger("timeout"); err != nil {
		return failed(err), nil
	} else if secs != nil {
		timeout = time.Duration(*secs) * time.Second
	}

	res := runner.RunContext(ctx, command, "", timeout)
	if res.TimedOut {
		return failedf("Command timed out after %d seconds", int(timeout.Seconds())), nil
	}
	return result(map[string]any{
		"stdout":    res.Stdout,
		"stderr":    res.Stderr,
		"exit_code": res.ExitCode,
	}), nil
}

func (ts *toolset) systemInfo(ctx context.Context, _ map[string]any) (any, error) {
	cpuPct, err := ts.probe.CPUPercent(ctx)
	if err != nil {
		return failed(err), nil
	}
	memory, err := ts.probe.Memory(ctx)
	if err != nil {
		return failed(err), nil
	}
	root := "/"
	if runtime.GOOS == "windows" {
		root = `C:\`
	}
	d, err := ts.probe.Disk(ctx, root)
	if err != nil {
		return failed(err), nil
	}
	return result(map[string]any{
		"cpu_percent": cpuPct,
		"memory":      memory,
		"disk":        d,
		"platform":    runtime.GOOS,
	}), nil
}

func (ts *toolset) listWindows(ctx context.Context, _ map[string]any) (any, error) {
	windows, err := ts.driver.ListWindows(ctx)
	if err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"windows": windows}), nil
}

func (ts *toolset) focusWindow(ctx context.Context, raw map[string]any) (any, error) {
	a := args(raw)
	title, err := a.str("title")
	if err != nil {
		return failed(err), nil
	}
	handle, err := a.str("handle")
	if err != nil {
		// Integer handles are accepted for callers that send numeric ids.
		n, intErr := a.optInteger("handle")
		if intErr != nil {
			return failed(err), nil
		}
		handle = strconv.Itoa(*n)
	}
	if title == "" && handle == "" {
		return failedf("Must provide title or handle"), nil
	}
	if err := ts.driver.FocusWindow(ctx, title, handle); err != nil {
		return failed(err), nil
	}
	var h any
	if handle != "" {
		h = handle
	}
	var t any
	if title != "" {
		t = title
	}
	return result(map[string]any{"title": t, "handle": h}), nil
}
