// Package demo runs the composite terminal automation: open a terminal,
// type a command, run it, capture the screen and close the window.
package demo

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/stevehiehn/deskagent/internal/desktop"
	"github.com/stevehiehn/deskagent/internal/engine"
)

// Stage names reported in Report.StepsCompleted.
const (
	StageDetect     = "detect_terminal"
	StageOpen       = "open_terminal"
	StageWait       = "wait_for_terminal"
	StageType       = "type_text"
	StageEnter      = "press_enter"
	StageScreenshot = "capture_screenshot"
	StageClose      = "close_terminal"
)

// typingInterval is the per-keystroke delay used when typing the command.
const typingInterval = 0.02

// Options controls one terminal run.
type Options struct {
	Text              string
	TerminalWait      time.Duration
	PostTypeWait      time.Duration
	PostEnterWait     time.Duration
	CaptureScreenshot bool
	CloseTerminal     bool
}

func DefaultOptions() Options {
	return Options{
		Text:              "echo hello world",
		TerminalWait:      2000 * time.Millisecond,
		PostTypeWait:      500 * time.Millisecond,
		PostEnterWait:     1000 * time.Millisecond,
		CaptureScreenshot: true,
		CloseTerminal:     true,
	}
}

// Report is the outcome of a terminal run.
type Report struct {
	Success          bool     `json:"success"`
	TerminalCommand  *string  `json:"terminal_command"`
	Platform         string   `json:"platform"`
	TextTyped        string   `json:"text_typed"`
	Screenshot       any      `json:"screenshot"`
	StepsCompleted   []string `json:"steps_completed"`
	TotalTimeMS      int64    `json:"total_time_ms"`
	Error            *string  `json:"error"`
	CleanupAttempted bool     `json:"cleanup_attempted"`
	CleanupError     *string  `json:"cleanup_error"`
}

// Terminal performs the terminal automation through named tools.
type Terminal struct {
	tools  engine.Resolver
	goos   string
	detect func() (string, bool)
	launch func(command string) error
	sleep  func(time.Duration)
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithPlatform overrides the operating system (a GOOS value).
func WithPlatform(goos string) Option {
	return func(t *Terminal) { t.goos = goos }
}

// WithDetector replaces terminal detection.
func WithDetector(detect func() (string, bool)) Option {
	return func(t *Terminal) { t.detect = detect }
}

// WithLauncher replaces the detached terminal launch.
func WithLauncher(launch func(command string) error) Option {
	return func(t *Terminal) { t.launch = launch }
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(t *Terminal) { t.sleep = sleep }
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Terminal) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTerminal returns a Terminal that drives input through tools, which
// must resolve type_text, press_key, hotkey and screenshot.
func NewTerminal(tools engine.Resolver, opts ...Option) *Terminal {
	t := &Terminal{
		tools:  tools,
		goos:   runtime.GOOS,
		sleep:  time.Sleep,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.detect == nil {
		goos := t.goos
		t.detect = func() (string, bool) { return DetectTerminal(goos) }
	}
	if t.launch == nil {
		goos := t.goos
		t.launch = func(cmd string) error { return LaunchTerminal(goos, cmd) }
	}
	t.logger = t.logger.Named("demo")
	return t
}

// Run executes the stages in order. Only detection, launch, typing and
// Enter can fail the run; screenshot and close are best effort.
func (t *Terminal) Run(ctx context.Context, o Options) *Report {
	start := t.now()
	rep := &Report{
		Platform:       desktop.PlatformName(t.goos),
		TextTyped:      o.Text,
		StepsCompleted: []string{},
	}
	done := func(stage string) { rep.StepsCompleted = append(rep.StepsCompleted, stage) }
	finish := func() *Report {
		rep.TotalTimeMS = t.now().Sub(start).Milliseconds()
		if rep.Success {
			t.logger.Info("terminal workflow completed", zap.Int64("total_time_ms", rep.TotalTimeMS))
		} else {
			t.logger.Warn("terminal workflow failed",
				zap.Strings("steps_completed", rep.StepsCompleted),
				zap.String("error", *rep.Error))
		}
		return rep
	}
	// abort records msg and, once a terminal is open, tries to close it.
	abort := func(msg string) *Report {
		rep.Error = &msg
		if o.CloseTerminal && slices.Contains(rep.StepsCompleted, StageOpen) {
			rep.CleanupAttempted = true
			if err := t.closeTerminal(ctx); err != nil {
				cleanupErr := err.Error()
				rep.CleanupError = &cleanupErr
				t.logger.Debug("cleanup after failure did not close terminal", zap.Error(err))
			} else {
				t.logger.Debug("closed terminal after failure")
			}
		}
		return finish()
	}

	cmd, found := t.detect()
	if !found {
		return abort(fmt.Sprintf("No supported terminal found for platform: %s", rep.Platform))
	}
	rep.TerminalCommand = &cmd
	done(StageDetect)
	t.logger.Debug("detected terminal", zap.String("command", cmd))

	if err := t.launch(cmd); err != nil {
		return abort(fmt.Sprintf("Failed to open terminal: %v", err))
	}
	done(StageOpen)

	t.sleep(o.TerminalWait)
	done(StageWait)

	typeText, ok := t.tools.Resolve("type_text")
	if !ok {
		return abort("Failed to load type_text tool")
	}
	out := engine.Call(ctx, typeText, map[string]any{"text": o.Text, "interval": typingInterval})
	if f, failed := out.(engine.Failure); failed {
		return abort("Failed to type text: " + stageError(f))
	}
	done(StageType)
	t.sleep(o.PostTypeWait)

	pressKey, ok := t.tools.Resolve("press_key")
	if !ok {
		return abort("Failed to load press_key tool")
	}
	out = engine.Call(ctx, pressKey, map[string]any{"key": "enter"})
	if f, failed := out.(engine.Failure); failed {
		return abort("Failed to press Enter: " + stageError(f))
	}
	done(StageEnter)
	t.sleep(o.PostEnterWait)

	if o.CaptureScreenshot {
		t.captureScreenshot(ctx, rep)
	}
	if o.CloseTerminal {
		if err := t.closeTerminal(ctx); err != nil {
			t.logger.Warn("failed to close terminal", zap.Error(err))
		} else {
			done(StageClose)
		}
	}

	rep.Success = true
	return finish()
}

func (t *Terminal) captureScreenshot(ctx context.Context, rep *Report) {
	shot, ok := t.tools.Resolve("screenshot")
	if !ok {
		t.logger.Warn("screenshot tool not available")
		return
	}
	switch o := engine.Call(ctx, shot, map[string]any{}).(type) {
	case engine.Success:
		rep.Screenshot = o.Payload
		rep.StepsCompleted = append(rep.StepsCompleted, StageScreenshot)
	case engine.Failure:
		rep.Screenshot = o.Payload
		if o.Payload == nil {
			rep.Screenshot = map[string]any{"success": false, "error": o.Message}
		}
		t.logger.Warn("screenshot failed", zap.String("error", stageError(o)))
	}
}

func (t *Terminal) closeTerminal(ctx context.Context) error {
	hotkey, ok := t.tools.Resolve("hotkey")
	if !ok {
		return fmt.Errorf("hotkey tool not available")
	}
	if f, failed := engine.Call(ctx, hotkey, map[string]any{"keys": CloseKeys(t.goos)}).(engine.Failure); failed {
		return fmt.Errorf("%s", stageError(f))
	}
	return nil
}

// stageError extracts a tool failure's message. Structured failures
// without an error field read "Unknown error".
func stageError(f engine.Failure) string {
	if m, ok := f.Payload.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok && msg != "" {
			return msg
		}
		return "Unknown error"
	}
	return f.Message
}

