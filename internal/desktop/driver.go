// Package desktop drives keyboard, mouse, screen and window automation by
// shelling out to the platform's automation utilities.
package desktop

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
	"github.com/stevehiehn/deskagent/internal/runner"
)

// Point is a screen coordinate in pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Monitor is one attached display.
type Monitor struct {
	Name    string `json:"name"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Primary bool   `json:"primary"`
}

// Window is a top-level window known to the window manager.
type Window struct {
	Handle string `json:"handle"`
	Title  string `json:"title"`
}

// Image is a captured PNG screenshot.
type Image struct {
	PNG    []byte
	Width  int
	Height int
}

// Driver performs input and screen automation on the local desktop.
type Driver interface {
	TypeText(ctx context.Context, text string, interval time.Duration) error
	PressKey(ctx context.Context, key string, modifiers []string) error
	Hotkey(ctx context.Context, keys []string) error
	Click(ctx context.Context, x, y int, button string) error
	DoubleClick(ctx context.Context, x, y int) error
	MoveTo(ctx context.Context, x, y int, duration time.Duration) error
	DragTo(ctx context.Context, x, y int, duration time.Duration) error
	Scroll(ctx context.Context, clicks int, at *Point) error
	MousePosition(ctx context.Context) (Point, error)
	Monitors(ctx context.Context) ([]Monitor, error)
	Screenshot(ctx context.Context, region *Monitor) (Image, error)
	ListWindows(ctx context.Context) ([]Window, error)
	FocusWindow(ctx context.Context, title, handle string) error
}

// ExecFunc runs a program and returns its stdout.
type ExecFunc func(ctx context.Context, name string, args ...string) (string, error)

// New returns the driver for the running platform.
func New(logger *zap.Logger) Driver {
	return ForPlatform(runtime.GOOS, runner.Output, logger)
}

// ForPlatform returns the driver for goos using exec to run utilities.
func ForPlatform(goos string, exec ExecFunc, logger *zap.Logger) Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("desktop")
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return &X11{exec: exec, logger: logger}
	case "darwin":
		return &MacOS{exec: exec, logger: logger}
	default:
		return Unsupported{Platform: goos}
	}
}

// PlatformName reports the operating system name in its conventional
// capitalized form ("Linux", "Darwin", "Windows").
func PlatformName(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "":
		return ""
	default:
		return strings.ToUpper(goos[:1]) + goos[1:]
	}
}

// Primary returns the primary monitor, or the first when none is marked.
func Primary(monitors []Monitor) (Monitor, bool) {
	for _, m := range monitors {
		if m.Primary {
			return m, true
		}
	}
	if len(monitors) == 0 {
		return Monitor{}, false
	}
	return monitors[0], true
}

func decodePNG(data []byte) (Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("decode screenshot: %w", err)
	}
	if format != "png" {
		return Image{}, fmt.Errorf("decode screenshot: unexpected format %q", format)
	}
	return Image{PNG: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// Unsupported is the driver for platforms without an automation backend.
type Unsupported struct {
	Platform string
}

func (u Unsupported) err() error {
	return fmt.Errorf("%w: desktop automation on %s", dagerrors.ErrUnsupported, PlatformName(u.Platform))
}

func (u Unsupported) TypeText(context.Context, string, time.Duration) error { return u.err() }
func (u Unsupported) PressKey(context.Context, string, []string) error      { return u.err() }
func (u Unsupported) Hotkey(context.Context, []string) error                { return u.err() }
func (u Unsupported) Click(context.Context, int, int, string) error         { return u.err() }
func (u Unsupported) DoubleClick(context.Context, int, int) error           { return u.err() }
func (u Unsupported) MoveTo(context.Context, int, int, time.Duration) error { return u.err() }
func (u Unsupported) DragTo(context.Context, int, int, time.Duration) error { return u.err() }
func (u Unsupported) Scroll(context.Context, int, *Point) error             { return u.err() }
func (u Unsupported) MousePosition(context.Context) (Point, error)          { return Point{}, u.err() }
func (u Unsupported) Monitors(context.Context) ([]Monitor, error)           { return nil, u.err() }
func (u Unsupported) Screenshot(context.Context, *Monitor) (Image, error)   { return Image{}, u.err() }
func (u Unsupported) ListWindows(context.Context) ([]Window, error)         { return nil, u.err() }
func (u Unsupported) FocusWindow(context.Context, string, string) error     { return u.err() }
