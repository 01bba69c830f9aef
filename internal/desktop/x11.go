package desktop

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// X11 automates an X11 session through xdotool, xrandr, ImageMagick's
// import and wmctrl.
type X11 struct {
	exec   ExecFunc
	logger *zap.Logger
}

var xdotoolKeys = map[string]string{
	"enter":     "Return",
	"return":    "Return",
	"escape":    "Escape",
	"esc":       "Escape",
	"tab":       "Tab",
	"space":     "space",
	"backspace": "BackSpace",
	"delete":    "Delete",
	"del":       "Delete",
	"insert":    "Insert",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Prior",
	"pagedown":  "Next",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"ctrl":      "ctrl",
	"control":   "ctrl",
	"alt":       "alt",
	"shift":     "shift",
	"cmd":       "super",
	"command":   "super",
	"win":       "super",
	"super":     "super",
	"capslock":  "Caps_Lock",
	"print":     "Print",
}

// xdotoolKey maps a portable key name to its X keysym.
func xdotoolKey(key string) string {
	k := strings.ToLower(key)
	if sym, ok := xdotoolKeys[k]; ok {
		return sym
	}
	if len(k) >= 2 && k[0] == 'f' {
		if n, err := strconv.Atoi(k[1:]); err == nil && n >= 1 && n <= 24 {
			return "F" + k[1:]
		}
	}
	return key
}

func chord(keys []string) string {
	syms := make([]string, len(keys))
	for i, k := range keys {
		syms[i] = xdotoolKey(k)
	}
	return strings.Join(syms, "+")
}

func xButton(button string) (string, error) {
	switch strings.ToLower(button) {
	case "", "left":
		return "1", nil
	case "middle":
		return "2", nil
	case "right":
		return "3", nil
	default:
		return "", fmt.Errorf("invalid mouse button %q", button)
	}
}

func (d *X11) xdotool(ctx context.Context, args ...string) error {
	d.logger.Debug("xdotool", zap.Strings("args", args))
	_, err := d.exec(ctx, "xdotool", args...)
	return err
}

func (d *X11) TypeText(ctx context.Context, text string, interval time.Duration) error {
	return d.xdotool(ctx, "type", "--delay", strconv.FormatInt(interval.Milliseconds(), 10), "--", text)
}

func (d *X11) PressKey(ctx context.Context, key string, modifiers []string) error {
	return d.xdotool(ctx, "key", "--", chord(append(append([]string{}, modifiers...), key)))
}

func (d *X11) Hotkey(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("hotkey requires at least one key")
	}
	return d.xdotool(ctx, "key", "--", chord(keys))
}

func (d *X11) Click(ctx context.Context, x, y int, button string) error {
	b, err := xButton(button)
	if err != nil {
		return err
	}
	return d.xdotool(ctx, "mousemove", itoa(x), itoa(y), "click", b)
}

func (d *X11) DoubleClick(ctx context.Context, x, y int) error {
	return d.xdotool(ctx, "mousemove", itoa(x), itoa(y), "click", "--repeat", "2", "1")
}

// MoveTo moves the pointer. xdotool moves instantly, so duration only
// delays the return.
func (d *X11) MoveTo(ctx context.Context, x, y int, duration time.Duration) error {
	if err := d.xdotool(ctx, "mousemove", itoa(x), itoa(y)); err != nil {
		return err
	}
	return pause(ctx, duration)
}

func (d *X11) DragTo(ctx context.Context, x, y int, duration time.Duration) error {
	if err := d.xdotool(ctx, "mousedown", "1"); err != nil {
		return err
	}
	if err := pause(ctx, duration); err != nil {
		_ = d.xdotool(context.WithoutCancel(ctx), "mouseup", "1")
		return err
	}
	return d.xdotool(ctx, "mousemove", itoa(x), itoa(y), "mouseup", "1")
}

// Scroll turns the wheel; positive clicks scroll up.
func (d *X11) Scroll(ctx context.Context, clicks int, at *Point) error {
	if clicks == 0 {
		return nil
	}
	button := "4"
	if clicks < 0 {
		button, clicks = "5", -clicks
	}
	var args []string
	if at != nil {
		args = append(args, "mousemove", itoa(at.X), itoa(at.Y))
	}
	args = append(args, "click", "--repeat", itoa(clicks), button)
	return d.xdotool(ctx, args...)
}

func (d *X11) MousePosition(ctx context.Context) (Point, error) {
	out, err := d.exec(ctx, "xdotool", "getmouselocation", "--shell")
	if err != nil {
		return Point{}, err
	}
	return parseMouseLocation(out)
}

func (d *X11) Monitors(ctx context.Context) ([]Monitor, error) {
	out, err := d.exec(ctx, "xrandr", "--query")
	if err != nil {
		return nil, err
	}
	monitors := parseXrandr(out)
	if len(monitors) == 0 {
		return nil, fmt.Errorf("no connected monitors reported by xrandr")
	}
	return monitors, nil
}

func (d *X11) Screenshot(ctx context.Context, region *Monitor) (Image, error) {
	args := []string{"-silent", "-window", "root"}
	if region != nil {
		args = append(args, "-crop", fmt.Sprintf("%dx%d+%d+%d", region.Width, region.Height, region.X, region.Y))
	}
	args = append(args, "png:-")
	out, err := d.exec(ctx, "import", args...)
	if err != nil {
		return Image{}, err
	}
	return decodePNG([]byte(out))
}

func (d *X11) ListWindows(ctx context.Context) ([]Window, error) {
	out, err := d.exec(ctx, "wmctrl", "-l")
	if err != nil {
		return nil, err
	}
	return parseWmctrl(out), nil
}

func (d *X11) FocusWindow(ctx context.Context, title, handle string) error {
	if title != "" {
		_, err := d.exec(ctx, "wmctrl", "-a", title)
		return err
	}
	_, err := d.exec(ctx, "wmctrl", "-i", "-a", handle)
	return err
}

func parseMouseLocation(out string) (Point, error) {
	var p Point
	var seenX, seenY bool
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		switch k {
		case "X":
			p.X, seenX = n, true
		case "Y":
			p.Y, seenY = n, true
		}
	}
	if !seenX || !seenY {
		return Point{}, fmt.Errorf("unexpected getmouselocation output %q", out)
	}
	return p, nil
}

var xrandrMonitor = regexp.MustCompile(`^(\S+) connected (primary )?(\d+)x(\d+)\+(\d+)\+(\d+)`)

func parseXrandr(out string) []Monitor {
	var monitors []Monitor
	for _, line := range strings.Split(out, "\n") {
		m := xrandrMonitor.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		monitors = append(monitors, Monitor{
			Name:    m[1],
			Primary: m[2] != "",
			Width:   atoi(m[3]),
			Height:  atoi(m[4]),
			X:       atoi(m[5]),
			Y:       atoi(m[6]),
		})
	}
	return monitors
}

// parseWmctrl reads `wmctrl -l` lines: id, desktop, host, title.
func parseWmctrl(out string) []Window {
	windows := []Window{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		title := line
		for i := 0; i < 3; i++ {
			title = strings.TrimLeft(title, " \t")
			title = title[len(parts[i]):]
		}
		windows = append(windows, Window{Handle: parts[0], Title: strings.TrimSpace(title)})
	}
	return windows
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
