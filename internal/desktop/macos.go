package desktop

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
)

// MacOS automates the desktop through osascript and screencapture. Pointer
// control needs cliclick on PATH.
type MacOS struct {
	exec   ExecFunc
	logger *zap.Logger
}

// macKeyCodes are System Events key codes for keys that keystroke cannot
// express as a character.
var macKeyCodes = map[string]int{
	"enter":     36,
	"return":    36,
	"tab":       48,
	"space":     49,
	"backspace": 51,
	"delete":    117,
	"escape":    53,
	"esc":       53,
	"left":      123,
	"right":     124,
	"down":      125,
	"up":        126,
	"home":      115,
	"end":       119,
	"pageup":    116,
	"pagedown":  121,
	"f1":        122,
	"f2":        120,
	"f3":        99,
	"f4":        118,
	"f5":        96,
	"f6":        97,
	"f7":        98,
	"f8":        100,
	"f9":        101,
	"f10":       109,
	"f11":       103,
	"f12":       111,
}

var macModifiers = map[string]string{
	"cmd":     "command down",
	"command": "command down",
	"super":   "command down",
	"win":     "command down",
	"ctrl":    "control down",
	"control": "control down",
	"alt":     "option down",
	"option":  "option down",
	"shift":   "shift down",
}

func appleScriptString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// keystrokeScript builds the System Events statement pressing key with
// modifiers held.
func keystrokeScript(key string, modifiers []string) (string, error) {
	var stmt string
	if code, ok := macKeyCodes[strings.ToLower(key)]; ok {
		stmt = "key code " + strconv.Itoa(code)
	} else {
		stmt = "keystroke " + appleScriptString(key)
	}
	if len(modifiers) > 0 {
		using := make([]string, 0, len(modifiers))
		for _, m := range modifiers {
			mod, ok := macModifiers[strings.ToLower(m)]
			if !ok {
				return "", fmt.Errorf("unknown modifier %q", m)
			}
			using = append(using, mod)
		}
		stmt += " using {" + strings.Join(using, ", ") + "}"
	}
	return `tell application "System Events" to ` + stmt, nil
}

func (d *MacOS) osascript(ctx context.Context, script string) (string, error) {
	d.logger.Debug("osascript", zap.String("script", script))
	return d.exec(ctx, "osascript", "-e", script)
}

func (d *MacOS) cliclick(ctx context.Context, args ...string) (string, error) {
	d.logger.Debug("cliclick", zap.Strings("args", args))
	out, err := d.exec(ctx, "cliclick", args...)
	if err != nil {
		return "", fmt.Errorf("pointer control requires cliclick: %w", err)
	}
	return out, nil
}

func (d *MacOS) TypeText(ctx context.Context, text string, interval time.Duration) error {
	if interval <= 0 {
		_, err := d.osascript(ctx, `tell application "System Events" to keystroke `+appleScriptString(text))
		return err
	}
	for _, r := range text {
		if _, err := d.osascript(ctx, `tell application "System Events" to keystroke `+appleScriptString(string(r))); err != nil {
			return err
		}
		if err := pause(ctx, interval); err != nil {
			return err
		}
	}
	return nil
}

func (d *MacOS) PressKey(ctx context.Context, key string, modifiers []string) error {
	script, err := keystrokeScript(key, modifiers)
	if err != nil {
		return err
	}
	_, err = d.osascript(ctx, script)
	return err
}

// Hotkey treats every key but the last as a modifier.
func (d *MacOS) Hotkey(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("hotkey requires at least one key")
	}
	return d.PressKey(ctx, keys[len(keys)-1], keys[:len(keys)-1])
}

func at(x, y int) string { return strconv.Itoa(x) + "," + strconv.Itoa(y) }

func (d *MacOS) Click(ctx context.Context, x, y int, button string) error {
	var verb string
	switch strings.ToLower(button) {
	case "", "left":
		verb = "c:"
	case "right":
		verb = "rc:"
	case "middle":
		return fmt.Errorf("%w: middle click on Darwin", dagerrors.ErrUnsupported)
	default:
		return fmt.Errorf("invalid mouse button %q", button)
	}
	_, err := d.cliclick(ctx, verb+at(x, y))
	return err
}

func (d *MacOS) DoubleClick(ctx context.Context, x, y int) error {
	_, err := d.cliclick(ctx, "dc:"+at(x, y))
	return err
}

func (d *MacOS) MoveTo(ctx context.Context, x, y int, duration time.Duration) error {
	if _, err := d.cliclick(ctx, "m:"+at(x, y)); err != nil {
		return err
	}
	return pause(ctx, duration)
}

func (d *MacOS) DragTo(ctx context.Context, x, y int, duration time.Duration) error {
	pos, err := d.MousePosition(ctx)
	if err != nil {
		return err
	}
	args := []string{"dd:" + at(pos.X, pos.Y)}
	if duration > 0 {
		args = append(args, "w:"+strconv.FormatInt(duration.Milliseconds(), 10))
	}
	args = append(args, "du:"+at(x, y))
	_, err = d.cliclick(ctx, args...)
	return err
}

func (d *MacOS) Scroll(context.Context, int, *Point) error {
	return fmt.Errorf("%w: scroll on Darwin", dagerrors.ErrUnsupported)
}

func (d *MacOS) MousePosition(ctx context.Context) (Point, error) {
	out, err := d.cliclick(ctx, "p:.")
	if err != nil {
		return Point{}, err
	}
	xs, ys, ok := strings.Cut(strings.TrimSpace(out), ",")
	if !ok {
		return Point{}, fmt.Errorf("unexpected cliclick output %q", out)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(xs))
	y, errY := strconv.Atoi(strings.TrimSpace(ys))
	if errX != nil || errY != nil {
		return Point{}, fmt.Errorf("unexpected cliclick output %q", out)
	}
	return Point{X: x, Y: y}, nil
}

// Monitors reports the desktop bounds as a single primary monitor.
func (d *MacOS) Monitors(ctx context.Context) ([]Monitor, error) {
	out, err := d.osascript(ctx, `tell application "Finder" to get bounds of window of desktop`)
	if err != nil {
		return nil, err
	}
	fields := strings.Split(strings.TrimSpace(out), ",")
	if len(fields) != 4 {
		return nil, fmt.Errorf("unexpected desktop bounds %q", out)
	}
	b := make([]int, 4)
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("unexpected desktop bounds %q", out)
		}
		b[i] = n
	}
	return []Monitor{{Name: "main", X: b[0], Y: b[1], Width: b[2] - b[0], Height: b[3] - b[1], Primary: true}}, nil
}

func (d *MacOS) Screenshot(ctx context.Context, region *Monitor) (Image, error) {
	f, err := os.CreateTemp("", "deskagent-*.png")
	if err != nil {
		return Image{}, err
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	args := []string{"-x", "-t", "png"}
	if region != nil {
		args = append(args, "-R", fmt.Sprintf("%d,%d,%d,%d", region.X, region.Y, region.Width, region.Height))
	}
	args = append(args, path)
	if _, err := d.exec(ctx, "screencapture", args...); err != nil {
		return Image{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	return decodePNG(data)
}

func (d *MacOS) ListWindows(ctx context.Context) ([]Window, error) {
	out, err := d.osascript(ctx, `tell application "System Events" to get name of every window of every process`)
	if err != nil {
		return nil, err
	}
	windows := []Window{}
	for _, title := range strings.Split(strings.TrimSpace(out), ", ") {
		if title == "" {
			continue
		}
		windows = append(windows, Window{Handle: strconv.Itoa(len(windows)), Title: title})
	}
	return windows, nil
}

// FocusWindow activates the application named title. Handles are not
// addressable through AppleScript.
func (d *MacOS) FocusWindow(ctx context.Context, title, _ string) error {
	if title == "" {
		return fmt.Errorf("%w: focusing by handle on Darwin", dagerrors.ErrUnsupported)
	}
	_, err := d.osascript(ctx, "tell application "+appleScriptString(title)+" to activate")
	return err
}
