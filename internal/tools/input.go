package tools

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/stevehiehn/deskagent/internal/desktop"
)

const (
	msgMouseDisabled    = "Mouse control is disabled"
	msgKeyboardDisabled = "Keyboard control is disabled"
)

var mouseButtons = []string{"left", "right", "middle"}

func (ts *toolset) mouseTools() []Tool {
	enabled := ts.policy.Features.MouseControl
	xy := func(xDesc, yDesc string) map[string]Property {
		return map[string]Property{"x": integerProp(xDesc), "y": integerProp(yDesc)}
	}
	withProp := func(props map[string]Property, name string, p Property) map[string]Property {
		props[name] = p
		return props
	}
	return []Tool{
		{
			Name:        "click",
			Description: "Click at screen coordinates.",
			Schema: Schema{
				Properties: withProp(xy("X coordinate (pixels from left)", "Y coordinate (pixels from top)"),
					"button", Property{Type: "string", Enum: mouseButtons, Default: "left"}),
				Required: []string{"x", "y"},
			},
			Handler: gate(enabled, msgMouseDisabled, ts.click),
			Input:   true,
		},
		{
			Name:        "double_click",
			Description: "Double-click at coordinates.",
			Schema:      Schema{Properties: xy("X coordinate", "Y coordinate"), Required: []string{"x", "y"}},
			Handler:     gate(enabled, msgMouseDisabled, ts.doubleClick),
			Input:       true,
		},
		{
			Name:        "move_to",
			Description: "Move mouse cursor to position.",
			Schema: Schema{
				Properties: withProp(xy("Target X coordinate", "Target Y coordinate"),
					"duration", numberProp("Movement time in seconds")),
				Required: []string{"x", "y"},
			},
			Handler: gate(enabled, msgMouseDisabled, ts.moveTo),
			Input:   true,
		},
		{
			Name:        "drag_to",
			Description: "Drag from current position to target.",
			Schema: Schema{
				Properties: withProp(xy("Target X coordinate", "Target Y coordinate"),
					"duration", numberProp("Drag duration in seconds")),
				Required: []string{"x", "y"},
			},
			Handler: gate(enabled, msgMouseDisabled, ts.dragTo),
			Input:   true,
		},
		{
			Name:        "scroll",
			Description: "Scroll mouse wheel.",
			Schema: Schema{
				Properties: withProp(xy("X position to scroll at", "Y position to scroll at"),
					"clicks", integerProp("Scroll ticks (positive=up, negative=down)")),
				Required: []string{"clicks"},
			},
			Handler: gate(enabled, msgMouseDisabled, ts.scroll),
			Input:   true,
		},
		{
			Name:        "get_mouse_position",
			Description: "Get current mouse cursor position.",
			Handler:     ts.mousePosition,
		},
	}
}

func (ts *toolset) keyboardTools() []Tool {
	enabled := ts.policy.Features.KeyboardControl
	return []Tool{
		{
			Name:        "type_text",
			Description: "Type a string of text.",
			Schema: Schema{
				Properties: map[string]Property{
					"text":     stringProp("Text to type"),
					"interval": numberProp("Delay between keystrokes in seconds"),
				},
				Required: []string{"text"},
			},
			Handler: gate(enabled, msgKeyboardDisabled, ts.typeText),
			Input:   true,
		},
		{
			Name:        "press_key",
			Description: "Press a single keyboard key.",
			Schema: Schema{
				Properties: map[string]Property{
					"key":       stringProp("Key name (e.g., enter, escape, tab, f1)"),
					"modifiers": stringListProp("Modifier keys (ctrl, alt, shift)"),
				},
				Required: []string{"key"},
			},
			Handler: gate(enabled, msgKeyboardDisabled, ts.pressKey),
			Input:   true,
		},
		{
			Name:        "hotkey",
			Description: "Press a key combination.",
			Schema: Schema{
				Properties: map[string]Property{
					"keys": stringListProp("Keys to press together (e.g., ['ctrl', 'c'])"),
				},
				Required: []string{"keys"},
			},
			Handler: gate(enabled, msgKeyboardDisabled, ts.hotkey),
			Input:   true,
		},
	}
}

func coords(a args) (int, int, error) {
	x, err := a.integer("x", 0)
	if err != nil {
		return 0, 0, err
	}
	y, err := a.integer("y", 0)
	return x, y, err
}

func (ts *toolset) click(ctx context.Context, raw map[string]any) (any, error) {
	a := args(raw)
	x, y, err := coords(a)
	if err != nil {
		return failed(err), nil
	}
	button, err := a.str("button")
	if err != nil {
		return failed(err), nil
	}
	if button == "" {
		button = "left"
	}
	if !slices.Contains(mouseButtons, button) {
		return failedf("Invalid button: %s", button), nil
	}
	if err := ts.driver.Click(ctx, x, y, button); err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"x": x, "y": y, "button": button}), nil
}

func (ts *toolset) doubleClick(ctx context.Context, raw map[string]any) (any, error) {
	x, y, err := coords(args(raw))
	if err != nil {
		return failed(err), nil
	}
	if err := ts.driver.DoubleClick(ctx, x, y); err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"x": x, "y": y}), nil
}

func (ts *toolset) moveTo(ctx context.Context, raw map[string]any) (any, error) {
	return ts.pointerMove(ctx, raw, 0, ts.driver.MoveTo)
}

func (ts *toolset) dragTo(ctx context.Context, raw map[string]any) (any, error) {
	return ts.pointerMove(ctx, raw, 0.5, ts.driver.DragTo)
}

func (ts *toolset) pointerMove(ctx context.Context, raw map[string]any, defDuration float64,
	move func(context.Context, int, int, time.Duration) error) (any, error) {
	a := args(raw)
	x, y, err := coords(a)
	if err != nil {
		return failed(err), nil
	}
	d, err := a.seconds("duration", defDuration)
	if err != nil {
		return failed(err), nil
	}
	if err := move(ctx, x, y, d); err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"x": x, "y": y}), nil
}

func (ts *toolset) scroll(ctx context.Context, raw map[string]any) (any, error) {
	a := args(raw)
	clicks, err := a.integer("clicks", 0)
	if err != nil {
		return failed(err), nil
	}
	x, err := a.optInteger("x")
	if err != nil {
		return failed(err), nil
	}
	y, err := a.optInteger("y")
	if err != nil {
		return failed(err), nil
	}
	var at *desktop.Point
	if x != nil && y != nil {
		at = &desktop.Point{X: *x, Y: *y}
	}
	if err := ts.driver.Scroll(ctx, clicks, at); err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"clicks": clicks}), nil
}

func (ts *toolset) mousePosition(ctx context.Context, _ map[string]any) (any, error) {
	p, err := ts.driver.MousePosition(ctx)
	if err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"x": p.X, "y": p.Y}), nil
}

func (ts *toolset) typeText(ctx context.Context, raw map[string]any) (any, error) {
	a := args(raw)
	text, err := a.str("text")
	if err != nil {
		return failed(err), nil
	}
	interval, err := a.seconds("interval", 0)
	if err != nil {
		return failed(err), nil
	}
	if err := ts.driver.TypeText(ctx, text, interval); err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"text": text}), nil
}

func (ts *toolset) pressKey(ctx context.Context, raw map[string]any) (any, error) {
	a := args(raw)
	key, err := a.str("key")
	if err != nil {
		return failed(err), nil
	}
	if key == "" {
		return failedf("key must not be empty"), nil
	}
	modifiers, err := a.strings("modifiers")
	if err != nil {
		return failed(err), nil
	}
	if err := ts.driver.PressKey(ctx, key, modifiers); err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"key": key, "modifiers": modifiers}), nil
}

func (ts *toolset) hotkey(ctx context.Context, raw map[string]any) (any, error) {
	keys, err := args(raw).strings("keys")
	if err != nil {
		return failed(err), nil
	}
	if len(keys) == 0 {
		return failed(fmt.Errorf("keys must not be empty")), nil
	}
	if err := ts.driver.Hotkey(ctx, keys); err != nil {
		return failed(err), nil
	}
	return result(map[string]any{"keys": keys}), nil
}
