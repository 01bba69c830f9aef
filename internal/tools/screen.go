package tools

import (
	"context"
	"encoding/base64"

	"github.com/stevehiehn/deskagent/internal/desktop"
)

const msgScreenshotDisabled = "Screenshot capture is disabled"

func (ts *toolset) screenTools() []Tool {
	enabled := ts.policy.Features.Screenshot
	return []Tool{
		{
			Name:        "screenshot",
			Description: "Capture the current screen. Returns a base64-encoded PNG image.",
			Schema: Schema{Properties: map[string]Property{
				"monitor": integerProp("Monitor index for multi-monitor setups"),
			}},
			Handler: gate(enabled, msgScreenshotDisabled, ts.screenshot),
		},
		{
			Name:        "get_screen_size",
			Description: "Get screen dimensions in pixels.",
			Schema: Schema{Properties: map[string]Property{
				"monitor": integerProp("Monitor index"),
			}},
			Handler: ts.screenSize,
		},
	}
}

// monitor resolves an optional monitor index to its geometry.
func (ts *toolset) monitor(ctx context.Context, index *int) (*desktop.Monitor, map[string]any) {
	if index == nil {
		return nil, nil
	}
	monitors, err := ts.driver.Monitors(ctx)
	if err != nil {
		return nil, failed(err)
	}
	if *index < 0 || *index >= len(monitors) {
		return nil, failedf("Invalid monitor index: %d", *index)
	}
	return &monitors[*index], nil
}

// capture grabs the screen, or the monitor at index when set.
func (ts *toolset) capture(ctx context.Context, index *int) (desktop.Image, map[string]any) {
	region, bad := ts.monitor(ctx, index)
	if bad != nil {
		return desktop.Image{}, bad
	}
	img, err := ts.driver.Screenshot(ctx, region)
	if err != nil {
		return desktop.Image{}, failed(err)
	}
	return img, nil
}

func (ts *toolset) screenshot(ctx context.Context, raw map[string]any) (any, error) {
	index, err := args(raw).optInteger("monitor")
	if err != nil {
		return failed(err), nil
	}
	img, bad := ts.capture(ctx, index)
	if bad != nil {
		return bad, nil
	}
	return result(map[string]any{
		"image":  base64.StdEncoding.EncodeToString(img.PNG),
		"width":  img.Width,
		"height": img.Height,
		"format": "png",
	}), nil
}

func (ts *toolset) screenSize(ctx context.Context, raw map[string]any) (any, error) {
	index, err := args(raw).optInteger("monitor")
	if err != nil {
		return failed(err), nil
	}
	if index != nil {
		m, bad := ts.monitor(ctx, index)
		if bad != nil {
			return bad, nil
		}
		return result(map[string]any{"width": m.Width, "height": m.Height}), nil
	}
	monitors, err := ts.driver.Monitors(ctx)
	if err != nil {
		return failed(err), nil
	}
	primary, found := desktop.Primary(monitors)
	if !found {
		return failedf("no monitors detected"), nil
	}
	return result(map[string]any{
		"width":    primary.Width,
		"height":   primary.Height,
		"monitors": len(monitors),
	}), nil
}
