package tools

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/stevehiehn/deskagent/internal/vlm"
)

const msgVisionDisabled = "VLM is not enabled. Set vlm.enabled=true in config."

// VisionClient sends a prompt and images to a vision language model.
type VisionClient interface {
	Chat(ctx context.Context, model, prompt string, images ...[]byte) (string, error)
}

// WithVision configures analyze_screen and analyze_image. A nil client
// talks to the Ollama server at s.Endpoint.
func WithVision(s vlm.Settings, client VisionClient) Option {
	return func(ts *toolset) {
		ts.vision = s
		ts.visionClient = client
	}
}

func (ts *toolset) visionTools() []Tool {
	return []Tool{
		{
			Name:        "analyze_screen",
			Description: "Capture the screen and ask the configured vision model about it.",
			Schema: Schema{
				Properties: map[string]Property{
					"prompt":  stringProp("Question about the screen content"),
					"monitor": integerProp("Monitor index for multi-monitor setups"),
				},
				Required: []string{"prompt"},
			},
			Handler: ts.analyzeScreen,
		},
		{
			Name:        "analyze_image",
			Description: "Ask the configured vision model about a base64-encoded image.",
			Schema: Schema{
				Properties: map[string]Property{
					"image":  stringProp("Base64-encoded PNG or JPEG image"),
					"prompt": stringProp("Question about the image"),
				},
				Required: []string{"image", "prompt"},
			},
			Handler: ts.analyzeImage,
		},
	}
}

func (ts *toolset) analyzeScreen(ctx context.Context, raw map[string]any) (any, error) {
	a := args(raw)
	prompt, err := a.str("prompt")
	if err != nil {
		return failed(err), nil
	}
	if !ts.vision.Enabled {
		return visionFailed(prompt, "", msgVisionDisabled), nil
	}
	index, err := a.optInteger("monitor")
	if err != nil {
		return visionFailed(prompt, "", err.Error()), nil
	}

	if !ts.policy.Features.Screenshot {
		return visionFailed(prompt, "", "Failed to capture screenshot: "+msgScreenshotDisabled), nil
	}
	shot, bad := ts.capture(ctx, index)
	if bad != nil {
		return visionFailed(prompt, "", fmt.Sprintf("Failed to capture screenshot: %v", bad["error"])), nil
	}

	if ts.vision.Provider != vlm.ProviderOllama {
		return visionFailed(prompt, "",
			fmt.Sprintf("Unsupported VLM provider: %s. Supported: %s", ts.vision.Provider, vlm.ProviderOllama)), nil
	}
	return ts.analyze(ctx, prompt, shot.PNG), nil
}

func (ts *toolset) analyzeImage(ctx context.Context, raw map[string]any) (any, error) {
	a := args(raw)
	prompt, err := a.str("prompt")
	if err != nil {
		return failed(err), nil
	}
	encoded, err := a.str("image")
	if err != nil {
		return visionFailed(prompt, "", err.Error()), nil
	}
	if !ts.vision.Enabled {
		return visionFailed(prompt, "", msgVisionDisabled), nil
	}
	if ts.vision.Provider != vlm.ProviderOllama {
		return visionFailed(prompt, "", "Unsupported VLM provider: "+ts.vision.Provider), nil
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return visionFailed(prompt, ts.vision.Model, "VLM analysis failed: invalid base64 image: "+err.Error()), nil
	}
	return ts.analyze(ctx, prompt, img), nil
}

func (ts *toolset) analyze(ctx context.Context, prompt string, img []byte) map[string]any {
	model := ts.vision.Model
	text, err := ts.visionClient.Chat(ctx, model, prompt, img)
	if err != nil {
		return visionFailed(prompt, model, ts.visionError(err))
	}
	return result(map[string]any{"response": text, "prompt": prompt, "model": model})
}

// visionError turns a client error into the message reported to callers.
func (ts *toolset) visionError(err error) string {
	model := ts.vision.Model
	var apiErr *vlm.APIError
	switch {
	case errors.Is(err, vlm.ErrEmptyResponse):
		return err.Error()
	case errors.As(err, &apiErr):
		if apiErr.ModelNotFound() {
			return fmt.Sprintf("Ollama API error: Model '%s' not found. Pull it first with: ollama pull %s", model, model)
		}
		return "Ollama API error: " + apiErr.Message
	case vlm.IsConnectionError(err):
		return fmt.Sprintf("Cannot connect to Ollama at %s. Ensure Ollama is running: ollama serve", ts.vision.Endpoint)
	default:
		return "VLM analysis failed: " + err.Error()
	}
}

func visionFailed(prompt, model, msg string) map[string]any {
	out := map[string]any{"success": false, "error": msg, "prompt": prompt}
	if model != "" {
		out["model"] = model
	}
	return out
}
