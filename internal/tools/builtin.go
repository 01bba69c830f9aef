package tools

import (
	"context"

	"go.uber.org/zap"

	"github.com/stevehiehn/deskagent/internal/desktop"
	"github.com/stevehiehn/deskagent/internal/engine"
	"github.com/stevehiehn/deskagent/internal/vlm"
)

// Option configures the built-in tool set.
type Option func(*toolset)

// WithLogger sets the logger used by the built-in tools.
func WithLogger(logger *zap.Logger) Option {
	return func(ts *toolset) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithSystemProbe replaces the host statistics source behind
// get_system_info.
func WithSystemProbe(p SystemProbe) Option {
	return func(ts *toolset) {
		if p != nil {
			ts.probe = p
		}
	}
}

// toolset is the shared state behind the built-in tools.
type toolset struct {
	driver desktop.Driver
	policy Policy
	logger *zap.Logger
	probe  SystemProbe

	vision       vlm.Settings
	visionClient VisionClient
}

// Builtin returns a registry holding every built-in tool, backed by driver
// and restricted by policy.
func Builtin(driver desktop.Driver, policy Policy, opts ...Option) *Registry {
	ts := &toolset{
		driver: driver,
		policy: policy,
		logger: zap.NewNop(),
		probe:  hostProbe{},
		vision: vlm.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(ts)
	}
	if ts.visionClient == nil {
		ts.visionClient = vlm.NewOllama(ts.vision.Endpoint, nil)
	}
	ts.logger = ts.logger.Named("tools")

	r := NewRegistry()
	groups := [][]Tool{
		ts.screenTools(), ts.visionTools(), ts.mouseTools(),
		ts.keyboardTools(), ts.fileTools(), ts.systemTools(),
	}
	for _, group := range groups {
		for _, t := range group {
			t.Handler = ts.logged(t.Name, t.Handler)
			if err := r.Register(t); err != nil {
				panic(err)
			}
		}
	}
	return r
}

// gate wraps h so it reports msg as a failure when enabled is false.
func gate(enabled bool, msg string, h engine.Handler) engine.Handler {
	if enabled {
		return h
	}
	return func(context.Context, map[string]any) (any, error) {
		return failedf("%s", msg), nil
	}
}

// logged wraps h with a debug log line carrying the structured outcome.
func (ts *toolset) logged(name string, h engine.Handler) engine.Handler {
	return func(ctx context.Context, a map[string]any) (any, error) {
		out, err := h(ctx, a)
		if m, ok := out.(map[string]any); ok && m["success"] == false {
			ts.logger.Debug("tool failed", zap.String("tool", name), zap.Any("error", m["error"]))
		}
		return out, err
	}
}

func integerProp(desc string) Property { return Property{Type: "integer", Description: desc} }
func numberProp(desc string) Property  { return Property{Type: "number", Description: desc} }
func stringProp(desc string) Property  { return Property{Type: "string", Description: desc} }
func boolProp(desc string) Property    { return Property{Type: "boolean", Description: desc} }

func stringListProp(desc string) Property {
	return Property{Type: "array", Description: desc, Items: &Property{Type: "string"}}
}
