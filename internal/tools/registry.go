// Package tools holds the named desktop tools and the registry that
// resolves them for workflows and the MCP server.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/stevehiehn/deskagent/internal/engine"
	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
)

// Property describes one argument in a tool's input schema.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// Schema is a JSON Schema object describing a tool's arguments.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Tool is a named operation callable from workflows and MCP clients.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Handler     engine.Handler
	// Input marks tools that drive the physical keyboard or mouse.
	Input bool
}

// Registry stores tools by name in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register adds t, replacing any tool already registered under its name.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return dagerrors.ErrToolNameEmpty
	}
	if t.Handler == nil {
		return fmt.Errorf("%w: %q", dagerrors.ErrNilHandler, t.Name)
	}
	if t.Schema.Type == "" {
		t.Schema.Type = "object"
	}
	if t.Schema.Properties == nil {
		t.Schema.Properties = map[string]Property{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns every tool name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Resolve implements engine.Resolver. The returned handler checks arguments
// against the tool's schema before calling through.
func (r *Registry) Resolve(name string) (engine.Handler, bool) {
	t, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	return bind(t), true
}

// Execute calls the named tool directly.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, dagerrors.ErrToolNameEmpty
	}
	h, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dagerrors.ErrToolUnregistered, name)
	}
	return h(ctx, args)
}

// bind rejects arguments the schema does not declare and required
// arguments that are missing.
func bind(t Tool) engine.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		if args == nil {
			args = map[string]any{}
		}
		for k := range args {
			if _, ok := t.Schema.Properties[k]; !ok {
				return nil, fmt.Errorf("%s: unexpected argument %q", t.Name, k)
			}
		}
		for _, k := range t.Schema.Required {
			if v, ok := args[k]; !ok || v == nil {
				return nil, fmt.Errorf("%s: missing required argument %q", t.Name, k)
			}
		}
		return t.Handler(ctx, args)
	}
}
