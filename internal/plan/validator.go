package plan

import (
	"fmt"
	"math"
	"slices"

	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
	"github.com/stevehiehn/deskagent/internal/template"
	"github.com/stevehiehn/deskagent/internal/tools"
)

// Catalog looks up tool definitions by name. *tools.Registry satisfies it.
type Catalog interface {
	Get(name string) (tools.Tool, bool)
}

// Validate checks a workflow for structural correctness without running
// it. Required inputs are only checked when providedInputs is non-nil.
// A nil catalog skips the tool and argument checks.
func Validate(w *Workflow, catalog Catalog, providedInputs map[string]string) error {
	if providedInputs != nil {
		if _, err := w.BindInputs(providedInputs); err != nil {
			return err
		}
	}

	for i, raw := range w.Steps {
		stepErr := func(typ, format string, args ...any) error {
			return dagerrors.NewStepError(typ, i, fmt.Sprintf(format, args...))
		}

		step, ok := raw.(map[string]any)
		if !ok {
			return stepErr(dagerrors.ValidationError, "Step %d must be a mapping", i)
		}
		name, _ := step["tool"].(string)
		if name == "" {
			return stepErr(dagerrors.ValidationError, "Step %d missing 'tool' field", i)
		}

		var args map[string]any
		if rawArgs, present := step["args"]; present && rawArgs != nil {
			m, ok := rawArgs.(map[string]any)
			if !ok {
				return stepErr(dagerrors.ValidationError, "Step %d 'args' must be a mapping", i)
			}
			args = m
		}

		for _, key := range []string{"wait_after_ms", "wait_ms"} {
			if v, present := step[key]; present && v != nil && !nonNegativeInt(v) {
				return stepErr(dagerrors.ValidationError, "Step %d '%s' must be a non-negative integer", i, key)
			}
		}
		if v, present := step["continue_on_error"]; present {
			if _, ok := v.(bool); !ok {
				return stepErr(dagerrors.ValidationError, "Step %d 'continue_on_error' must be a boolean", i)
			}
		}

		for _, ref := range template.InputRefs(raw) {
			if _, ok := w.Inputs[ref]; !ok {
				return stepErr(dagerrors.ValidationError, "Step %d references unknown input %q", i, ref)
			}
		}

		if catalog == nil {
			continue
		}
		t, ok := catalog.Get(name)
		if !ok {
			return &dagerrors.RunError{
				Type:      dagerrors.ToolNotFound,
				StepIndex: &i,
				Message:   "Unknown tool: " + name,
				Hint:      "Run `deskagent tools` to list available tools",
			}
		}
		for k := range args {
			if _, ok := t.Schema.Properties[k]; !ok {
				return stepErr(dagerrors.ValidationError, "%s: unexpected argument %q", name, k)
			}
		}
		for _, k := range t.Schema.Required {
			if _, ok := args[k]; !ok {
				return stepErr(dagerrors.ValidationError, "%s: missing required argument %q", name, k)
			}
		}
		for k, v := range args {
			p := t.Schema.Properties[k]
			s, isString := v.(string)
			if len(p.Enum) > 0 && isString && len(template.InputRefs(s)) == 0 && !slices.Contains(p.Enum, s) {
				return stepErr(dagerrors.ValidationError, "%s: argument %q must be one of %v", name, k, p.Enum)
			}
		}
	}
	return nil
}

func nonNegativeInt(v any) bool {
	switch n := v.(type) {
	case int:
		return n >= 0
	case int64:
		return n >= 0
	case uint64:
		return true
	case float64:
		return n >= 0 && n == math.Trunc(n)
	default:
		return false
	}
}
