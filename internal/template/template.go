package template

import (
	"fmt"
	"os"
	"regexp"
)

var inputRefRe = regexp.MustCompile(`\$\{\{\s*inputs\.([^}\s]+)\s*\}\}`)

// refRe matches both reference kinds so a string is resolved in one pass
// and substituted values are never scanned again.
var refRe = regexp.MustCompile(`\$\{\{\s*(inputs|env)\.([^}\s]+)\s*\}\}`)

// Context holds available values for template resolution.
type Context struct {
	Inputs map[string]string
	// LookupEnv resolves ${{env.NAME}}. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Resolve replaces all ${{inputs.NAME}} and ${{env.NAME}} in s. Only
// references written in s itself are expanded: an input value containing
// ${{env.NAME}} is inserted literally.
func Resolve(s string, ctx *Context) (string, error) {
	lookup := ctx.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var resolveErr error
	result := refRe.ReplaceAllStringFunc(s, func(match string) string {
		if resolveErr != nil {
			return match
		}
		m := refRe.FindStringSubmatch(match)
		kind, name := m[1], m[2]
		if kind == "inputs" {
			val, ok := ctx.Inputs[name]
			if !ok {
				resolveErr = fmt.Errorf("unresolved input %q", name)
				return match
			}
			return val
		}
		val, ok := lookup(name)
		if !ok {
			resolveErr = fmt.Errorf("unresolved environment variable %q", name)
			return match
		}
		return val
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return result, nil
}

// Expand resolves templates in every string found in v, descending into
// mappings and lists. Map keys and non-string scalars are left alone. The
// input is never modified.
func Expand(v any, ctx *Context) (any, error) {
	switch t := v.(type) {
	case string:
		return Resolve(t, ctx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			r, err := Expand(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			r, err := Expand(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// InputRefs returns the input names referenced anywhere in v, in order of
// appearance.
func InputRefs(v any) []string {
	var refs []string
	walkStrings(v, func(s string) {
		for _, m := range inputRefRe.FindAllStringSubmatch(s, -1) {
			refs = append(refs, m[1])
		}
	})
	return refs
}

func walkStrings(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case map[string]any:
		for _, item := range t {
			walkStrings(item, fn)
		}
	case []any:
		for _, item := range t {
			walkStrings(item, fn)
		}
	}
}
