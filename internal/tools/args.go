package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// args wraps a tool call's arguments with typed accessors. Absent keys
// yield the supplied default; present keys of the wrong type are errors.
type args map[string]any

func (a args) str(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	return s, nil
}

func (a args) integer(name string, def int) (int, error) {
	p, err := a.optInteger(name)
	if err != nil || p == nil {
		return def, err
	}
	return *p, nil
}

func (a args) optInteger(name string) (*int, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := toInt(v)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an integer", name)
	}
	return &n, nil
}

func (a args) number(name string, def float64) (float64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("argument %q must be a number", name)
		}
		return f, nil
	}
	if i, ok := toInt(v); ok {
		return float64(i), nil
	}
	return 0, fmt.Errorf("argument %q must be a number", name)
}

// seconds reads a number of seconds as a duration.
func (a args) seconds(name string, def float64) (time.Duration, error) {
	s, err := a.number(name, def)
	if err != nil {
		return 0, err
	}
	if s < 0 {
		return 0, fmt.Errorf("argument %q must not be negative", name)
	}
	return time.Duration(s * float64(time.Second)), nil
}

func (a args) boolean(name string, def bool) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q must be a boolean", name)
	}
	return b, nil
}

func (a args) strings(name string) ([]string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch l := v.(type) {
	case []string:
		return l, nil
	case []any:
		out := make([]string, len(l))
		for i, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must be a list of strings", name)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument %q must be a list of strings", name)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// result builds a successful structured result.
func result(fields map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// failed builds a failed structured result carrying err's message.
func failed(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}

func failedf(format string, a ...any) map[string]any {
	return map[string]any{"success": false, "error": fmt.Sprintf(format, a...)}
}
