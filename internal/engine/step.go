package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Step is the typed form of a workflow step. Callers holding decoded JSON or
// YAML pass raw mappings to Runner.Run instead.
type Step struct {
	Tool            string         `json:"tool" yaml:"tool"`
	Args            map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
	WaitAfterMS     int            `json:"wait_after_ms,omitempty" yaml:"wait_after_ms,omitempty"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty"`
	ContinueOnError bool           `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
}

func (s Step) toMap() map[string]any {
	m := map[string]any{
		"tool":              s.Tool,
		"wait_after_ms":     s.WaitAfterMS,
		"continue_on_error": s.ContinueOnError,
	}
	if s.Args != nil {
		m["args"] = s.Args
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	return m
}

// Step field names. wait_ms is the older spelling of wait_after_ms.
const (
	fieldTool            = "tool"
	fieldArgs            = "args"
	fieldWaitAfterMS     = "wait_after_ms"
	fieldWaitMS          = "wait_ms"
	fieldDescription     = "description"
	fieldContinueOnError = "continue_on_error"
)

// asMapping reports whether v is a key-value structure with string keys.
func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Step:
		return m.toMap(), true
	case *Step:
		if m == nil {
			return nil, false
		}
		return m.toMap(), true
	default:
		return stringKeyed(v)
	}
}

// stringKeyed converts any map with string keys, such as map[string]string,
// to map[string]any. A map[string]any is returned as is.
func stringKeyed(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asList reports whether v is an ordered list of steps.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	case []Step:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func description(step map[string]any, index int) string {
	if d, ok := step[fieldDescription].(string); ok && d != "" {
		return d
	}
	return fmt.Sprintf("Step %d", index+1)
}

func continueOnError(step map[string]any) bool {
	b, _ := step[fieldContinueOnError].(bool)
	return b
}

// waitAfter reads the post-step delay. Absent means zero.
func waitAfter(step map[string]any) (time.Duration, bool) {
	raw, ok := step[fieldWaitAfterMS]
	if !ok {
		raw, ok = step[fieldWaitMS]
	}
	if !ok || raw == nil {
		return 0, true
	}
	ms, ok := toInt(raw)
	if !ok || ms < 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
