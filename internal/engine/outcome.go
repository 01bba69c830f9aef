package engine

import (
	"context"
	"fmt"
)

// Outcome is the classified result of one handler call: Success or Failure.
type Outcome interface {
	outcome()
}

// Success carries the handler's payload.
type Success struct {
	Payload any
}

// Failure carries the failure message and, for handler-reported failures,
// the structured result the handler returned.
type Failure struct {
	Message  string
	Payload  any
	Panicked bool
}

func (Success) outcome() {}
func (Failure) outcome() {}

// defaultFailureMessage is used when a handler reports failure without an
// error message of its own.
const defaultFailureMessage = "Tool returned failure"

// Call invokes h and classifies what it returns. A panic inside h is
// recovered and reported as a Failure.
func Call(ctx context.Context, h Handler, args map[string]any) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = Failure{Message: fmt.Sprint(rec), Panicked: true}
		}
	}()
	value, err := h(ctx, args)
	return Classify(value, err)
}

// Classify turns a handler's return values into an Outcome. A non-nil error
// is a failure. A map result is structured: its "success" (or "succeeded")
// boolean decides, defaulting to true when absent. Anything else is an
// implicit success.
func Classify(value any, err error) Outcome {
	if err != nil {
		return Failure{Message: err.Error()}
	}
	m, ok := value.(map[string]any)
	if !ok {
		return Success{Payload: value}
	}
	if succeeded(m) {
		return Success{Payload: m}
	}
	msg, _ := m["error"].(string)
	if msg == "" {
		msg = defaultFailureMessage
	}
	return Failure{Message: msg, Payload: m}
}

func succeeded(m map[string]any) bool {
	for _, key := range []string{"success", "succeeded"} {
		if b, ok := m[key].(bool); ok {
			return b
		}
	}
	return true
}
