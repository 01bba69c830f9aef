package errors

import (
	"errors"
	"fmt"
)

// Error type constants
const (
	ValidationError = "VALIDATION_ERROR"
	ToolNotFound    = "TOOL_NOT_FOUND"
	ToolFailed      = "TOOL_FAILED"
	ToolPanic       = "TOOL_PANIC"
)

var (
	ErrToolNameEmpty    = errors.New("tool name is empty")
	ErrToolUnregistered = errors.New("tool is not registered")
	ErrNilHandler       = errors.New("tool handler is nil")
	ErrPathNotAllowed   = errors.New("path not allowed")
	ErrCommandBlocked   = errors.New("command blocked by security policy")
	ErrUnsupported      = errors.New("not supported on this platform")
)

// RunError is a structured error for agent consumption.
type RunError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	StepIndex *int   `json:"step_index,omitempty"`
	Hint      string `json:"hint,omitempty"`
}

func (e *RunError) Error() string {
	if e.StepIndex != nil {
		return fmt.Sprintf("[%s] step %d: %s", e.Type, *e.StepIndex, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func NewValidationError(msg, hint string) *RunError {
	return &RunError{Type: ValidationError, Message: msg, Hint: hint}
}

func NewStepError(typ string, index int, msg string) *RunError {
	return &RunError{Type: typ, StepIndex: &index, Message: msg}
}
