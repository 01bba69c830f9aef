package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler executes one tool call with its named arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Resolver looks up a tool handler by name.
type Resolver interface {
	Resolve(name string) (Handler, bool)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(name string) (Handler, bool)

func (f ResolverFunc) Resolve(name string) (Handler, bool) { return f(name) }

// Observer is notified as steps and runs finish.
type Observer interface {
	StepFinished(result StepResult)
	RunFinished(report *Report)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for step and run events.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers an observer for step and run outcomes.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithSleep replaces the blocking wait used for inter-step delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithClock replaces the wall clock used for timing.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// runContext holds per-run state. Runs never share one.
type runContext struct {
	ctx    context.Context
	runID  string
	logger *zap.Logger
}

func (r *Runner) newRunContext(ctx context.Context) *runContext {
	id := uuid.NewString()
	return &runContext{
		ctx:    ctx,
		runID:  id,
		logger: r.logger.With(zap.String("run_id", id)),
	}
}
