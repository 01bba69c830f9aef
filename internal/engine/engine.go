package engine

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
)

const (
	msgNoSteps    = "No steps provided"
	msgStepsShape = "Steps must be a list"
)

// Runner executes ordered tool-call workflows against a Resolver. A Runner
// holds no per-run state and may serve concurrent runs.
type Runner struct {
	resolver Resolver
	logger   *zap.Logger
	observer Observer
	sleep    func(time.Duration)
	now      func() time.Time
}

// New creates a Runner that resolves tool names through resolver.
func New(resolver Resolver, opts ...Option) *Runner {
	r := &Runner{
		resolver: resolver,
		logger:   zap.NewNop(),
		sleep:    time.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSteps executes typed steps.
func (r *Runner) RunSteps(ctx context.Context, steps []Step) *Report {
	return r.Run(ctx, steps)
}

// Run executes steps, which is expected to be an ordered list of step
// mappings as decoded from JSON or YAML. Steps run strictly in order; the
// first halting failure stops the run.
func (r *Runner) Run(ctx context.Context, steps any) *Report {
	rc := r.newRunContext(ctx)

	if steps == nil {
		return r.finish(rc, failedReport(msgNoSteps))
	}
	list, ok := asList(steps)
	if !ok {
		return r.finish(rc, failedReport(msgStepsShape))
	}
	if len(list) == 0 {
		return r.finish(rc, failedReport(msgNoSteps))
	}

	report := &Report{
		StepCount: len(list),
		Results:   make([]StepResult, 0, len(list)),
		Succeeded: true,
	}
	rc.logger.Info("workflow started", zap.Int("steps", len(list)))

	start := r.now()
	last := start
	for i, raw := range list {
		result, halt, wait := r.executeStep(rc, i, raw)
		report.Results = append(report.Results, result)
		last = r.now()
		if r.observer != nil {
			r.observer.StepFinished(result)
		}
		if result.Succeeded {
			report.CompletedCount++
		}
		if halt {
			idx := i
			report.Succeeded = false
			report.HaltedAtIndex = &idx
			report.Error = result.Error
			rc.logger.Warn("workflow halted",
				zap.Int("index", i),
				zap.String("error", deref(result.Error)))
			break
		}
		if wait > 0 {
			r.sleep(wait)
		}
	}
	report.DurationMS = last.Sub(start).Milliseconds()
	return r.finish(rc, report)
}

func (r *Runner) finish(rc *runContext, report *Report) *Report {
	report.RunID = rc.runID
	if report.StepCount > 0 {
		rc.logger.Info("workflow finished",
			zap.Bool("succeeded", report.Succeeded),
			zap.Int("completed", report.CompletedCount),
			zap.Int64("duration_ms", report.DurationMS))
	} else {
		rc.logger.Warn("workflow rejected", zap.String("error", report.ErrorMessage()))
	}
	if r.observer != nil {
		r.observer.RunFinished(report)
	}
	return report
}

// executeStep runs one step and never panics. It returns the step's result,
// whether the step halts the run, and the delay owed before the next step.
func (r *Runner) executeStep(rc *runContext, index int, raw any) (StepResult, bool, time.Duration) {
	start := r.now()
	result := StepResult{Index: index, Description: fmt.Sprintf("Step %d", index+1)}

	fail := func(typ, msg string, cont bool) (StepResult, bool, time.Duration) {
		result.Error = strPtr(msg)
		result.ErrorType = typ
		result.DurationMS = r.now().Sub(start).Milliseconds()
		rc.logger.Debug("step failed",
			zap.Int("index", index),
			zap.String("error_type", typ),
			zap.String("error", msg))
		return result, !cont, 0
	}

	step, ok := asMapping(raw)
	if !ok {
		return fail(dagerrors.ValidationError, fmt.Sprintf("Step %d must be a mapping", index), false)
	}
	result.Description = description(step, index)
	cont := continueOnError(step)

	name, _ := step[fieldTool].(string)
	if name == "" {
		return fail(dagerrors.ValidationError, fmt.Sprintf("Step %d missing 'tool' field", index), cont)
	}
	result.Tool = strPtr(name)

	handler, ok := r.resolver.Resolve(name)
	if !ok || handler == nil {
		return fail(dagerrors.ToolNotFound, "Unknown tool: "+name, cont)
	}

	args := map[string]any{}
	if rawArgs, present := step[fieldArgs]; present && rawArgs != nil {
		m, ok := stringKeyed(rawArgs)
		if !ok {
			return fail(dagerrors.ValidationError, fmt.Sprintf("Step %d 'args' must be a mapping", index), cont)
		}
		args = maps.Clone(m)
	}

	wait, ok := waitAfter(step)
	if !ok {
		return fail(dagerrors.ValidationError,
			fmt.Sprintf("Step %d 'wait_after_ms' must be a non-negative integer", index), cont)
	}

	rc.logger.Debug("executing step", zap.Int("index", index), zap.String("tool", name))
	out := Call(rc.ctx, handler, args)
	result.DurationMS = r.now().Sub(start).Milliseconds()

	switch o := out.(type) {
	case Success:
		result.Succeeded = true
		result.Payload = o.Payload
		return result, false, wait
	case Failure:
		result.Payload = o.Payload
		result.Error = strPtr(o.Message)
		result.ErrorType = dagerrors.ToolFailed
		if o.Panicked {
			result.ErrorType = dagerrors.ToolPanic
			rc.logger.Error("tool panicked", zap.Int("index", index), zap.String("tool", name), zap.String("panic", o.Message))
		}
		return result, !cont, 0
	}
	return result, false, wait
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
