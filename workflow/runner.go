package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/types"
)

// StepStatus is the outcome of a single step within a run.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepReport records the outcome of one step of a run.
type StepReport struct {
	Step     string
	Status   StepStatus
	Err      error
	Duration time.Duration
}

// Result is the outcome of a full run. State always carries the last good
// state: on failure it reflects every step that succeeded before (and, in
// run-to-completion mode, after) the failing one. Err is the first error
// encountered, or nil.
type Result[S any] struct {
	RunID string
	State S
	Err   error
	Steps []StepReport
}

// Succeeded reports whether every executed step completed without error.
func (r *Result[S]) Succeeded() bool { return r.Err == nil }

// Observer receives step-level lifecycle callbacks. Implementations must be
// safe for concurrent use; the metrics collector is the primary consumer.
type Observer interface {
	StepStarted(workflow, step string)
	StepFinished(workflow, step string, status StepStatus, d time.Duration)
	RunFinished(workflow string, succeeded bool, d time.Duration)
}

// Runner executes a compiled Graph. A Runner holds no per-run state: a single
// instance serves any number of concurrent runs.
type Runner[S any] struct {
	graph    *Graph[S]
	logger   *zap.Logger
	tracer   trace.Tracer
	observer Observer
	failFast bool
}

// Option configures a Runner.
type Option[S any] func(*Runner[S])

// WithLogger sets the structured logger for run and step events.
func WithLogger[S any](logger *zap.Logger) Option[S] {
	return func(r *Runner[S]) { r.logger = logger }
}

// WithTracer enables a span per step on the given tracer.
func WithTracer[S any](tracer trace.Tracer) Option[S] {
	return func(r *Runner[S]) { r.tracer = tracer }
}

// WithObserver registers a step lifecycle observer.
func WithObserver[S any](o Observer) Option[S] {
	return func(r *Runner[S]) { r.observer = o }
}

// WithFailFast makes the runner skip all remaining steps once a step fails,
// instead of the default run-to-completion behavior.
func WithFailFast[S any]() Option[S] {
	return func(r *Runner[S]) { r.failFast = true }
}

// NewRunner creates a runner for the given graph.
func NewRunner[S any](graph *Graph[S], opts ...Option[S]) *Runner[S] {
	r := &Runner[S]{
		graph:  graph,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every step of the graph in its compiled order against a copy
// of the initial state. The first failing step decides the verdict; later
// steps still run (or are skipped under WithFailFast) and their state updates
// after a failure are discarded in favor of the last good state.
//
// Context cancellation is honored between steps: remaining steps are marked
// skipped and the context error becomes the run error if no step failed first.
func (r *Runner[S]) Run(ctx context.Context, initial S) *Result[S] {
	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)

	result := &Result[S]{
		RunID: runID,
		State: initial,
		Steps: make([]StepReport, 0, len(r.graph.steps)),
	}

	logger := r.logger.With(
		zap.String("workflow", r.graph.name),
		zap.String("run_id", runID),
	)
	logger.Info("run started", zap.Int("steps", len(r.graph.steps)))
	runStart := time.Now()

	halted := false
	for _, step := range r.graph.steps {
		if halted {
			result.Steps = append(result.Steps, StepReport{Step: step.name, Status: StepSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			if result.Err == nil {
				result.Err = err
			}
			result.Steps = append(result.Steps, StepReport{Step: step.name, Status: StepSkipped})
			halted = true
			continue
		}

		report := r.runStep(ctx, step, result, logger)
		result.Steps = append(result.Steps, report)

		if report.Status == StepFailed {
			if result.Err == nil {
				result.Err = report.Err
			}
			if r.failFast {
				halted = true
			}
		}
	}

	elapsed := time.Since(runStart)
	if result.Err != nil {
		logger.Warn("run failed",
			zap.Duration("elapsed", elapsed),
			zap.Error(result.Err),
		)
	} else {
		logger.Info("run succeeded", zap.Duration("elapsed", elapsed))
	}
	if r.observer != nil {
		r.observer.RunFinished(r.graph.name, result.Err == nil, elapsed)
	}
	return result
}

// runStep executes one step with panic recovery. On success the returned
// state replaces result.State; on failure result.State is left untouched.
func (r *Runner[S]) runStep(ctx context.Context, step compiledStep[S], result *Result[S], logger *zap.Logger) (report StepReport) {
	report = StepReport{Step: step.name}

	if r.observer != nil {
		r.observer.StepStarted(r.graph.name, step.name)
	}

	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "workflow.step",
			trace.WithAttributes(
				attribute.String("workflow.name", r.graph.name),
				attribute.String("workflow.step", step.name),
			),
		)
	}

	start := time.Now()
	next, err := r.invoke(ctx, step, result.State)
	report.Duration = time.Since(start)

	if err != nil {
		report.Status = StepFailed
		report.Err = err
		logger.Warn("step failed",
			zap.String("step", step.name),
			zap.Duration("elapsed", report.Duration),
			zap.Error(err),
		)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else {
		report.Status = StepSucceeded
		result.State = next
		logger.Debug("step succeeded",
			zap.String("step", step.name),
			zap.Duration("elapsed", report.Duration),
		)
	}

	if span != nil {
		span.End()
	}
	if r.observer != nil {
		r.observer.StepFinished(r.graph.name, step.name, report.Status, report.Duration)
	}
	return report
}

// invoke calls the step function, converting a panic into a step error so a
// misbehaving step can never take the process down.
func (r *Runner[S]) invoke(ctx context.Context, step compiledStep[S], state S) (next S, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			next = state
			err = types.NewError(types.ErrStepExecution,
				fmt.Sprintf("step %q panicked: %v", step.name, rec))
		}
	}()
	return step.fn(ctx, state)
}
