package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/wmsender/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the report
// filled in by previous steps.
type Step interface {
	// Do executes the pipeline step.
	// Returning an error aborts the run.
	Do(ctx context.Context, report *model.RunReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Finalizer is implemented by steps that must still run when the pipeline
// stops early. They receive a context that is never cancelled.
type Finalizer interface {
	Step

	// Finalize reports whether the step should run after an early stop.
	Finalize() bool
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Cancellation is checked before each step. When the pipeline stops early,
// either because ctx is done or because a step failed, the remaining steps
// that implement Finalizer still run. The returned error is the one that
// stopped the pipeline, joined with any finalizer failure.
func (p *Pipeline) Execute(ctx context.Context, report *model.RunReport) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			report.Fail(err)
			p.finalize(ctx, report, p.steps[i:])
			return report.Error
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"site", report.Site,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"site", report.Site,
				"error", err,
			)
			report.Fail(err)
			p.finalize(ctx, report, p.steps[i+1:])
			return report.Error
		}
		p.logger.Debug("step completed",
			"step", step.Name(),
			"site", report.Site,
		)

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return report.Error
}

// finalize runs the Finalizer steps among rest.
func (p *Pipeline) finalize(ctx context.Context, report *model.RunReport, rest []Step) {
	ctx = context.WithoutCancel(ctx)
	for _, step := range rest {
		f, ok := step.(Finalizer)
		if !ok || !f.Finalize() {
			continue
		}
		p.logger.Info("finalizing step",
			"step", step.Name(),
			"site", report.Site,
		)
		if err := f.Do(ctx, report); err != nil {
			p.logger.Error("finalizing step failed",
				"step", step.Name(),
				"site", report.Site,
				"error", err,
			)
			report.Fail(errors.Join(report.Error, err))
			continue
		}
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
