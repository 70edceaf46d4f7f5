package executor

import (
	"context"
	"log/slog"

	"github.com/nao1215/wmsender/internal/model"
)

// Notifier sends one webmention notification.
type Notifier interface {
	Notify(ctx context.Context, source, target, endpoint string) model.NotifyResult
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, source, target, endpoint string) model.NotifyResult

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, source, target, endpoint string) model.NotifyResult {
	return f(ctx, source, target, endpoint)
}

// Executor runs plans serially against a Notifier.
type Executor struct {
	notifier Notifier
	logger   *slog.Logger
	observer func(model.OperationOutcome)
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used to report each notification.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithObserver registers a callback invoked after every attempted operation.
func WithObserver(fn func(model.OperationOutcome)) Option {
	return func(e *Executor) {
		e.observer = fn
	}
}

// New creates an Executor that sends notifications through n.
func New(n Notifier, opts ...Option) *Executor {
	e := &Executor{notifier: n}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Execute applies plan to a copy of previous and returns the resulting
// database together with the outcome of every attempted operation.
//
// When ctx is cancelled no further notifications are sent. The database
// returned still reflects every success observed before cancellation, and
// the error is ctx.Err().
func (e *Executor) Execute(ctx context.Context, previous *model.Database, plan model.Plan) (*model.Database, []model.OperationOutcome, error) {
	working := seed(previous, plan)
	outcomes := make([]model.OperationOutcome, 0, plan.Len())

	apply := func(kind model.OperationKind, ops []model.Operation) error {
		for _, op := range ops {
			if err := ctx.Err(); err != nil {
				return err
			}

			res := e.notifier.Notify(ctx, op.Source, op.Target, op.Endpoint)
			outcome := model.NewOperationOutcome(kind, op, res)
			outcomes = append(outcomes, outcome)
			e.log(outcome)
			if e.observer != nil {
				e.observer(outcome)
			}

			if !res.Success {
				continue
			}
			switch kind {
			case model.KindRemoval:
				if p, ok := working.Page(op.Source); ok {
					p.Drop(op.Target)
				}
			case model.KindAddition:
				working.Ensure(op.Source, plan.Pages[op.Source]).Put(op.Mention())
			}
		}
		return nil
	}

	err := apply(model.KindRemoval, plan.Removals)
	if err == nil {
		err = apply(model.KindAddition, plan.Additions)
	}

	prune(working, plan)
	return working, outcomes, err
}

// seed copies previous and brings it to the state every notification is
// applied against: pages present on the site carry their new lastModified,
// and mentions about to be reissued are cleared so that a failed reissue
// stays pending for the next run.
func seed(previous *model.Database, plan model.Plan) *model.Database {
	working := previous.Clone()
	for url, lastModified := range plan.Pages {
		working.Ensure(url, lastModified).LastModified = lastModified
	}
	for _, op := range plan.Additions {
		if p, ok := working.Page(op.Source); ok {
			p.Drop(op.Target)
		}
	}
	return working
}

// prune removes pages that left the site once all their removals went
// through.
func prune(db *model.Database, plan model.Plan) {
	for url, p := range db.Pages {
		if _, onSite := plan.Pages[url]; !onSite && len(p.Mentions) == 0 {
			delete(db.Pages, url)
		}
	}
}

func (e *Executor) log(o model.OperationOutcome) {
	attrs := []any{
		"kind", o.Kind.String(),
		"source", o.Operation.Source,
		"target", o.Operation.Target,
		"endpoint", o.Operation.Endpoint,
		"status", o.Result.StatusCode,
		"success", o.Result.Success,
	}
	if o.Result.Success {
		e.logger.Info("webmention sent", attrs...)
		return
	}
	if o.Result.Err != nil {
		attrs = append(attrs, "error", o.Result.Err)
	}
	e.logger.Warn("webmention failed", attrs...)
}
