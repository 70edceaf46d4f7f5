package model

import (
	"context"
	"errors"
	"time"
)

// RunReport is the state of a single wmsender run.
// The pipeline steps fill it in order: load, crawl, reconcile, execute, save.
//
// Databases are excluded from JSON; the serialized report carries the plan,
// the outcomes and the counts instead.
type RunReport struct {
	// Site is the owned site's base URL.
	Site string `json:"site"`

	// Store is the persistence location, with credentials masked.
	Store string `json:"store"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the run ended. Zero while the run is in progress.
	FinishedAt time.Time `json:"finishedAt,omitzero"`

	// DryRun is true when the plan was computed but nothing was sent.
	DryRun bool `json:"dryRun"`

	// Previous is the database loaded from the store.
	Previous *Database `json:"-"`

	// Intended is the database built from the live site, with skipped
	// pages carried over from Previous.
	Intended *Database `json:"-"`

	// Next is the database produced by the executor.
	Next *Database `json:"-"`

	// PagesCrawled is the number of pages listed in the sitemap.
	PagesCrawled int `json:"pagesCrawled"`

	// SkippedPages lists the pages whose fetch failed. Their previous
	// entries were kept as they were.
	SkippedPages []string `json:"skippedPages,omitempty"`

	// Plan is the reconciliation result.
	Plan Plan `json:"plan"`

	// Outcomes lists every executed operation, removals first.
	Outcomes []OperationOutcome `json:"outcomes,omitempty"`

	// Saved is true once Next has been persisted.
	Saved bool `json:"saved"`

	// PerformedSteps lists the pipeline steps that completed.
	PerformedSteps []string `json:"performedSteps,omitempty"`

	// Error holds the error that aborted the run, if any.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// RunCounts summarizes a run's outcomes.
type RunCounts struct {
	Additions         int `json:"additions"`
	Removals          int `json:"removals"`
	AdditionsFailed   int `json:"additionsFailed"`
	RemovalsFailed    int `json:"removalsFailed"`
	AdditionsPlanned  int `json:"additionsPlanned"`
	RemovalsPlanned   int `json:"removalsPlanned"`
	PagesTracked      int `json:"pagesTracked"`
	MentionsTracked   int `json:"mentionsTracked"`
	OperationsSkipped int `json:"operationsSkipped"`
}

// NewRunReport creates a report for the given site.
func NewRunReport(site string) *RunReport {
	return &RunReport{
		Site:      site,
		StartedAt: time.Now(),
		Plan:      NewPlan(),
	}
}

// AddOutcome records an executed operation.
func (r *RunReport) AddOutcome(o OperationOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Fail records err as the run's terminal error.
func (r *RunReport) Fail(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Counts tallies planned and executed operations. Planned operations that
// never produced an outcome (for example after cancellation) are counted as
// skipped.
func (r *RunReport) Counts() RunCounts {
	c := RunCounts{
		AdditionsPlanned: len(r.Plan.Additions),
		RemovalsPlanned:  len(r.Plan.Removals),
	}
	for _, o := range r.Outcomes {
		switch {
		case o.Kind == KindAddition && o.Result.Success:
			c.Additions++
		case o.Kind == KindAddition:
			c.AdditionsFailed++
		case o.Result.Success:
			c.Removals++
		default:
			c.RemovalsFailed++
		}
	}
	if !r.DryRun {
		c.OperationsSkipped = r.Plan.Len() - len(r.Outcomes)
	}
	db := r.Next
	if db == nil {
		db = r.Intended
	}
	if db != nil {
		c.PagesTracked = len(db.Pages)
		c.MentionsTracked = db.MentionCount()
	}
	return c
}

// Finish stamps the end of the run.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took, or zero while it is in progress.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Interrupted reports whether the run stopped because its context ended.
func (r *RunReport) Interrupted() bool {
	return errors.Is(r.Error, context.Canceled) || errors.Is(r.Error, context.DeadlineExceeded)
}
