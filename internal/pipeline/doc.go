// Package pipeline runs a webmention send as an ordered list of steps.
//
// The default pipeline loads the previous database, crawls the site into an
// intended database, reconciles the two into a plan, executes the plan and
// saves the result. Every step reads and writes a shared model.RunReport.
//
// A step that fails stops the run before anything is persisted. The one
// exception is cancellation during execution: notifications already
// accepted are still saved, through steps that implement Finalizer.
package pipeline
