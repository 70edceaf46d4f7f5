// Package executor applies a reconciliation plan against the webmention
// notification transport.
//
// Execute never modifies the database it is given. It works on a copy,
// sends every removal before any addition, and folds in only the operations
// whose notification succeeded. A failed notification leaves its page and
// target untouched and the run moves on to the next operation, so the next
// run's reconciliation derives the same operation again.
package executor
