package report

import (
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/wmsender/internal/model"
	"github.com/nao1215/wmsender/internal/store"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs a run report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)

	// WriteDatabase outputs a stored database.
	WriteDatabase(view *DatabaseView) (int, error)
}

// DatabaseView is a stored database together with where it came from.
type DatabaseView struct {
	// Location is the store location, with credentials masked.
	Location string `json:"location"`

	// Database is the stored database.
	Database *model.Database `json:"database"`

	// History lists past saves, newest first. Only some stores keep it.
	History []store.RunRecord `json:"history,omitempty"`
}

// MultiWriter writes to multiple Writers in turn.
// Our Writer writes reports rather than bytes, so io.MultiWriter does not fit.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteDatabase outputs the database view to all configured Writers.
func (m *MultiWriter) WriteDatabase(view *DatabaseView) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDatabase(view)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var titleCaser = cases.Title(language.English)

// kindLabel returns "Addition" or "Removal".
func kindLabel(k model.OperationKind) string {
	return titleCaser.String(k.String())
}

// statusText summarizes how the run ended.
func statusText(report *model.RunReport) string {
	switch {
	case report.Interrupted():
		return "Interrupted (partial results saved)"
	case report.ErrorMessage != "":
		return "Error - " + report.ErrorMessage
	case report.DryRun:
		return "Dry run (nothing sent)"
	default:
		return "Complete"
	}
}

// resultText describes a single notification result.
func resultText(res model.NotifyResult) string {
	switch {
	case res.Success:
		return "sent (" + statusCode(res.StatusCode) + ")"
	case res.Err != nil:
		return "failed: " + res.ErrorText()
	default:
		return "rejected (" + statusCode(res.StatusCode) + ")"
	}
}
