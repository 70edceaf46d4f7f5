package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/wmsender/internal/model"
)

const (
	ruleWidth  = 70
	timeLayout = "2006-01-02 15:04:05 MST"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing in them are shown.
	showEmpty bool

	// verbose lists every operation, not just the failed ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists successful operations too.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "WEBMENTION RUN REPORT")
	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writePlan(&sb, report)
	w.writeOutcomes(&sb, report)
	w.writeSkipped(&sb, report)
	writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteDatabase outputs the stored database in human-readable format.
func (w *SimpleWriter) WriteDatabase(view *DatabaseView) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "WEBMENTION DATABASE")
	fmt.Fprintf(&sb, "Store:    %s\n", view.Location)
	fmt.Fprintf(&sb, "Pages:    %d\n", len(view.Database.Pages))
	fmt.Fprintf(&sb, "Mentions: %d\n\n", view.Database.MentionCount())

	for _, url := range view.Database.PageURLs() {
		page := view.Database.Pages[url]
		if len(page.Mentions) == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(&sb, "%s\n", url)
		fmt.Fprintf(&sb, "  Last modified: %s\n", formatUnix(page.LastModified))
		for _, target := range page.Targets() {
			fmt.Fprintf(&sb, "  -> %s\n", target)
			fmt.Fprintf(&sb, "     via %s\n", page.Mentions[target].Endpoint)
		}
		sb.WriteString("\n")
	}

	if len(view.History) > 0 {
		writeSection(&sb, "HISTORY")
		for _, r := range view.History {
			fmt.Fprintf(&sb, "  #%-5d %s  %d pages, %d mentions\n",
				r.ID, r.Timestamp.Format(timeLayout), r.Pages, r.Mentions)
		}
		sb.WriteString("\n")
	}

	writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	fmt.Fprintf(sb, "Site:          %s\n", report.Site)
	fmt.Fprintf(sb, "Store:         %s\n", report.Store)
	fmt.Fprintf(sb, "Started:       %s\n", report.StartedAt.Format(timeLayout))
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:      %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Pages Crawled: %d\n", report.PagesCrawled)
	fmt.Fprintf(sb, "Status:        %s\n\n", statusText(report))
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.RunReport) {
	c := report.Counts()
	writeSection(sb, "SUMMARY")

	fmt.Fprintf(sb, "  ADDITIONS: %d sent, %d failed, %d planned\n", c.Additions, c.AdditionsFailed, c.AdditionsPlanned)
	fmt.Fprintf(sb, "  REMOVALS:  %d sent, %d failed, %d planned\n", c.Removals, c.RemovalsFailed, c.RemovalsPlanned)
	if c.OperationsSkipped > 0 {
		fmt.Fprintf(sb, "  SKIPPED:   %d not attempted\n", c.OperationsSkipped)
	}
	fmt.Fprintf(sb, "  TRACKED:   %d mentions on %d pages\n", c.MentionsTracked, c.PagesTracked)
	if report.Saved {
		sb.WriteString("  SAVED:     yes\n")
	} else {
		sb.WriteString("  SAVED:     no\n")
	}
	sb.WriteString("\n")
}

// writePlan lists planned operations. Only dry runs print it, since a real
// run lists outcomes instead.
func (w *SimpleWriter) writePlan(sb *strings.Builder, report *model.RunReport) {
	if !report.DryRun {
		return
	}
	if report.Plan.Empty() && !w.showEmpty {
		return
	}

	writeSection(sb, "PLAN")
	if report.Plan.Empty() {
		sb.WriteString("  Nothing to do\n\n")
		return
	}
	for _, op := range report.Plan.Removals {
		fmt.Fprintf(sb, "  [-] %s -> %s\n      via %s\n", op.Source, op.Target, op.Endpoint)
	}
	for _, op := range report.Plan.Additions {
		fmt.Fprintf(sb, "  [+] %s -> %s\n      via %s\n", op.Source, op.Target, op.Endpoint)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeOutcomes(sb *strings.Builder, report *model.RunReport) {
	shown := make([]model.OperationOutcome, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		if w.verbose || !o.Result.Success {
			shown = append(shown, o)
		}
	}
	if len(shown) == 0 && !w.showEmpty {
		return
	}

	if w.verbose {
		writeSection(sb, "OPERATIONS")
	} else {
		writeSection(sb, "FAILED OPERATIONS")
	}
	if len(shown) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, o := range shown {
		marker := "+"
		if o.Kind == model.KindRemoval {
			marker = "-"
		}
		fmt.Fprintf(sb, "  [%s] %s %s -> %s\n", marker, kindLabel(o.Kind), o.Operation.Source, o.Operation.Target)
		fmt.Fprintf(sb, "      Endpoint: %s\n", o.Operation.Endpoint)
		fmt.Fprintf(sb, "      Result:   %s\n", resultText(o.Result))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSkipped(sb *strings.Builder, report *model.RunReport) {
	if len(report.SkippedPages) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "SKIPPED PAGES")
	if len(report.SkippedPages) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, p := range report.SkippedPages {
		fmt.Fprintf(sb, "  [!] %s\n", p)
	}
	sb.WriteString("\n")
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", (ruleWidth-len(title))/2))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by wmsender\n")
	sb.WriteString("https://github.com/nao1215/wmsender\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

// formatUnix renders seconds since the epoch in UTC.
func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(timeLayout)
}

func statusCode(code int) string {
	if code == 0 {
		return "no response"
	}
	return strconv.Itoa(code)
}
