package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/wmsender/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	counts := report.Counts()

	w.writeHeader(md, report)
	w.writeSummary(md, report, counts)
	w.writeOperations(md, report)
	w.writeSkipped(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteDatabase outputs the stored database in Markdown format.
func (w *MarkdownWriter) WriteDatabase(view *DatabaseView) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Webmention Database")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Store", "`" + view.Location + "`"},
			{"Pages", strconv.Itoa(len(view.Database.Pages))},
			{"Mentions", strconv.Itoa(view.Database.MentionCount())},
		},
	})
	md.PlainText("")

	md.H2("Pages")
	md.PlainText("")
	if len(view.Database.Pages) == 0 {
		md.PlainText("No pages recorded.")
		md.PlainText("")
	}
	for _, url := range view.Database.PageURLs() {
		page := view.Database.Pages[url]
		md.PlainText("### " + url)
		md.PlainText("")
		md.PlainTextf("Last modified: %s", formatUnix(page.LastModified))
		md.PlainText("")
		if len(page.Mentions) == 0 {
			md.PlainText("No mentions.")
			md.PlainText("")
			continue
		}
		rows := make([][]string, 0, len(page.Mentions))
		for _, target := range page.Targets() {
			rows = append(rows, []string{target, page.Mentions[target].Endpoint})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Target", "Endpoint"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(view.History) > 0 {
		md.H2("History")
		md.PlainText("")
		rows := make([][]string, 0, len(view.History))
		for _, r := range view.History {
			rows = append(rows, []string{
				strconv.FormatInt(r.ID, 10),
				r.Timestamp.Format(timeLayout),
				strconv.Itoa(r.Pages),
				strconv.Itoa(r.Mentions),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Run", "Saved", "Pages", "Mentions"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("Webmention Run Report")
	md.PlainText("")

	rows := [][]string{
		{"Site", "`" + report.Site + "`"},
		{"Store", "`" + report.Store + "`"},
		{"Started", report.StartedAt.Format(timeLayout)},
	}
	if d := report.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Millisecond).String()})
	}
	rows = append(rows,
		[]string{"Pages Crawled", strconv.Itoa(report.PagesCrawled)},
		[]string{"Status", statusText(report)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes the operation counts, a chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport, c model.RunCounts) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Sent", "Failed", "Planned"},
		Rows: [][]string{
			{"Additions", strconv.Itoa(c.Additions), strconv.Itoa(c.AdditionsFailed), strconv.Itoa(c.AdditionsPlanned)},
			{"Removals", strconv.Itoa(c.Removals), strconv.Itoa(c.RemovalsFailed), strconv.Itoa(c.RemovalsPlanned)},
		},
	})
	md.PlainText("")
	md.PlainTextf("Tracking **%d** mentions on **%d** pages.", c.MentionsTracked, c.PagesTracked)
	md.PlainText("")

	if len(report.Outcomes) > 0 {
		w.writePieChart(md, c)
	}
	w.writeAlert(md, report, c)
}

// writePieChart writes a mermaid pie chart of notification results.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, c model.RunCounts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Notification Results"),
		piechart.WithShowData(true),
	)

	if sent := c.Additions + c.Removals; sent > 0 {
		chart.LabelAndIntValue("Sent", uint64(sent))
	}
	if failed := c.AdditionsFailed + c.RemovalsFailed; failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(failed))
	}
	if c.OperationsSkipped > 0 {
		chart.LabelAndIntValue("Not attempted", uint64(c.OperationsSkipped))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching how the run ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport, c model.RunCounts) {
	failed := c.AdditionsFailed + c.RemovalsFailed
	switch {
	case report.Interrupted():
		md.Warningf("Run interrupted. %d planned operation(s) were not attempted and will be retried next run.",
			c.OperationsSkipped)
	case report.ErrorMessage != "":
		md.Cautionf("Run failed: %s", report.ErrorMessage)
	case failed > 0:
		md.Importantf("%d notification(s) failed and will be retried next run.", failed)
	case report.DryRun:
		md.Note("Dry run. No webmentions were sent and nothing was saved.")
	default:
		md.Tip("All webmentions delivered.")
	}
	md.PlainText("")
}

// writeOperations writes one table row per attempted or planned operation.
func (w *MarkdownWriter) writeOperations(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Operations")
	md.PlainText("")

	var rows [][]string
	if report.DryRun {
		for _, op := range report.Plan.Removals {
			rows = append(rows, operationRow(model.KindRemoval, op, "planned"))
		}
		for _, op := range report.Plan.Additions {
			rows = append(rows, operationRow(model.KindAddition, op, "planned"))
		}
	} else {
		for _, o := range report.Outcomes {
			rows = append(rows, operationRow(o.Kind, o.Operation, resultText(o.Result)))
		}
	}

	if len(rows) == 0 {
		md.PlainText("Nothing to do.")
		md.PlainText("")
		return
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Source", "Target", "Endpoint", "Result"},
		Rows:   rows,
	})
	md.PlainText("")
}

func operationRow(kind model.OperationKind, op model.Operation, result string) []string {
	return []string{
		kindLabel(kind),
		truncateString(op.Source, 60),
		truncateString(op.Target, 60),
		truncateString(op.Endpoint, 60),
		result,
	}
}

// writeSkipped lists pages that could not be fetched.
func (w *MarkdownWriter) writeSkipped(md *markdown.Markdown, report *model.RunReport) {
	if len(report.SkippedPages) == 0 {
		return
	}
	md.H2("Skipped Pages")
	md.PlainText("")
	md.BulletList(report.SkippedPages...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [wmsender](https://github.com/nao1215/wmsender)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
