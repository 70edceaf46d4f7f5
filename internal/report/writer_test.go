package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/wmsender/internal/model"
	"github.com/nao1215/wmsender/internal/store"
)

// createTestReport creates a finished run with one success and one failure
// of each kind.
func createTestReport() *model.RunReport {
	report := model.NewRunReport("https://example.com")
	report.Store = "file:///var/lib/wmsender/webmention.json"
	report.PagesCrawled = 3
	report.SkippedPages = []string{"https://example.com/broken"}

	added := model.Operation{Source: "https://example.com/a", Target: "https://one.example/", Endpoint: "https://one.example/wm"}
	refused := model.Operation{Source: "https://example.com/a", Target: "https://two.example/", Endpoint: "https://two.example/wm"}
	removed := model.Operation{Source: "https://example.com/b", Target: "https://gone.example/", Endpoint: "https://gone.example/wm"}

	report.Plan.Additions = []model.Operation{added, refused}
	report.Plan.Removals = []model.Operation{removed}
	report.Plan.Pages = map[string]int64{"https://example.com/a": 1704207845}

	report.AddOutcome(model.NewOperationOutcome(model.KindRemoval, removed,
		model.NotifyResult{StatusCode: 202, Success: true}))
	report.AddOutcome(model.NewOperationOutcome(model.KindAddition, added,
		model.NotifyResult{StatusCode: 201, Success: true}))
	report.AddOutcome(model.NewOperationOutcome(model.KindAddition, refused,
		model.NotifyResult{Err: errors.New("connection refused")}))

	next := model.NewDatabase()
	next.Ensure("https://example.com/a", 1704207845).Put(added.Mention())
	report.Next = next
	report.Saved = true
	report.FinishedAt = report.StartedAt.Add(1500 * time.Millisecond)
	return report
}

func createTestView() *DatabaseView {
	db := model.NewDatabase()
	p := db.Ensure("https://example.com/a", 1704207845)
	p.Put(model.Mention{Target: "https://one.example/", Endpoint: "https://one.example/wm"})
	db.Ensure("https://example.com/empty", 0)
	return &DatabaseView{
		Location: "sqlite:///tmp/wm.db",
		Database: db,
		History: []store.RunRecord{
			{ID: 2, Timestamp: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), Pages: 2, Mentions: 1},
		},
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"WEBMENTION RUN REPORT",
			"https://example.com",
			"Pages Crawled: 3",
			"Status:        Complete",
			"Duration:      1.5s",
			"ADDITIONS: 1 sent, 1 failed, 2 planned",
			"REMOVALS:  1 sent, 0 failed, 1 planned",
			"TRACKED:   1 mentions on 1 pages",
			"SAVED:     yes",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("lists only failures by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}

		output := buf.String()
		if !strings.Contains(output, "FAILED OPERATIONS") {
			t.Error("expected failed operations section")
		}
		if !strings.Contains(output, "[+] Addition https://example.com/a -> https://two.example/") {
			t.Errorf("expected failed addition line\n%s", output)
		}
		if !strings.Contains(output, "failed: connection refused") {
			t.Error("expected transport error text")
		}
		if strings.Contains(output, "https://gone.example/") {
			t.Error("successful removal should not be listed without verbose")
		}
	})

	t.Run("verbose lists every operation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}

		output := buf.String()
		if !strings.Contains(output, "[-] Removal https://example.com/b -> https://gone.example/") {
			t.Errorf("expected removal line\n%s", output)
		}
		if !strings.Contains(output, "sent (202)") {
			t.Error("expected status of successful removal")
		}
	})

	t.Run("writes skipped pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "[!] https://example.com/broken") {
			t.Error("expected skipped page")
		}
	})

	t.Run("dry run prints plan", func(t *testing.T) {
		t.Parallel()

		report := model.NewRunReport("https://example.com")
		report.DryRun = true
		report.Plan.Additions = []model.Operation{{Source: "https://example.com/a", Target: "https://t.example/", Endpoint: "https://t.example/wm"}}

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatal(err)
		}

		output := buf.String()
		if !strings.Contains(output, "Dry run (nothing sent)") {
			t.Error("expected dry run status")
		}
		if !strings.Contains(output, "[+] https://example.com/a -> https://t.example/") {
			t.Errorf("expected planned addition\n%s", output)
		}
		if strings.Contains(output, "SKIPPED:") {
			t.Error("dry run should not count skipped operations")
		}
	})

	t.Run("interrupted run", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Fail(fmt.Errorf("execution interrupted: %w", context.Canceled))

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "Interrupted (partial results saved)") {
			t.Error("expected interrupted status")
		}
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		report := model.NewRunReport("https://example.com")
		report.Fail(errors.New("failed to load database: database not found"))

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "Error - failed to load database") {
			t.Error("expected error status")
		}
	})

	t.Run("show empty sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithShowEmpty(true))
		if _, err := w.Write(model.NewRunReport("https://example.com")); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		if !strings.Contains(output, "SKIPPED PAGES") || !strings.Contains(output, "None") {
			t.Errorf("expected empty sections\n%s", output)
		}
	})
}

func TestSimpleWriterDatabase(t *testing.T) {
	t.Parallel()

	t.Run("lists pages with mentions", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteDatabase(createTestView()); err != nil {
			t.Fatal(err)
		}

		output := buf.String()
		for _, want := range []string{
			"WEBMENTION DATABASE",
			"sqlite:///tmp/wm.db",
			"Mentions: 1",
			"https://example.com/a",
			"Last modified: 2024-01-02 15:04:05 UTC",
			"-> https://one.example/",
			"via https://one.example/wm",
			"HISTORY",
			"2 pages, 1 mentions",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "https://example.com/empty") {
			t.Error("page without mentions should be hidden")
		}
	})

	t.Run("show empty includes bare pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).WriteDatabase(createTestView()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "https://example.com/empty") {
			t.Error("expected bare page with show empty")
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report with counts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithVersion("v1.2.3"))
		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatal(err)
		}

		var got struct {
			Version string `json:"version"`
			Report  struct {
				Site     string `json:"site"`
				Outcomes []struct {
					Kind    string `json:"kind"`
					Message string `json:"message"`
				} `json:"outcomes"`
			} `json:"report"`
			Counts model.RunCounts `json:"counts"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if got.Version != "v1.2.3" || got.Report.Site != "https://example.com" {
			t.Errorf("got version %q site %q", got.Version, got.Report.Site)
		}
		if len(got.Report.Outcomes) != 3 || got.Report.Outcomes[0].Kind != "removal" {
			t.Errorf("outcomes = %+v", got.Report.Outcomes)
		}
		if got.Report.Outcomes[2].Message != "connection refused" {
			t.Errorf("message = %q", got.Report.Outcomes[2].Message)
		}
		if got.Counts.Additions != 1 || got.Counts.AdditionsFailed != 1 || got.Counts.Removals != 1 {
			t.Errorf("counts = %+v", got.Counts)
		}
	})

	t.Run("compact by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected single-line JSON")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\n  \"report\"") {
			t.Errorf("expected indented output\n%s", buf.String())
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">", "\t")).WriteDatabase(createTestView()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\n>\t\"database\"") {
			t.Errorf("expected prefixed tab indentation\n%s", buf.String())
		}
	})

	t.Run("database view", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteDatabase(createTestView()); err != nil {
			t.Fatal(err)
		}

		var got DatabaseView
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Location != "sqlite:///tmp/wm.db" || len(got.History) != 1 {
			t.Errorf("view = %+v", got)
		}
		if !got.Database.Equal(createTestView().Database) {
			t.Error("database did not survive encoding")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes run report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Webmention Run Report",
			"## Summary",
			"## Operations",
			"## Skipped Pages",
			"```mermaid",
			"Notification Results",
			"Addition",
			"Removal",
			"connection refused",
			"will be retried next run",
			"wmsender",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("dry run lists planned operations", func(t *testing.T) {
		t.Parallel()

		report := model.NewRunReport("https://example.com")
		report.DryRun = true
		report.Plan.Removals = []model.Operation{{Source: "https://example.com/a", Target: "https://t.example/", Endpoint: "https://t.example/wm"}}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		if !strings.Contains(output, "planned") || !strings.Contains(output, "Dry run") {
			t.Errorf("expected planned removal and dry run note\n%s", output)
		}
		if strings.Contains(output, "```mermaid") {
			t.Error("no chart expected without outcomes")
		}
	})

	t.Run("empty run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(model.NewRunReport("https://example.com")); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "Nothing to do.") {
			t.Error("expected empty operations text")
		}
	})

	t.Run("writes database", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteDatabase(createTestView()); err != nil {
			t.Fatal(err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Webmention Database",
			"### https://example.com/a",
			"https://one.example/wm",
			"No mentions.",
			"## History",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	m := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

	n, err := m.Write(createTestReport())
	if err != nil {
		t.Fatal(err)
	}
	if n != text.Len()+js.Len() {
		t.Errorf("n = %d, want %d", n, text.Len()+js.Len())
	}
	if !strings.Contains(text.String(), "WEBMENTION RUN REPORT") || !json.Valid(js.Bytes()) {
		t.Error("expected both writers to receive the report")
	}

	text.Reset()
	js.Reset()
	if _, err := m.WriteDatabase(createTestView()); err != nil {
		t.Fatal(err)
	}
	if text.Len() == 0 || js.Len() == 0 {
		t.Error("expected both writers to receive the database")
	}
}

func TestMultiWriterStopsOnError(t *testing.T) {
	t.Parallel()

	var after bytes.Buffer
	m := NewMultiWriter(NewSimpleWriter(failingWriter{}), NewSimpleWriter(&after))
	if _, err := m.Write(createTestReport()); err == nil {
		t.Fatal("expected error")
	}
	if after.Len() != 0 {
		t.Error("second writer should not run after an error")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{input: "short", maxLen: 10, want: "short"},
		{input: "exactly10!", maxLen: 10, want: "exactly10!"},
		{input: "this is too long", maxLen: 10, want: "this is..."},
		{input: "abcdef", maxLen: 3, want: "abc"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
