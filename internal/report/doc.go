// Package report renders run reports and stored databases for operators.
//
// Three formats are available: SimpleWriter (plain text for terminals),
// JSONWriter (for tooling) and MarkdownWriter (for sharing). All of them
// implement Writer, and MultiWriter fans a report out to several writers.
package report
