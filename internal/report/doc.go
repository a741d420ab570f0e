// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown documents with a category chart
//   - ListWriter: One address per line, the clipboard copy format
//
// Design decision: We separate report writing from the session data
// (which lives in the model package). Writers render a *model.CrawlSession
// snapshot or a *model.SessionDiff and never touch the crawler itself, so
// a stored session renders exactly like a live one.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
