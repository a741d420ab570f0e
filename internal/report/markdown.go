package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitegrab/internal/crawler"
	"github.com/nao1215/sitegrab/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...Option) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output, opts)}
}

// Write outputs the session report in Markdown format.
func (w *MarkdownWriter) Write(session *model.CrawlSession) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, session)
	w.writeSummary(md, session)
	w.writeRecords(md, session)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with session information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, session *model.CrawlSession) {
	md.H1("Sitegrab Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + session.Seed + "`"},
		{"Session", "`" + session.ID + "`"},
	}
	if !session.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", session.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if d := duration(session); d > 0 {
		rows = append(rows, []string{"Duration", d.String()})
	}
	rows = append(rows,
		[]string{"Resources", strconv.Itoa(len(session.Records))},
		[]string{"Total Size", model.FormatSize(session.TotalBytes())},
		[]string{"State", w.getStatusText(session)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on session state.
func (w *MarkdownWriter) getStatusText(session *model.CrawlSession) string {
	switch {
	case session.Diagnostic != "":
		return "❌ " + session.State + " - " + session.Diagnostic
	case session.State == crawler.StateStopped.String():
		return "⚠️ Stopped (partial results)"
	case session.State == crawler.StateFinished.String():
		return "✅ Finished"
	default:
		return session.State
	}
}

// writeSummary writes the category summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, session *model.CrawlSession) {
	md.H2("Category Summary")
	md.PlainText("")

	counts := session.CategoryCounts()
	rows := make([][]string, 0, len(model.Categories())+1)
	for _, c := range model.Categories() {
		if counts[c] == 0 {
			continue
		}
		rows = append(rows, []string{c.String(), strconv.Itoa(counts[c])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(len(session.Records)) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Category", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(session.Records) > 0 {
		w.writePieChart(md, counts)
	}

	w.writeAlert(md, session)
}

// writePieChart writes a mermaid pie chart for the category distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts map[model.Category]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Resource Categories"),
		piechart.WithShowData(true),
	)

	for _, c := range model.Categories() {
		if counts[c] > 0 {
			chart.LabelAndIntValue(c.String(), uint64(counts[c]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing how the crawl ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, session *model.CrawlSession) {
	errs := errorCount(session)
	switch {
	case session.Diagnostic != "":
		md.Cautionf("The crawl ended unexpectedly: %s", session.Diagnostic)
	case errs > 0:
		md.Warningf("%d resource(s) could not be fetched.", errs)
	case session.State == crawler.StateStopped.String():
		md.Importantf("The crawl was stopped after %d resource(s); results are partial.", len(session.Records))
	case len(session.Records) == 0:
		md.Note("No resources were discovered.")
	default:
		md.Tip("Every discovered resource was fetched successfully.")
	}
	md.PlainText("")
}

// writeRecords writes the resource table.
func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, session *model.CrawlSession) {
	md.H2("Resources")
	md.PlainText("")

	if len(session.Records) == 0 {
		md.PlainText("No resources discovered.")
		md.PlainText("")
		return
	}

	records := w.records(session)
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.Category.String(), r.SizeDisplay(), truncateString(r.Address, 100)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Type", "Size", "Address"},
		Rows:   rows,
	})
	md.PlainText("")

	// Failed fetches carry their error text in place of a content type.
	for _, r := range records {
		if r.IsError() && r.RawContentType != "" {
			md.Details(truncateString(r.Address, 60), r.RawContentType)
		}
	}
	md.PlainText("")
}

// WriteDiff outputs a session comparison in Markdown format.
func (w *MarkdownWriter) WriteDiff(diff *model.SessionDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Session Comparison")
	md.PlainText("")
	md.PlainTextf("`%s` → `%s`", diff.PreviousID, diff.CurrentID)
	md.PlainText("")

	if diff.Empty() {
		md.Tip(fmt.Sprintf("No differences. %d resource(s) unchanged.", diff.UnchangedCount))
		return len(md.String()), md.Build()
	}

	if len(diff.CountDelta) > 0 {
		rows := make([][]string, 0, len(diff.CountDelta))
		for _, c := range model.Categories() {
			if delta, ok := diff.CountDelta[c]; ok {
				rows = append(rows, []string{c.String(), formatDelta(delta)})
			}
		}
		md.H2("Category Changes")
		md.PlainText("")
		md.Table(markdown.TableSet{Header: []string{"Category", "Change"}, Rows: rows})
		md.PlainText("")
	}

	if len(diff.Added) > 0 {
		md.H2(fmt.Sprintf("Added (%d)", len(diff.Added)))
		md.PlainText("")
		items := make([]string, len(diff.Added))
		for i, r := range diff.Added {
			items[i] = "**[" + r.Category.String() + "]** " + r.Address
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if len(diff.Removed) > 0 {
		md.H2(fmt.Sprintf("Removed (%d)", len(diff.Removed)))
		md.PlainText("")
		items := make([]string, len(diff.Removed))
		for i, r := range diff.Removed {
			items[i] = "~~**[" + r.Category.String() + "]** " + r.Address + "~~"
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if len(diff.Changed) > 0 {
		md.H2(fmt.Sprintf("Changed (%d)", len(diff.Changed)))
		md.PlainText("")
		rows := make([][]string, len(diff.Changed))
		for i, c := range diff.Changed {
			rows[i] = []string{
				truncateString(c.Address, 80),
				c.PreviousType.String() + " " + model.DisplaySize(c.PreviousSize),
				c.CurrentType.String() + " " + model.DisplaySize(c.CurrentSize),
			}
		}
		md.Table(markdown.TableSet{Header: []string{"Address", "Previous", "Current"}, Rows: rows})
		md.PlainText("")
	}

	if diff.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d resource(s) unchanged*", diff.UnchangedCount)
	}

	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitegrab](https://github.com/nao1215/sitegrab)*")
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
