package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitegrab/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with one row per record
// and a per-category summary.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because it pipes cleanly into files and other tools.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...Option) *SimpleWriter {
	return &SimpleWriter{baseWriter: newBaseWriter(output, opts)}
}

// Write outputs the session in human-readable format.
func (w *SimpleWriter) Write(session *model.CrawlSession) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, session)
	w.writeSummary(&sb, session)
	w.writeRecords(&sb, session)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with session information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, session *model.CrawlSession) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          SITEGRAB REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:       %s\n", session.Seed)
	fmt.Fprintf(sb, "Session:    %s\n", session.ID)
	if !session.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:    %s\n", session.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if d := duration(session); d > 0 {
		fmt.Fprintf(sb, "Duration:   %s\n", d)
	}
	fmt.Fprintf(sb, "State:      %s\n", session.State)
	if session.Diagnostic != "" {
		fmt.Fprintf(sb, "Diagnostic: %s\n", session.Diagnostic)
	}
	sb.WriteString("\n")
}

// writeSummary writes the category summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, session *model.CrawlSession) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CATEGORY SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	counts := session.CategoryCounts()
	for _, c := range model.Categories() {
		if counts[c] == 0 && !w.verbose {
			continue
		}
		fmt.Fprintf(sb, "  %-11s %d\n", strings.ToUpper(c.String())+":", counts[c])
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:      %d resources, %s\n", len(session.Records), model.FormatSize(session.TotalBytes()))
	sb.WriteString("\n")
}

// writeRecords writes one row per discovery record.
func (w *SimpleWriter) writeRecords(sb *strings.Builder, session *model.CrawlSession) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RESOURCES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(session.Records) == 0 {
		sb.WriteString("  No resources discovered\n\n")
		return
	}

	fmt.Fprintf(sb, "  %-10s  %-10s  %s\n", "Type", "Size", "Address")
	for _, r := range w.records(session) {
		fmt.Fprintf(sb, "  %-10s  %-10s  %s\n", r.Category, r.SizeDisplay(), r.Address)
		if w.verbose && r.RawContentType != "" {
			fmt.Fprintf(sb, "  %-10s  %-10s  (%s)\n", "", "", r.RawContentType)
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitegrab")
	if w.version != "" {
		sb.WriteString(" " + w.version)
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteDiff outputs a session comparison in human-readable format.
func (w *SimpleWriter) WriteDiff(diff *model.SessionDiff) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Session Comparison: %s -> %s\n", diff.PreviousID, diff.CurrentID)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	if diff.Empty() {
		fmt.Fprintf(&sb, "\nNo differences (%d resources unchanged)\n", diff.UnchangedCount)
		return w.output.Write([]byte(sb.String()))
	}

	if len(diff.CountDelta) > 0 {
		sb.WriteString("\nCategory Changes:\n")
		for _, c := range model.Categories() {
			if delta, ok := diff.CountDelta[c]; ok {
				fmt.Fprintf(&sb, "  %-10s  %s\n", c, formatDelta(delta))
			}
		}
	}

	if len(diff.Added) > 0 {
		fmt.Fprintf(&sb, "\nAdded (%d):\n", len(diff.Added))
		for _, r := range diff.Added {
			fmt.Fprintf(&sb, "  [+] [%s] %s\n", r.Category, r.Address)
		}
	}
	if len(diff.Removed) > 0 {
		fmt.Fprintf(&sb, "\nRemoved (%d):\n", len(diff.Removed))
		for _, r := range diff.Removed {
			fmt.Fprintf(&sb, "  [-] [%s] %s\n", r.Category, r.Address)
		}
	}
	if len(diff.Changed) > 0 {
		fmt.Fprintf(&sb, "\nChanged (%d):\n", len(diff.Changed))
		for _, c := range diff.Changed {
			fmt.Fprintf(&sb, "  [~] %s: %s %s -> %s %s\n", c.Address,
				c.PreviousType, model.DisplaySize(c.PreviousSize),
				c.CurrentType, model.DisplaySize(c.CurrentSize))
		}
	}
	if diff.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d resources\n", diff.UnchangedCount)
	}

	return w.output.Write([]byte(sb.String()))
}
