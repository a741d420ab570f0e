package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/sitegrab/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl sessions in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the session report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(session *model.CrawlSession) (int, error)

	// WriteDiff outputs the differences between two sessions.
	WriteDiff(diff *model.SessionDiff) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
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
func (m *MultiWriter) Write(session *model.CrawlSession) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(session)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteDiff outputs the diff to all configured Writers.
func (m *MultiWriter) WriteDiff(diff *model.SessionDiff) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDiff(diff)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Option configures a writer. Options a format has no use for are ignored.
type Option func(*settings)

// settings holds the view options shared by every writer.
type settings struct {
	sortKey     model.SortKey
	reverse     bool
	verbose     bool
	prettyPrint bool
	version     string
}

// WithSort orders records by key before rendering.
// Without it records keep their fetch order.
func WithSort(key model.SortKey, reverse bool) Option {
	return func(s *settings) {
		s.sortKey = key
		s.reverse = reverse
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) Option {
	return func(s *settings) {
		s.verbose = verbose
	}
}

// WithPrettyPrint enables indented JSON output.
func WithPrettyPrint() Option {
	return func(s *settings) {
		s.prettyPrint = true
	}
}

// WithVersion records the sitegrab version in reports that carry metadata.
func WithVersion(version string) Option {
	return func(s *settings) {
		s.version = version
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
	settings
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer, opts []Option) baseWriter {
	w := baseWriter{output: output}
	for _, opt := range opts {
		opt(&w.settings)
	}
	return w
}

// records returns the session records in display order.
func (b *baseWriter) records(session *model.CrawlSession) []model.DiscoveryRecord {
	return session.Sorted(b.sortKey, b.reverse)
}

// duration returns how long the session ran, or zero while it is running.
func duration(session *model.CrawlSession) time.Duration {
	if session.StartedAt.IsZero() || session.FinishedAt.IsZero() {
		return 0
	}
	return session.FinishedAt.Sub(session.StartedAt).Round(time.Millisecond)
}

// errorCount returns the number of failed fetches in the session.
func errorCount(session *model.CrawlSession) int {
	return session.CategoryCounts()[model.CategoryError]
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	switch {
	case delta > 0:
		return "+" + strconv.Itoa(delta)
	case delta < 0:
		return strconv.Itoa(delta)
	default:
		return "0"
	}
}
