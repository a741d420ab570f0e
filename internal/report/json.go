package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/sitegrab/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...Option) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output, opts)}
}

// JSONReport wraps a session with a computed summary.
//
// Design decision: We wrap the session rather than adding fields to
// CrawlSession because the summary is derived data that would otherwise
// be stored twice.
type JSONReport struct {
	// Version is the sitegrab version that generated this report.
	Version string `json:"version,omitempty"`

	// GeneratedAt is when the report was written.
	GeneratedAt time.Time `json:"generated_at"`

	// Summary holds the per-category counts and total size.
	Summary JSONSummary `json:"summary"`

	// Session is the crawl session with records in display order.
	Session *model.CrawlSession `json:"session"`
}

// JSONSummary is the aggregate part of a JSON report.
type JSONSummary struct {
	Resources  int                    `json:"resources"`
	TotalBytes int64                  `json:"total_bytes"`
	Categories map[model.Category]int `json:"categories"`
	Errors     int                    `json:"errors"`
}

// NewJSONReport creates a JSONReport for session with records ordered as given.
func NewJSONReport(session *model.CrawlSession, records []model.DiscoveryRecord, version string) *JSONReport {
	view := *session
	view.Records = records
	return &JSONReport{
		Version:     version,
		GeneratedAt: time.Now().UTC(),
		Summary: JSONSummary{
			Resources:  len(records),
			TotalBytes: session.TotalBytes(),
			Categories: session.CategoryCounts(),
			Errors:     errorCount(session),
		},
		Session: &view,
	}
}

// Write outputs the session report in JSON format.
func (w *JSONWriter) Write(session *model.CrawlSession) (int, error) {
	return w.writeJSON(NewJSONReport(session, w.records(session), w.version))
}

// WriteDiff outputs the session diff in JSON format.
func (w *JSONWriter) WriteDiff(diff *model.SessionDiff) (int, error) {
	return w.writeJSON(diff)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.prettyPrint {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
