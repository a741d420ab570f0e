package report

import (
	"io"
	"strings"

	"github.com/nao1215/sitegrab/internal/model"
)

// ListWriter outputs one address per line with no decoration, the format
// used when copying a selection of results or piping them to other tools.
type ListWriter struct {
	baseWriter

	// categories limits the output to these categories when non-empty.
	categories map[model.Category]bool
}

// NewListWriter creates a ListWriter. When categories are given only
// records of those categories are listed.
func NewListWriter(output io.Writer, categories []model.Category, opts ...Option) *ListWriter {
	w := &ListWriter{
		baseWriter: newBaseWriter(output, opts),
		categories: make(map[model.Category]bool, len(categories)),
	}
	for _, c := range categories {
		w.categories[c] = true
	}
	return w
}

// Write outputs the addresses of the session records.
func (w *ListWriter) Write(session *model.CrawlSession) (int, error) {
	var sb strings.Builder
	for _, r := range w.records(session) {
		if len(w.categories) > 0 && !w.categories[r.Category] {
			continue
		}
		sb.WriteString(r.Address)
		sb.WriteString("\n")
	}
	return w.output.Write([]byte(sb.String()))
}

// WriteDiff outputs changed addresses prefixed with +, - or ~.
func (w *ListWriter) WriteDiff(diff *model.SessionDiff) (int, error) {
	var sb strings.Builder
	for _, r := range diff.Added {
		sb.WriteString("+ " + r.Address + "\n")
	}
	for _, r := range diff.Removed {
		sb.WriteString("- " + r.Address + "\n")
	}
	for _, c := range diff.Changed {
		sb.WriteString("~ " + c.Address + "\n")
	}
	return w.output.Write([]byte(sb.String()))
}
