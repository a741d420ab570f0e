package download

import (
	"fmt"
	"io"

	"github.com/nao1215/sitegrab/internal/model"
)

// EventKind distinguishes the events of a batch.
type EventKind int

const (
	// EventItemStarted is posted before the request of an item is sent.
	EventItemStarted EventKind = iota

	// EventProgress is posted after every chunk written to disk.
	EventProgress

	// EventItemDone is posted when an item succeeded, failed or was cancelled.
	EventItemDone

	// EventCompleted is the last event of a batch and carries the record.
	EventCompleted
)

// Event is one progress notification of a batch.
type Event struct {
	Kind EventKind

	// Index is the zero-based item position and Total the batch size.
	Index int
	Total int

	// Name is the destination file name of the item.
	Name string

	// Written is the number of bytes written so far.
	Written int64

	// Size is the expected item size or model.UnknownTotal.
	Size int64

	// Status and Err are set on EventItemDone.
	Status model.ItemStatus
	Err    error

	// Completion is set on EventCompleted.
	Completion *model.CompletionRecord
}

// Percent returns the item completion percentage. ok is false when the total
// size is unknown and only the byte count can be shown.
func (e Event) Percent() (percent float64, ok bool) {
	if e.Size <= 0 {
		return 0, false
	}
	return float64(e.Written) / float64(e.Size) * 100, true
}

// StatusText renders the per-item status line of the event.
func (e Event) StatusText() string {
	return StatusText(e.Written, e.Size)
}

// StatusText renders "Downloaded X" when total is unknown and
// "Downloaded X of Y (P%)" otherwise.
func StatusText(written, total int64) string {
	if total <= 0 {
		return "Downloaded " + model.FormatSize(written)
	}
	percent := float64(written) / float64(total) * 100
	return fmt.Sprintf("Downloaded %s of %s (%.1f%%)",
		model.FormatSize(written), model.FormatSize(total), percent)
}

// progressWriter counts the bytes written through it and reports every write.
type progressWriter struct {
	Writer   io.Writer
	Total    int64
	Written  int64
	OnUpdate func(written, total int64)
}

// Write implements io.Writer.
func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil && n > 0 {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}
