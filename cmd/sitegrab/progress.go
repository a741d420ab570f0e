package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/nao1215/sitegrab/internal/download"
	"github.com/nao1215/sitegrab/internal/model"
)

// progressThrottle limits bar redraws for fast local transfers.
const progressThrottle = 65 * time.Millisecond

// progressView renders download events as one progress bar per item.
// In quiet mode only the final status line of each item is printed.
type progressView struct {
	out   io.Writer
	quiet bool
	bar   *progressbar.ProgressBar
}

func newProgressView(out io.Writer, quiet bool) *progressView {
	return &progressView{out: out, quiet: quiet}
}

// handle consumes one event. It must be called from a single goroutine.
func (v *progressView) handle(ev download.Event) {
	switch ev.Kind {
	case download.EventItemStarted:
		if v.quiet {
			return
		}
		v.bar = newItemBar(v.out, ev)
	case download.EventProgress:
		if v.bar == nil {
			return
		}
		if ev.Size > 0 && v.bar.GetMax64() != ev.Size {
			v.bar.ChangeMax64(ev.Size)
		}
		_ = v.bar.Set64(ev.Written) //nolint:errcheck // Rendering errors are not actionable
	case download.EventItemDone:
		v.finishBar(ev)
		fmt.Fprintf(v.out, "[%d/%d] %s: %s\n", ev.Index+1, ev.Total, ev.Name, itemStatusLine(ev))
	case download.EventCompleted:
	}
}

func (v *progressView) finishBar(ev download.Event) {
	if v.bar == nil {
		return
	}
	if ev.Status == model.ItemSucceeded {
		_ = v.bar.Finish() //nolint:errcheck // Rendering errors are not actionable
	} else {
		_ = v.bar.Exit() //nolint:errcheck // Rendering errors are not actionable
	}
	fmt.Fprintln(v.out)
	v.bar = nil
}

// newItemBar creates a byte progress bar for one item. An unknown size
// gives a spinner.
func newItemBar(out io.Writer, ev download.Event) *progressbar.ProgressBar {
	size := ev.Size
	if size <= 0 {
		size = -1
	}
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(fmt.Sprintf("[%d/%d] %s", ev.Index+1, ev.Total, ev.Name)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(progressThrottle),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// itemStatusLine renders the final line of an item.
func itemStatusLine(ev download.Event) string {
	switch ev.Status {
	case model.ItemSucceeded:
		return ev.StatusText()
	case model.ItemCancelled:
		return "cancelled"
	default:
		if ev.Err != nil {
			return "failed: " + ev.Err.Error()
		}
		return "failed"
	}
}
