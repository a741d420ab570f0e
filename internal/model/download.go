package model

import (
	"fmt"
	"path/filepath"
)

// UnknownTotal is the total size reported when the server did not send a
// Content-Length. Progress is then shown as bytes downloaded only.
const UnknownTotal int64 = -1

// DownloadItem is one entry of a download batch.
// DestinationPath is optional; when empty the download manager derives a
// file name from the address and places it in the batch directory.
type DownloadItem struct {
	// Address is the absolute URL to download.
	Address string `json:"address"`

	// DestinationPath is an explicit target file path.
	DestinationPath string `json:"destination_path,omitempty"`
}

// NewDownloadItems builds items without explicit destinations.
func NewDownloadItems(addresses ...string) []DownloadItem {
	items := make([]DownloadItem, 0, len(addresses))
	for _, addr := range addresses {
		items = append(items, DownloadItem{Address: addr})
	}
	return items
}

// ItemStatus is the final state of a single download item.
type ItemStatus string

// Item statuses.
const (
	// ItemSucceeded means the whole body was written to disk.
	ItemSucceeded ItemStatus = "succeeded"

	// ItemFailed means a transport or filesystem error ended the item.
	ItemFailed ItemStatus = "failed"

	// ItemCancelled means the batch was cancelled while this item was in flight.
	ItemCancelled ItemStatus = "cancelled"
)

// ItemResult records what happened to one attempted download item.
type ItemResult struct {
	// Index is the position of the item in the batch.
	Index int `json:"index"`

	// Address is the source URL.
	Address string `json:"address"`

	// Path is the resolved destination path.
	Path string `json:"path"`

	// Status is the final state of the item.
	Status ItemStatus `json:"status"`

	// Bytes is the number of bytes written before the item ended.
	Bytes int64 `json:"bytes"`

	// Digest is the hex encoded SHA3-256 of the saved file. Empty unless succeeded.
	Digest string `json:"digest,omitempty"`

	// Error is the failure description for failed items.
	Error string `json:"error,omitempty"`
}

// Name returns the file name shown to the user for this item.
func (r ItemResult) Name() string {
	return filepath.Base(r.Path)
}

// CompletionRecord is the outcome of a download batch.
type CompletionRecord struct {
	// Total is the number of items in the batch.
	Total int `json:"total"`

	// Succeeded holds the file names of items saved successfully, in input order.
	Succeeded []string `json:"succeeded"`

	// Failed holds the file names of items that failed, in input order.
	Failed []string `json:"failed"`

	// Cancelled is true when the batch stopped because of a cancellation request.
	// The item in flight at that moment is in neither Succeeded nor Failed.
	Cancelled bool `json:"cancelled"`

	// LastIndex is the index of the last item the worker reached, or -1 when
	// no item was reached.
	LastIndex int `json:"last_index"`

	// Directory is the batch target directory.
	Directory string `json:"directory"`

	// Results holds one entry per attempted item.
	Results []ItemResult `json:"results"`
}

// NewCompletionRecord returns an empty record for a batch of total items.
func NewCompletionRecord(total int, dir string) *CompletionRecord {
	return &CompletionRecord{
		Total:     total,
		Succeeded: make([]string, 0),
		Failed:    make([]string, 0),
		LastIndex: -1,
		Directory: dir,
		Results:   make([]ItemResult, 0, total),
	}
}

// Add appends an item result and updates the name lists.
func (c *CompletionRecord) Add(result ItemResult) {
	c.Results = append(c.Results, result)
	switch result.Status {
	case ItemSucceeded:
		c.Succeeded = append(c.Succeeded, result.Name())
	case ItemFailed:
		c.Failed = append(c.Failed, result.Name())
	case ItemCancelled:
		c.Cancelled = true
	}
}

// AllSucceeded reports whether every item of the batch was saved.
func (c *CompletionRecord) AllSucceeded() bool {
	return !c.Cancelled && len(c.Failed) == 0 && len(c.Succeeded) == c.Total
}

// Title returns the heading shown when the batch ends.
func (c *CompletionRecord) Title() string {
	if c.Cancelled {
		return "Download Cancelled"
	}
	return "Download Complete"
}

// Message renders one of the three completion messages:
// cancelled, all succeeded, or succeeded/failed counts.
func (c *CompletionRecord) Message() string {
	switch {
	case c.Cancelled:
		return fmt.Sprintf("Download cancelled: %d of %d file(s) downloaded before cancellation.",
			len(c.Succeeded), c.Total)
	case c.AllSucceeded() && c.Total == 1:
		return "Download complete: file saved to " + c.Results[0].Path
	case c.AllSucceeded():
		return fmt.Sprintf("Download complete: %d file(s) saved to %s", c.Total, c.Directory)
	default:
		return fmt.Sprintf("Download complete: %d succeeded, %d failed", len(c.Succeeded), len(c.Failed))
	}
}
