package model

import "time"

// Category is the kind of resource a fetch produced.
// The set is closed; Classify in the crawler package is the only producer.
type Category string

// Resource categories.
const (
	// CategoryHTML is a text/html document. Only HTML is parsed for links.
	CategoryHTML Category = "HTML"

	// CategoryImage is any image/* response.
	CategoryImage Category = "Image"

	// CategoryCSS is a text/css stylesheet.
	CategoryCSS Category = "CSS"

	// CategoryJavaScript is any response whose content type mentions javascript.
	CategoryJavaScript Category = "JavaScript"

	// CategoryPDF is an application/pdf document.
	CategoryPDF Category = "PDF"

	// CategoryOther is every successful response not matched above.
	CategoryOther Category = "Other"

	// CategoryError marks a fetch attempt that failed at the transport level.
	CategoryError Category = "Error"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategoryHTML,
		CategoryImage,
		CategoryCSS,
		CategoryJavaScript,
		CategoryPDF,
		CategoryOther,
		CategoryError,
	}
}

// String returns the display label of the category.
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Downloadable reports whether resources of this category can be downloaded.
// Error records have no content behind them.
func (c Category) Downloadable() bool {
	return c != CategoryError && c != ""
}

// DiscoveryRecord is the outcome of one fetch attempt during a crawl.
// A record is created once per attempt, success or failure, and is never
// modified afterwards.
type DiscoveryRecord struct {
	// Address is the normalized absolute URL that was fetched.
	Address string `json:"address"`

	// Category is the classification of the response.
	Category Category `json:"category"`

	// ByteSize is the length of the response body in bytes.
	// It is 0 for Error records and for empty bodies.
	ByteSize int64 `json:"byte_size"`

	// RawContentType is the Content-Type header as received, lowercased.
	// For Error records it carries the error description instead.
	RawContentType string `json:"raw_content_type"`

	// DiscoveredAt is the time the fetch attempt completed.
	DiscoveredAt time.Time `json:"discovered_at"`
}

// IsError reports whether the record describes a failed fetch.
func (r DiscoveryRecord) IsError() bool {
	return r.Category == CategoryError
}

// SizeDisplay returns the human readable size shown next to the record.
func (r DiscoveryRecord) SizeDisplay() string {
	return DisplaySize(r.ByteSize)
}
