package model

import (
	"sort"
	"strings"
	"time"
)

// CrawlSession is a snapshot of one crawl session: the seed, the run state
// and every discovery record in insertion order. It is what gets persisted
// and rendered into reports.
type CrawlSession struct {
	// ID uniquely identifies the session.
	ID string `json:"id"`

	// Seed is the normalized seed address of the last run.
	Seed string `json:"seed"`

	// State is the engine state when the snapshot was taken.
	State string `json:"state"`

	// StartedAt is when the first run of the session started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last run ended. Zero while running.
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Diagnostic holds the message of an unexpected failure, if any.
	Diagnostic string `json:"diagnostic,omitempty"`

	// Records are the discovery records in the order they were fetched.
	Records []DiscoveryRecord `json:"records"`
}

// SortKey selects the column records are sorted by.
type SortKey string

// Sort keys.
const (
	// SortNone keeps fetch order.
	SortNone SortKey = ""

	// SortByCategory orders by category label.
	SortByCategory SortKey = "type"

	// SortBySize orders by byte size.
	SortBySize SortKey = "size"
)

// ParseSortKey converts a flag value into a SortKey.
func ParseSortKey(s string) (SortKey, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return SortNone, true
	case "type", "category":
		return SortByCategory, true
	case "size":
		return SortBySize, true
	default:
		return SortNone, false
	}
}

// Sorted returns a copy of the records ordered by key. The sort is stable,
// so records with equal keys keep their fetch order.
func (s *CrawlSession) Sorted(key SortKey, reverse bool) []DiscoveryRecord {
	out := make([]DiscoveryRecord, len(s.Records))
	copy(out, s.Records)

	var less func(a, b DiscoveryRecord) bool
	switch key {
	case SortByCategory:
		less = func(a, b DiscoveryRecord) bool { return a.Category < b.Category }
	case SortBySize:
		less = func(a, b DiscoveryRecord) bool { return a.ByteSize < b.ByteSize }
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		if reverse {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// CategoryCounts returns how many records fall into each category.
func (s *CrawlSession) CategoryCounts() map[Category]int {
	counts := make(map[Category]int)
	for _, r := range s.Records {
		counts[r.Category]++
	}
	return counts
}

// TotalBytes sums the sizes of all records.
func (s *CrawlSession) TotalBytes() int64 {
	var total int64
	for _, r := range s.Records {
		total += r.ByteSize
	}
	return total
}

// Downloadable returns the addresses of non-error records, in fetch order.
// When categories is non-empty only those categories are selected.
func (s *CrawlSession) Downloadable(categories ...Category) []string {
	want := make(map[Category]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}

	out := make([]string, 0, len(s.Records))
	for _, r := range s.Records {
		if !r.Category.Downloadable() {
			continue
		}
		if len(want) > 0 && !want[r.Category] {
			continue
		}
		out = append(out, r.Address)
	}
	return out
}

// Addresses returns every record address joined by newlines, the format
// used when copying a selection.
func (s *CrawlSession) Addresses() string {
	lines := make([]string, len(s.Records))
	for i, r := range s.Records {
		lines[i] = r.Address
	}
	return strings.Join(lines, "\n")
}

// ParseCategories converts a comma separated list such as "image,pdf" into
// categories. Matching is case-insensitive; unknown names are returned in bad.
func ParseCategories(list string) (cats []Category, bad []string) {
	for _, part := range strings.Split(list, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		found := false
		for _, c := range Categories() {
			if strings.EqualFold(string(c), name) || (strings.EqualFold(name, "js") && c == CategoryJavaScript) {
				cats = append(cats, c)
				found = true
				break
			}
		}
		if !found {
			bad = append(bad, name)
		}
	}
	return cats, bad
}
