package download

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/sitegrab/internal/model"
)

// defaultFileName is used when the address path has no usable last segment.
const defaultFileName = "index.html"

var invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// FileNameFromAddress derives a file name from the last path segment of address.
func FileNameFromAddress(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return defaultFileName
	}
	name := sanitizeFileName(path.Base(u.Path))
	if name == "" || name == "." || name == ".." || name == "/" {
		return defaultFileName
	}
	return name
}

// sanitizeFileName replaces characters that are invalid in file names and
// trims trailing dots and spaces.
func sanitizeFileName(name string) string {
	name = invalidFileChars.ReplaceAllString(name, "_")
	name = strings.TrimRight(name, ". ")
	return name
}

// resolver assigns a unique destination to every item of one batch.
type resolver struct {
	now      func() time.Time
	exists   func(path string) bool
	reserved map[string]struct{}
}

func newResolver(now func() time.Time) *resolver {
	return &resolver{
		now:      now,
		exists:   fileExists,
		reserved: make(map[string]struct{}),
	}
}

// resolve returns the destination of item. An explicit destination is kept
// as is. A derived name that is taken on disk or by an earlier item becomes
// name_<unix>ext, then name_<unix>_<n>ext.
func (r *resolver) resolve(dir string, item model.DownloadItem) string {
	if item.DestinationPath != "" {
		r.reserved[item.DestinationPath] = struct{}{}
		return item.DestinationPath
	}

	name := FileNameFromAddress(item.Address)
	candidate := filepath.Join(dir, name)
	if !r.taken(candidate) {
		r.reserved[candidate] = struct{}{}
		return candidate
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamp := strconv.FormatInt(r.now().Unix(), 10)

	candidate = filepath.Join(dir, stem+"_"+stamp+ext)
	for n := 1; r.taken(candidate); n++ {
		candidate = filepath.Join(dir, stem+"_"+stamp+"_"+strconv.Itoa(n)+ext)
	}
	r.reserved[candidate] = struct{}{}
	return candidate
}

func (r *resolver) taken(path string) bool {
	if _, ok := r.reserved[path]; ok {
		return true
	}
	return r.exists(path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ResolveDestinations returns items with every destination filled in, as
// the manager would place them under dir at time now.
func ResolveDestinations(dir string, items []model.DownloadItem, now time.Time) []model.DownloadItem {
	r := newResolver(func() time.Time { return now })
	out := make([]model.DownloadItem, len(items))
	for i, item := range items {
		out[i] = model.DownloadItem{
			Address:         item.Address,
			DestinationPath: r.resolve(dir, item),
		}
	}
	return out
}
