package inspect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// DefaultMaxFileSize limits how much of a file is read looking for EXIF data.
const DefaultMaxFileSize = 5 * 1024 * 1024

// ErrNoMetadata is returned when a file carries no EXIF block.
var ErrNoMetadata = errors.New("no EXIF metadata found")

// candidatePattern matches the file extensions of formats that carry EXIF.
var candidatePattern = regexp.MustCompile(`(?i)\.(jpe?g|tiff?|heic)$`)

// Group classifies an EXIF tag by what it reveals.
type Group string

// Tag groups.
const (
	GroupGPS      Group = "gps"
	GroupCamera   Group = "camera"
	GroupSerial   Group = "serial"
	GroupSoftware Group = "software"
	GroupAuthor   Group = "author"
	GroupDateTime Group = "datetime"
	GroupComputer Group = "computer"
)

// Sensitive reports whether tags of the group identify a place or a person.
func (g Group) Sensitive() bool {
	return g == GroupGPS || g == GroupSerial || g == GroupAuthor
}

// tagGroups maps the EXIF tag names we report to their group.
var tagGroups = map[string]Group{
	"GPSLatitude":        GroupGPS,
	"GPSLongitude":       GroupGPS,
	"GPSLatitudeRef":     GroupGPS,
	"GPSLongitudeRef":    GroupGPS,
	"GPSAltitude":        GroupGPS,
	"Make":               GroupCamera,
	"Model":              GroupCamera,
	"LensModel":          GroupCamera,
	"SerialNumber":       GroupSerial,
	"CameraSerialNumber": GroupSerial,
	"BodySerialNumber":   GroupSerial,
	"LensSerialNumber":   GroupSerial,
	"Software":           GroupSoftware,
	"ProcessingSoftware": GroupSoftware,
	"Artist":             GroupAuthor,
	"Author":             GroupAuthor,
	"Copyright":          GroupAuthor,
	"XPAuthor":           GroupAuthor,
	"DateTimeOriginal":   GroupDateTime,
	"DateTimeDigitized":  GroupDateTime,
	"DateTime":           GroupDateTime,
	"HostComputer":       GroupComputer,
}

// Tag is one reported EXIF entry.
type Tag struct {
	Group Group  `json:"group"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// String renders the tag as "Name: value".
func (t Tag) String() string {
	return t.Name + ": " + t.Value
}

// Result is the inspection outcome for one file.
type Result struct {
	Path string `json:"path"`
	Tags []Tag  `json:"tags"`
}

// Sensitive returns the tags that identify a place or a person.
func (r Result) Sensitive() []Tag {
	out := make([]Tag, 0, len(r.Tags))
	for _, t := range r.Tags {
		if t.Group.Sensitive() {
			out = append(out, t)
		}
	}
	return out
}

// IsCandidate reports whether the file name has an extension of a format
// that can carry EXIF metadata.
func IsCandidate(path string) bool {
	return candidatePattern.MatchString(filepath.Ext(path))
}

// Inspect extracts the reported tags from raw file bytes. Duplicate
// entries (the same tag in several IFDs) are reported once.
func Inspect(data []byte) ([]Tag, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil, ErrNoMetadata
		}
		return nil, fmt.Errorf("failed to locate EXIF block: %w", err)
	}
	if rawExif == nil {
		return nil, ErrNoMetadata
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EXIF data: %w", err)
	}

	tags := make([]Tag, 0)
	seen := make(map[string]bool)
	for _, entry := range entries {
		group, ok := tagGroups[entry.TagName]
		if !ok {
			continue
		}
		value := strings.TrimSpace(entry.Formatted)
		key := entry.TagName + "\x00" + value
		if value == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, Tag{Group: group, Name: entry.TagName, Value: value})
	}
	return tags, nil
}

// InspectFile reads up to maxSize bytes of the file at path and inspects
// them. A maxSize of 0 or less uses DefaultMaxFileSize.
func InspectFile(path string, maxSize int64) (*Result, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	f, err := os.Open(path) //nolint:gosec // path comes from the download destination
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	tags, err := Inspect(data)
	if err != nil {
		return nil, err
	}
	return &Result{Path: path, Tags: tags}, nil
}
