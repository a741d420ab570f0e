package model

import (
	"fmt"
	"math"
)

// sizeUnits are the magnitudes used by FormatSize, smallest first.
// PB is terminal and has no upper bound.
var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// unknownSize is displayed for sizes that were not reported.
const unknownSize = "Unknown"

// FormatSize converts a byte count into a human readable string with one
// decimal place, using the largest unit whose displayed magnitude stays
// below 1024. The magnitude is compared after rounding, so 1048575 bytes is
// "1.0 MB" and not "1024.0 KB".
//
//	FormatSize(512)     == "512.0 B"
//	FormatSize(1536)    == "1.5 KB"
//	FormatSize(1 << 60) == "1024.0 PB"
func FormatSize(size int64) string {
	value := float64(size)
	for _, unit := range sizeUnits {
		if math.Round(value*10)/10 < 1024.0 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%.1f PB", value)
}

// DisplaySize is FormatSize for result listings: a size of zero or less
// means the size was never known and is shown as "Unknown".
func DisplaySize(size int64) string {
	if size <= 0 {
		return unknownSize
	}
	return FormatSize(size)
}
