// Package inspect reads metadata that downloaded files carry about their
// origin.
//
// Images often keep EXIF tags written by the camera or editing software:
// GPS coordinates, device serial numbers, author names and timestamps.
// InspectFile extracts the tags worth showing to the user so that a
// downloaded batch can be reviewed before it is shared further.
//
// Design decision: We use github.com/dsoprea/go-exif/v3 because it finds
// the EXIF block inside JPEG, TIFF and HEIC containers without decoding
// the image itself.
package inspect
