package session

import (
	"fmt"
	"math"
	"strings"
)

// SizeMode selects how the thumbnail pixel width is derived from the
// source video.
type SizeMode string

const (
	// SizeFixed scales the longer video axis to a fixed length.
	SizeFixed SizeMode = "fixed"
	// SizePercent scales the native width by a percentage.
	SizePercent SizeMode = "percent"
)

// ParseSizeMode accepts "fixed" or "percent", case-insensitively.
func ParseSizeMode(s string) (SizeMode, error) {
	switch SizeMode(strings.ToLower(strings.TrimSpace(s))) {
	case SizeFixed:
		return SizeFixed, nil
	case SizePercent:
		return SizePercent, nil
	}
	return "", fmt.Errorf("unknown thumbnail size mode %q", s)
}

// ThumbnailWidth returns the pixel width thumbnails of a videoWidth x
// videoHeight source are generated at. The longer axis is never upscaled
// beyond its native size. The result is at least 1 for a non-empty video.
func ThumbnailWidth(videoWidth, videoHeight int, opts Options) int {
	if videoWidth <= 0 || videoHeight <= 0 {
		return 0
	}

	var width int
	switch opts.SizeMode {
	case SizePercent:
		pct := math.Max(0, math.Min(100, opts.RawSizePercent))
		width = int(math.Round(float64(videoWidth) * pct / 100))
	default:
		length := opts.FixedLength
		if videoHeight > videoWidth {
			if length > videoHeight {
				width = videoWidth
			} else {
				width = int(math.Round(float64(length) * float64(videoWidth) / float64(videoHeight)))
			}
		} else {
			if length > videoWidth {
				width = videoWidth
			} else {
				width = length
			}
		}
	}

	if width < 1 {
		width = 1
	}
	return width
}
