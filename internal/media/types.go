package media

import (
	"path/filepath"
	"strings"
)

// videoExtensions lists the containers ffmpeg is asked to thumbnail.
var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// IsVideoFile reports whether path has a recognised video extension.
func IsVideoFile(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// VideoMimeType returns the MIME type for a video path, or "" when the
// extension is not recognised.
func VideoMimeType(path string) string {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}
