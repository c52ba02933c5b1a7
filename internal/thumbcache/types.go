package thumbcache

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies the state of a source media file at the time its
// thumbnails were cached.
type Fingerprint struct {
	ByteSize   uint64
	ModifiedAt int64 // unix seconds
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("size=%d mtime=%d", f.ByteSize, f.ModifiedAt)
}

// Key addresses one cache file. Files for the same source at different
// widths are independent.
type Key struct {
	ContentKey string
	PixelWidth int
}

// NewKey derives the cache key for a source path and thumbnail width.
func NewKey(sourcePath string, pixelWidth int) Key {
	return Key{ContentKey: ContentKey(sourcePath), PixelWidth: pixelWidth}
}

// ContentKey returns the stable hash of a source path used as its cache
// file name.
func ContentKey(sourcePath string) string {
	sum := blake2b.Sum256([]byte(filepath.Clean(sourcePath)))
	return hex.EncodeToString(sum[:16])
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%dpx", k.ContentKey, k.PixelWidth)
}

// Record is a single thumbnail: the playback position it was taken at and
// its compressed still image. Width and Height are filled in when the
// payload is decoded and are not stored on disk.
type Record struct {
	Timestamp float64
	Image     []byte
	Width     int
	Height    int
}

// CacheFile is the decoded content of one cache file.
type CacheFile struct {
	Version     uint8
	Fingerprint Fingerprint
	Records     []Record
}

// PayloadDecoder inspects an image payload without fully decoding it.
// Implementations live outside this package (see internal/media).
type PayloadDecoder interface {
	DecodeConfig(payload []byte) (width, height int, err error)
}

// QuotaManager owns cache-wide size accounting and eviction policy.
type QuotaManager interface {
	CurrentSizeBytes() uint64
	EvictOldest() error
}

// StaleMarker is implemented by quota managers that cache their size total
// and need to be told when the Store has added a file.
type StaleMarker interface {
	MarkStale()
}
