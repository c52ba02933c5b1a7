package media

import (
	"bytes"
	"fmt"
	"image"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support

	"scrubthumbs/internal/logging"
)

var mediaLog = logging.Subsystem("media")

// DefaultJPEGQuality matches the compression used for cached thumbnails.
const DefaultJPEGQuality = 75

// ImageCodec adapts the image libraries to the opaque payloads stored in
// the thumbnail cache. It implements thumbcache.PayloadDecoder.
type ImageCodec struct {
	quality int
}

// NewImageCodec returns a codec that re-encodes rotated thumbnails as JPEG
// at the given quality (1-100).
func NewImageCodec(quality int) *ImageCodec {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &ImageCodec{quality: quality}
}

// DecodeConfig reads the dimensions of an image payload without decoding
// pixel data.
func (c *ImageCodec) DecodeConfig(payload []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Decode fully decodes an image payload.
func (c *ImageCodec) Decode(payload []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(payload))
}

// Encode compresses img as JPEG.
func (c *ImageCodec) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Rotate returns payload rotated clockwise by degrees, re-encoded as JPEG.
// degrees is snapped to the nearest quarter turn; a zero rotation returns
// the payload unchanged. libvips is used when initialised, imaging
// otherwise.
func (c *ImageCodec) Rotate(payload []byte, degrees int) ([]byte, error) {
	quarter := NormalizeRotation(degrees)
	if quarter == 0 {
		return payload, nil
	}

	if IsVipsAvailable() {
		out, err := rotateWithVips(payload, quarter, c.quality)
		if err == nil {
			return out, nil
		}
		mediaLog.Debug("vips rotation failed, falling back to imaging: %v", err)
	}

	img, err := c.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode thumbnail for rotation: %w", err)
	}

	var rotated image.Image
	switch quarter {
	case 90:
		rotated = imaging.Rotate270(img) // imaging turns counter-clockwise
	case 180:
		rotated = imaging.Rotate180(img)
	case 270:
		rotated = imaging.Rotate90(img)
	}
	return c.Encode(rotated)
}

// NormalizeRotation maps any angle to 0, 90, 180 or 270.
func NormalizeRotation(degrees int) int {
	d := ((degrees % 360) + 360) % 360
	return ((d + 45) / 90 % 4) * 90
}
