package thumbcache

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// jpegDecoder is a PayloadDecoder backed by the standard library codecs.
type jpegDecoder struct{}

func (jpegDecoder) DecodeConfig(payload []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func makeJPEG(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func makeRecords(t *testing.T, timestamps ...float64) []Record {
	t.Helper()
	records := make([]Record, len(timestamps))
	for i, ts := range timestamps {
		records[i] = Record{
			Timestamp: ts,
			Image:     makeJPEG(t, 16, 9, uint8(i*20)),
			Width:     16,
			Height:    9,
		}
	}
	return records
}
