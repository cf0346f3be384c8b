package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
)

// JPEGEncoder encodes frames as JPEG. Its quality is fixed at creation, so
// it is safe for concurrent use.
type JPEGEncoder struct {
	quality int
}

var _ Encoder = (*JPEGEncoder)(nil)

// NewJPEGEncoder creates a JPEG encoder with the given quality (1-100).
func NewJPEGEncoder(quality int) *JPEGEncoder {
	return &JPEGEncoder{quality: clampQuality(quality)}
}

func clampQuality(quality int) int {
	if quality < 1 {
		return 1
	}
	if quality > 100 {
		return 100
	}
	return quality
}

// Quality returns the effective quality.
func (e *JPEGEncoder) Quality() int {
	return e.quality
}

func (e *JPEGEncoder) Encode(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(256 * 1024) // pre-allocate 256KB
	if err := e.EncodeTo(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *JPEGEncoder) EncodeTo(w io.Writer, img *image.RGBA) error {
	if img == nil {
		return fmt.Errorf("nil image")
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: e.Quality()}); err != nil {
		return fmt.Errorf("jpeg encode: %w", err)
	}
	return nil
}

func (e *JPEGEncoder) Extension() string {
	return ".jpg"
}
