package encoder

import (
	"image"
	"io"
)

// Encoder encodes RGBA frames into an image file format.
type Encoder interface {
	Encode(img *image.RGBA) ([]byte, error)
	EncodeTo(w io.Writer, img *image.RGBA) error
	Extension() string
}
