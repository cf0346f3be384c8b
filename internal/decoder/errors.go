package decoder

import "errors"

var (
	// ErrNoVideoStream indicates the input has no video stream.
	ErrNoVideoStream = errors.New("no video stream")

	// ErrUnsupportedCodec indicates libav has no decoder for the video codec.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrClosed indicates the source was already closed.
	ErrClosed = errors.New("source closed")

	// ErrStaleFrame indicates Convert was called with a frame that is no longer current.
	ErrStaleFrame = errors.New("frame is no longer current")
)
