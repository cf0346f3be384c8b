package decoder

import (
	"context"
	"image"
	"time"
)

// Decoder produces decoded, RGBA-converted video frames.
type Decoder interface {
	NextFrame(ctx context.Context) (*Frame, error)
	Info() MediaInfo
	Close() error
}

// Frame describes one decoded video frame.
// Image is owned by the decoder and is overwritten by the next call.
type Frame struct {
	Number      int64
	PictureType rune
	PacketSize  int
	PTS         time.Duration
	Duration    time.Duration
	Width       int
	Height      int
	Image       *image.RGBA
}

// MediaInfo describes an opened input. Duration is negative when the
// container does not report one.
type MediaInfo struct {
	Input          string        `json:"input"`
	FormatName     string        `json:"format"`
	FormatLongName string        `json:"formatLongName"`
	Duration       time.Duration `json:"duration"`
	VideoStream    int           `json:"videoStream"`
	AudioStream    int           `json:"audioStream"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	Streams        []StreamInfo  `json:"streams"`
}

// StreamInfo describes one stream of an input.
type StreamInfo struct {
	Index       int     `json:"index"`
	MediaType   string  `json:"mediaType"`
	Codec       string  `json:"codec"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	PixelFormat string  `json:"pixelFormat,omitempty"`
	SampleRate  int     `json:"sampleRate,omitempty"`
	Channels    int     `json:"channels,omitempty"`
	TimeBase    string  `json:"timeBase"`
	FrameRate   float64 `json:"frameRate,omitempty"`
}

// Options tunes how an input is opened.
type Options struct {
	// Threads is the decoder thread count, 0 lets libav decide.
	Threads int
	// InputOptions are passed to the demuxer, e.g. "rtsp_transport": "tcp".
	InputOptions map[string]string
}
