package display

import (
	"context"
	"image"
)

// Display renders frames in a window.
type Display interface {
	Run(ctx context.Context) error
}

// FrameSource provides decoded frames to the display. fn runs while the
// source holds its lock and must not retain img.
type FrameSource interface {
	ReadFrame(fn func(img *image.RGBA, seq uint64))
}
