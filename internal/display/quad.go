package display

import "math"

// Fit modes.
const (
	FitStretch = "stretch"
	FitContain = "contain"
)

// quadTransform returns the scale and offset that place a frame of
// frameW x frameH on a centred quad covering scale of the view in each axis.
// With FitStretch the frame fills the quad; with FitContain it keeps its
// aspect ratio inside the quad.
func quadTransform(viewW, viewH, frameW, frameH, scale float64, fit string) (sx, sy, offsetX, offsetY float64) {
	if frameW <= 0 || frameH <= 0 {
		return 0, 0, 0, 0
	}
	quadW, quadH := viewW*scale, viewH*scale
	if fit == FitContain {
		s, ox, oy := aspectFitTransform(quadW, quadH, frameW, frameH)
		sx, sy = s, s
		offsetX = (viewW-quadW)/2 + ox
		offsetY = (viewH-quadH)/2 + oy
		return
	}
	sx, sy = quadW/frameW, quadH/frameH
	offsetX = (viewW - quadW) / 2
	offsetY = (viewH - quadH) / 2
	return
}

// aspectFitTransform returns scale and offsets to fit frame into view with letterboxing.
func aspectFitTransform(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}
