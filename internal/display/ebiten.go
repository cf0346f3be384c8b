package display

import (
	"context"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sirupsen/logrus"
)

// Options configures the window.
type Options struct {
	Width  int
	Height int
	Title  string
	Scale  float64
	Fit    string
	// Done, when closed, ends the window loop.
	Done <-chan struct{}
	// OnTogglePause is called when the user presses Space.
	OnTogglePause func()
}

// EbitenDisplay renders video frames on a quad using Ebitengine.
type EbitenDisplay struct {
	opts   Options
	source FrameSource
	ctx    context.Context

	texture  *ebiten.Image
	uploaded uint64
	frameW   int
	frameH   int
}

var _ Display = (*EbitenDisplay)(nil)

// NewEbitenDisplay creates an Ebitengine-based display reading frames from source.
func NewEbitenDisplay(source FrameSource, opts Options) *EbitenDisplay {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Fit == "" {
		opts.Fit = FitStretch
	}
	return &EbitenDisplay{
		opts:   opts,
		source: source,
	}
}

// Run starts the Ebitengine game loop. Must be called from the main goroutine.
// It returns when the window is closed, Escape is pressed, ctx is cancelled
// or Options.Done is closed.
func (d *EbitenDisplay) Run(ctx context.Context) error {
	d.ctx = ctx
	logrus.WithFields(logrus.Fields{
		"function": "Run",
		"width":    d.opts.Width,
		"height":   d.opts.Height,
	}).Info("Attempting window creation")

	ebiten.SetWindowSize(d.opts.Width, d.opts.Height)
	ebiten.SetWindowTitle(d.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	err := ebiten.RunGame(d)
	if d.texture != nil {
		d.texture.Deallocate()
	}
	if err == ebiten.Termination {
		return nil
	}
	return err
}

// --- ebiten.Game interface ---

func (d *EbitenDisplay) Update() error {
	if d.ctx != nil {
		select {
		case <-d.ctx.Done():
			return ebiten.Termination
		default:
		}
	}
	if d.opts.Done != nil {
		select {
		case <-d.opts.Done:
			return ebiten.Termination
		default:
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) && d.opts.OnTogglePause != nil {
		d.opts.OnTogglePause()
	}
	return nil
}

func (d *EbitenDisplay) Draw(screen *ebiten.Image) {
	screen.Fill(color.White)

	d.source.ReadFrame(func(img *image.RGBA, seq uint64) {
		if seq == d.uploaded {
			return
		}
		w, h := img.Rect.Dx(), img.Rect.Dy()
		if d.texture == nil || w != d.frameW || h != d.frameH {
			if d.texture != nil {
				d.texture.Deallocate()
			}
			d.texture = ebiten.NewImage(w, h)
			d.frameW, d.frameH = w, h
		}
		d.texture.WritePixels(img.Pix)
		d.uploaded = seq
	})
	if d.texture == nil {
		return
	}

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	sx, sy, offsetX, offsetY := quadTransform(
		float64(sw), float64(sh),
		float64(d.frameW), float64(d.frameH),
		d.opts.Scale, d.opts.Fit,
	)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(sx, sy)
	op.GeoM.Translate(offsetX, offsetY)
	screen.DrawImage(d.texture, op)
}

func (d *EbitenDisplay) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
