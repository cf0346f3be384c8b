package decoder

import (
	"fmt"
	"image"

	"github.com/asticode/go-astiav"
	"github.com/sirupsen/logrus"
)

// rgbaScaler converts decoded frames to packed RGBA with libswscale.
// The scale context is rebuilt only when the source geometry or format changes.
type rgbaScaler struct {
	ssc       *astiav.SoftwareScaleContext
	dst       *astiav.Frame
	srcW      int
	srcH      int
	srcFormat astiav.PixelFormat
	dstW      int
	dstH      int
}

func (s *rgbaScaler) close() {
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.ssc != nil {
		s.ssc.Free()
		s.ssc = nil
	}
}

func (s *rgbaScaler) ensure(src *astiav.Frame, dstW, dstH int) error {
	sw, sh := src.Width(), src.Height()
	sf := CorrectPixelFormat(src.PixelFormat())
	if s.ssc != nil && sw == s.srcW && sh == s.srcH && sf == s.srcFormat && dstW == s.dstW && dstH == s.dstH {
		return nil
	}
	s.close()

	ssc, err := astiav.CreateSoftwareScaleContext(
		sw, sh, sf,
		dstW, dstH, astiav.PixelFormatRgba,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("create scale context %dx%d %s -> %dx%d rgba: %w", sw, sh, sf, dstW, dstH, err)
	}

	dst := astiav.AllocFrame()
	dst.SetWidth(dstW)
	dst.SetHeight(dstH)
	dst.SetPixelFormat(astiav.PixelFormatRgba)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return fmt.Errorf("allocate scaled frame: %w", err)
	}

	s.ssc, s.dst = ssc, dst
	s.srcW, s.srcH, s.srcFormat = sw, sh, sf
	s.dstW, s.dstH = dstW, dstH

	logrus.WithFields(logrus.Fields{
		"function": "rgbaScaler.ensure",
		"src":      fmt.Sprintf("%dx%d %s", sw, sh, sf),
		"dst":      fmt.Sprintf("%dx%d rgba", dstW, dstH),
	}).Debug("Scaler ready")
	return nil
}

// scale converts src into out. out.Pix must hold out's full width*height*4 bytes.
func (s *rgbaScaler) scale(src *astiav.Frame, out *image.RGBA) error {
	if err := s.ensure(src, out.Rect.Dx(), out.Rect.Dy()); err != nil {
		return err
	}
	if err := s.ssc.ScaleFrame(src, s.dst); err != nil {
		return fmt.Errorf("scale frame: %w", err)
	}
	if _, err := s.dst.ImageCopyToBuffer(out.Pix, 1); err != nil {
		return fmt.Errorf("copy scaled frame: %w", err)
	}
	return nil
}
