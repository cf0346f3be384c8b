package decoder

import (
	"fmt"
	"math"
	"time"

	"github.com/asticode/go-astiav"
)

// avTimeBase is AV_TIME_BASE, the unit of container durations.
const avTimeBase = 1000000

// CorrectPixelFormat maps the deprecated full-range YUVJ formats to their
// YUV equivalents so the scaler does not warn about them.
func CorrectPixelFormat(pf astiav.PixelFormat) astiav.PixelFormat {
	switch pf {
	case astiav.PixelFormatYuvj420P:
		return astiav.PixelFormatYuv420P
	case astiav.PixelFormatYuvj422P:
		return astiav.PixelFormatYuv422P
	case astiav.PixelFormatYuvj444P:
		return astiav.PixelFormatYuv444P
	case astiav.PixelFormatYuvj440P:
		return astiav.PixelFormatYuv440P
	default:
		return pf
	}
}

// PictureTypeChar returns the single letter libav uses for a picture type.
func PictureTypeChar(pt astiav.PictureType) rune {
	switch pt {
	case astiav.PictureTypeI:
		return 'I'
	case astiav.PictureTypeP:
		return 'P'
	case astiav.PictureTypeB:
		return 'B'
	case astiav.PictureTypeS:
		return 'S'
	case astiav.PictureTypeSi:
		return 'i'
	case astiav.PictureTypeSp:
		return 'p'
	case astiav.PictureTypeBi:
		return 'b'
	default:
		return '?'
	}
}

// FormatDuration renders a duration in AV_TIME_BASE units as
// "HHh : MMm : SSs : CCms", CC being hundredths of a second.
// The value is rounded up by 5ms unless that would overflow.
// Unknown (negative) durations render as "N/A".
func FormatDuration(d int64) string {
	const timeBase = avTimeBase
	const rounding = 5000
	if d < 0 {
		return "N/A"
	}
	if d <= math.MaxInt64-rounding {
		d += rounding
	}
	secs := d / timeBase
	us := d % timeBase
	mins := secs / 60
	secs %= 60
	hours := mins / 60
	mins %= 60
	return fmt.Sprintf("%02dh : %02dm : %02ds : %02dms", hours, mins, secs, (100*us)/timeBase)
}

func toDuration(ts int64, timeBase float64) time.Duration {
	return time.Duration(float64(ts) * timeBase * float64(time.Second))
}
