package probe

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/junsooki/reel/internal/decoder"
)

// WriteFormat prints a human readable description of the container and
// its streams.
func WriteFormat(w io.Writer, info decoder.MediaInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Input:\t%s\n", info.Input)
	if info.FormatLongName != "" {
		fmt.Fprintf(tw, "Format:\t%s (%s)\n", info.FormatName, info.FormatLongName)
	} else {
		fmt.Fprintf(tw, "Format:\t%s\n", info.FormatName)
	}
	fmt.Fprintf(tw, "Duration:\t%s\n", formatDuration(info.Duration))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STREAM\tTYPE\tCODEC\tDETAILS\tTIME BASE\t")
	for _, s := range info.Streams {
		marker := ""
		switch s.Index {
		case info.VideoStream:
			marker = " *"
		case info.AudioStream:
			marker = " +"
		}
		fmt.Fprintf(tw, "#%d%s\t%s\t%s\t%s\t%s\t\n", s.Index, marker, s.MediaType, s.Codec, streamDetails(s), s.TimeBase)
	}
	return tw.Flush()
}

func streamDetails(s decoder.StreamInfo) string {
	switch {
	case s.Width > 0 && s.FrameRate > 0:
		return fmt.Sprintf("%dx%d %s %.3g fps", s.Width, s.Height, s.PixelFormat, s.FrameRate)
	case s.Width > 0:
		return fmt.Sprintf("%dx%d %s", s.Width, s.Height, s.PixelFormat)
	case s.SampleRate > 0:
		return fmt.Sprintf("%d Hz, %d channel(s)", s.SampleRate, s.Channels)
	default:
		return "-"
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return decoder.FormatDuration(-1)
	}
	return decoder.FormatDuration(d.Microseconds())
}
