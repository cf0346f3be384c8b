package probe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/junsooki/reel/internal/decoder"
	"github.com/junsooki/reel/internal/player"
)

// Source is the part of decoder.Source the probe needs. Conversion to RGBA
// is a separate step so frames nobody looks at are never scaled.
type Source interface {
	Decode(ctx context.Context) (*decoder.Frame, error)
	Convert(f *decoder.Frame) error
	Info() decoder.MediaInfo
}

// selective is implemented by sinks that only use some frames, like
// snapshot.Writer.
type selective interface {
	Wants(n int64) bool
}

type Options struct {
	// MaxFrames stops after that many frames, 0 decodes everything.
	MaxFrames int64
}

// Run decodes src, printing one line per frame to w, and hands converted
// frames to sinks. A frame no sink wants is never converted. Sinks are not
// closed.
func Run(ctx context.Context, src Source, opts Options, w io.Writer, sinks ...player.FrameSink) (*Stats, error) {
	log := logrus.WithFields(logrus.Fields{
		"function": "Run",
		"input":    src.Info().Input,
	})
	stats := &Stats{}
	wanting := make([]player.FrameSink, 0, len(sinks))

	for opts.MaxFrames <= 0 || stats.Frames < opts.MaxFrames {
		f, err := src.Decode(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("decode frame %d: %w", stats.Frames+1, err)
		}

		stats.Add(f)
		if _, err := fmt.Fprintf(w, "Frame %d (type=%c, size=%d bytes)\n", f.Number, f.PictureType, f.PacketSize); err != nil {
			return stats, err
		}

		wanting = wanting[:0]
		for _, sink := range sinks {
			if sel, ok := sink.(selective); ok && !sel.Wants(f.Number) {
				continue
			}
			wanting = append(wanting, sink)
		}
		if len(wanting) == 0 {
			continue
		}
		if err := src.Convert(f); err != nil {
			return stats, fmt.Errorf("convert frame %d: %w", f.Number, err)
		}
		for _, sink := range wanting {
			if err := sink.WriteFrame(ctx, f); err != nil {
				log.WithFields(logrus.Fields{
					"frame": f.Number,
					"error": err,
				}).Warn("Frame sink failed")
			}
		}
	}

	log.WithField("frames", stats.Frames).Info("Probe finished")
	return stats, nil
}
