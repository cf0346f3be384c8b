package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/sirupsen/logrus"
)

// Source decodes the first video stream of an input with libav.
// It is not safe for concurrent use.
type Source struct {
	closer      *astikit.Closer
	log         *logrus.Entry
	interrupter *astiav.IOInterrupter

	formatContext *astiav.FormatContext
	videoStream   *astiav.Stream
	videoIndex    int
	audioIndex    int
	codec         *astiav.Codec
	codecContext  *astiav.CodecContext
	width         int
	height        int
	packet        *astiav.Packet
	frame         *astiav.Frame
	image         *image.RGBA
	scaler        rgbaScaler

	info           MediaInfo
	frameDuration  time.Duration
	frameNumber    int64
	lastPTS        time.Duration
	lastPacketSize int
	current        *Frame
	draining       bool
	closed         bool
}

var _ Decoder = (*Source)(nil)

// Open opens path (a file name or any URL libav understands) and prepares
// a decoder for its first video stream. Cancelling ctx aborts blocking
// network I/O.
func Open(ctx context.Context, path string, opts Options) (_ *Source, _err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("the provided input path is empty")
	}

	s := &Source{
		closer:     astikit.NewCloser(),
		log:        logrus.WithField("input", path),
		videoIndex: -1,
		audioIndex: -1,
	}
	defer func() {
		if _err != nil {
			s.Close()
		}
	}()

	s.interrupter = astiav.NewIOInterrupter()
	s.closer.Add(s.interrupter.Free)

	s.formatContext = astiav.AllocFormatContext()
	if s.formatContext == nil {
		return nil, fmt.Errorf("unable to allocate a format context")
	}
	s.closer.Add(s.formatContext.Free)
	s.formatContext.SetIOInterrupter(s.interrupter)

	release := s.interruptOn(ctx)
	defer release()

	var dict *astiav.Dictionary
	if len(opts.InputOptions) > 0 {
		dict = astiav.NewDictionary()
		s.closer.Add(dict.Free)
		for k, v := range opts.InputOptions {
			if err := dict.Set(k, v, 0); err != nil {
				return nil, fmt.Errorf("set input option %s: %w", k, err)
			}
		}
	}

	if err := s.formatContext.OpenInput(path, nil, dict); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("opening input '%s' interrupted: %w", path, ctxErr)
		}
		return nil, fmt.Errorf("unable to open input '%s': %w", path, err)
	}
	s.closer.Add(s.formatContext.CloseInput)
	if dict != nil {
		s.logUnusedOptions(dict)
	}

	if err := s.formatContext.FindStreamInfo(nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("probing input interrupted: %w", ctxErr)
		}
		return nil, fmt.Errorf("unable to get stream info: %w", err)
	}

	s.info = MediaInfo{
		Input:       path,
		Duration:    -1,
		VideoStream: -1,
		AudioStream: -1,
	}
	if d := s.formatContext.Duration(); d >= 0 {
		s.info.Duration = time.Duration(d) * time.Microsecond
	}
	if f := s.formatContext.InputFormat(); f != nil {
		s.info.FormatName = f.Name()
		s.info.FormatLongName = f.LongName()
	}
	s.log.WithFields(logrus.Fields{
		"function": "Open",
		"format":   s.info.FormatLongName,
	}).Infof("Duration: %s", FormatDuration(s.formatContext.Duration()))

	if err := s.classifyStreams(); err != nil {
		return nil, err
	}
	if err := s.openVideoDecoder(opts); err != nil {
		return nil, err
	}

	s.image = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	s.packet = astiav.AllocPacket()
	s.closer.Add(s.packet.Free)
	s.frame = astiav.AllocFrame()
	s.closer.Add(s.frame.Free)

	s.log.WithField("function", "Open").Debugf("Allocated %d bytes.", len(s.image.Pix))
	return s, nil
}

func (s *Source) classifyStreams() error {
	for _, stream := range s.formatContext.Streams() {
		cp := stream.CodecParameters()
		si := StreamInfo{
			Index:     stream.Index(),
			MediaType: cp.MediaType().String(),
			Codec:     cp.CodecID().String(),
			TimeBase:  fmt.Sprintf("%d/%d", stream.TimeBase().Num(), stream.TimeBase().Den()),
		}

		switch cp.MediaType() {
		case astiav.MediaTypeVideo:
			si.Width, si.Height = cp.Width(), cp.Height()
			si.PixelFormat = cp.PixelFormat().String()
			if r := stream.AvgFrameRate(); r.Num() > 0 && r.Den() > 0 {
				si.FrameRate = r.Float64()
			}
			if s.videoIndex < 0 {
				s.videoIndex = stream.Index()
				s.videoStream = stream
				s.width, s.height = cp.Width(), cp.Height()
				s.log.WithField("function", "classifyStreams").Infof("Video Codec: %dx%d", s.width, s.height)
			}
		case astiav.MediaTypeAudio:
			si.SampleRate = cp.SampleRate()
			si.Channels = cp.ChannelLayout().Channels()
			if s.audioIndex < 0 {
				s.audioIndex = stream.Index()
				s.log.WithField("function", "classifyStreams").Infof("Audio Codec: %d channel(s), sample rate %d", si.Channels, si.SampleRate)
			}
		}
		s.info.Streams = append(s.info.Streams, si)
	}

	s.info.VideoStream = s.videoIndex
	s.info.AudioStream = s.audioIndex
	if s.videoStream == nil {
		return ErrNoVideoStream
	}
	if s.width <= 0 || s.height <= 0 {
		return fmt.Errorf("video stream #%d has invalid dimensions %dx%d", s.videoIndex, s.width, s.height)
	}
	s.info.Width, s.info.Height = s.width, s.height
	return nil
}

func (s *Source) openVideoDecoder(opts Options) error {
	cp := s.videoStream.CodecParameters()
	s.codec = astiav.FindDecoder(cp.CodecID())
	if s.codec == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedCodec, cp.CodecID())
	}

	s.codecContext = astiav.AllocCodecContext(s.codec)
	if s.codecContext == nil {
		return fmt.Errorf("unable to allocate a codec context for %s", s.codec.Name())
	}
	s.closer.Add(s.codecContext.Free)

	if err := cp.ToCodecContext(s.codecContext); err != nil {
		return fmt.Errorf("unable to copy codec parameters: %w", err)
	}
	if opts.Threads > 0 {
		s.codecContext.SetThreadCount(opts.Threads)
	}
	if err := s.codecContext.Open(s.codec, nil); err != nil {
		return fmt.Errorf("unable to open codec %s: %w", s.codec.Name(), err)
	}

	tb := s.videoStream.TimeBase()
	if r := s.videoStream.AvgFrameRate(); r.Num() > 0 && r.Den() > 0 {
		s.frameDuration = time.Duration(float64(time.Second) / r.Float64())
	} else if tb.Num() > 0 && tb.Den() > 0 {
		s.frameDuration = toDuration(1, tb.Float64())
	}
	return nil
}

// Info describes the opened input.
func (s *Source) Info() MediaInfo {
	return s.info
}

// Decode returns the next decoded video frame without converting it.
// It returns io.EOF once the input is exhausted and the decoder drained.
func (s *Source) Decode(ctx context.Context) (*Frame, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release := s.interruptOn(ctx)
	defer release()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := s.codecContext.ReceiveFrame(s.frame)
		switch {
		case err == nil:
			return s.newFrame(), nil
		case errors.Is(err, astiav.ErrEof):
			return nil, io.EOF
		case !errors.Is(err, astiav.ErrEagain):
			return nil, fmt.Errorf("unable to receive a frame: %w", err)
		}

		// the decoder needs more input
		if s.draining {
			return nil, io.EOF
		}
		if err := s.feed(ctx); err != nil {
			return nil, err
		}
	}
}

// feed sends the next video packet to the decoder, or the flush packet at end of input.
func (s *Source) feed(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.formatContext.ReadFrame(s.packet)
		if errors.Is(err, astiav.ErrEof) {
			s.draining = true
			if err := s.codecContext.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
				return fmt.Errorf("unable to flush the decoder: %w", err)
			}
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("unable to read a packet: %w", err)
		}

		if s.packet.StreamIndex() != s.videoIndex {
			s.packet.Unref()
			continue
		}

		size := s.packet.Size()
		err = s.codecContext.SendPacket(s.packet)
		s.packet.Unref()
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "feed",
				"size":     size,
				"error":    err,
			}).Warn("Error sending packet, skipping it")
			continue
		}
		s.lastPacketSize = size
		return nil
	}
}

func (s *Source) newFrame() *Frame {
	s.frameNumber++

	pts := s.lastPTS + s.frameDuration
	if raw := s.frame.Pts(); raw != astiav.NoPtsValue {
		pts = toDuration(raw, s.videoStream.TimeBase().Float64())
	}
	s.lastPTS = pts

	f := &Frame{
		Number:      s.frameNumber,
		PictureType: PictureTypeChar(s.frame.PictureType()),
		PacketSize:  s.lastPacketSize,
		PTS:         pts,
		Duration:    s.frameDuration,
		Width:       s.frame.Width(),
		Height:      s.frame.Height(),
	}
	s.current = f

	s.log.WithField("function", "Decode").Debugf("Frame %d (type=%c, size=%d bytes)", f.Number, f.PictureType, f.PacketSize)
	return f
}

// Convert scales the current decoded picture into packed RGBA at the stream's
// dimensions and attaches the result to f.
func (s *Source) Convert(f *Frame) error {
	if s.closed {
		return ErrClosed
	}
	if f == nil || f != s.current {
		return ErrStaleFrame
	}
	if err := s.scaler.scale(s.frame, s.image); err != nil {
		return err
	}
	f.Image = s.image
	return nil
}

// NextFrame decodes the next video frame and converts it to RGBA.
func (s *Source) NextFrame(ctx context.Context) (*Frame, error) {
	f, err := s.Decode(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Convert(f); err != nil {
		return nil, err
	}
	return f, nil
}

// interruptOn makes blocking libav I/O fail once ctx is done, until release
// is called. release waits for a pending interrupt so the next call starts
// from a clean state.
func (s *Source) interruptOn(ctx context.Context) (release func()) {
	s.interrupter.Resume()
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		s.interrupter.Interrupt()
	})
	return func() {
		if !stop() {
			<-fired
		}
	}
}

func (s *Source) logUnusedOptions(dict *astiav.Dictionary) {
	var prev *astiav.DictionaryEntry
	for {
		e := dict.Get("", prev, astiav.NewDictionaryFlags(astiav.DictionaryFlagIgnoreSuffix))
		if e == nil {
			return
		}
		s.log.WithFields(logrus.Fields{
			"function": "Open",
			"option":   e.Key(),
			"value":    e.Value(),
		}).Warn("Input option was not used")
		prev = e
	}
}

// Close releases every libav resource. It is safe to call more than once.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.current = nil
	s.scaler.close()
	s.log.WithField("function", "Close").Debug("Cleaning up")
	return s.closer.Close()
}
