package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/junsooki/reel/internal/decoder"
)

// FrameSink receives every decoded frame. The frame's image is only valid
// for the duration of the call.
type FrameSink interface {
	WriteFrame(ctx context.Context, f *decoder.Frame) error
	Close() error
}

// Config tunes playback.
type Config struct {
	// Realtime paces frames by their presentation timestamps.
	Realtime bool
}

// Player pulls frames from a Decoder and publishes them to its FrameBuffer and sinks.
type Player struct {
	cfg    Config
	dec    decoder.Decoder
	buffer *FrameBuffer
	sinks  []FrameSink

	mu         sync.Mutex
	paused     bool
	pausedAt   time.Time
	resumeCh   chan struct{}
	clockStart time.Time
	firstPTS   time.Duration
	started    bool
	ended      bool
	closed     bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Player. The player owns dec and the sinks and closes them in Close.
func New(dec decoder.Decoder, cfg Config, sinks ...FrameSink) *Player {
	return &Player{
		cfg:      cfg,
		dec:      dec,
		buffer:   &FrameBuffer{},
		sinks:    sinks,
		resumeCh: make(chan struct{}),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Frames returns the buffer holding the latest frame, for the display.
func (p *Player) Frames() *FrameBuffer {
	return p.buffer
}

// Info describes the input being played.
func (p *Player) Info() decoder.MediaInfo {
	return p.dec.Info()
}

// Run decodes and publishes frames until the input ends or ctx is cancelled.
// Reaching the end of the input is not an error.
func (p *Player) Run(ctx context.Context) error {
	log := logrus.WithFields(logrus.Fields{
		"function": "Run",
		"input":    p.dec.Info().Input,
	})
	log.Info("Playback started")

	for {
		if err := p.waitWhilePaused(ctx); err != nil {
			return err
		}

		f, err := p.dec.NextFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			p.mu.Lock()
			p.ended = true
			p.mu.Unlock()
			log.WithField("frames", p.buffer.Seq()).Info("End of input")
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			return fmt.Errorf("unable to decode the next frame: %w", err)
		}

		if p.cfg.Realtime {
			if err := p.pace(ctx, f.PTS); err != nil {
				return err
			}
		}

		if f.Image != nil {
			p.buffer.Put(f.Image)
		}
		for _, sink := range p.sinks {
			if err := sink.WriteFrame(ctx, f); err != nil {
				log.WithFields(logrus.Fields{
					"frame": f.Number,
					"error": err,
				}).Warn("Frame sink failed")
			}
		}
	}
}

// delay returns how long to wait before presenting a frame with the given PTS.
// The first frame anchors the playback clock.
func (p *Player) delay(pts time.Duration) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.started {
		p.started = true
		p.clockStart = now
		p.firstPTS = pts
		return 0
	}
	due := p.clockStart.Add(pts - p.firstPTS)
	d := due.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// pace waits until the frame with the given PTS is due. A pause that
// starts while waiting holds the frame back until playback resumes.
func (p *Player) pace(ctx context.Context, pts time.Duration) error {
	for {
		if err := p.sleep(ctx, p.delay(pts)); err != nil {
			return err
		}
		if !p.Paused() {
			return nil
		}
		if err := p.waitWhilePaused(ctx); err != nil {
			return err
		}
	}
}

func (p *Player) waitWhilePaused(ctx context.Context) error {
	for {
		p.mu.Lock()
		if !p.paused {
			p.mu.Unlock()
			return nil
		}
		ch := p.resumeCh
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// SetPaused pauses or resumes playback. Time spent paused does not count
// toward the playback clock.
func (p *Player) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if paused == p.paused {
		return
	}
	p.paused = paused
	if paused {
		p.pausedAt = p.now()
		return
	}
	if p.started {
		p.clockStart = p.clockStart.Add(p.now().Sub(p.pausedAt))
	}
	close(p.resumeCh)
	p.resumeCh = make(chan struct{})
}

// TogglePause flips the pause state and returns the new state.
func (p *Player) TogglePause() bool {
	p.mu.Lock()
	paused := !p.paused
	p.mu.Unlock()
	p.SetPaused(paused)
	return paused
}

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Ended reports whether the input was played to its end.
func (p *Player) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

// Close closes all sinks and the decoder. Must not be called while Run is running.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var result *multierror.Error
	for _, sink := range p.sinks {
		if err := sink.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := p.dec.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close decoder: %w", err))
	}
	return result.ErrorOrNil()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
