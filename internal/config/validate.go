package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrNoInput is returned when no input path was given.
var ErrNoInput = errors.New("no input given")

// Validate checks the player configuration and returns the first problem found.
func (c *PlayerConfig) Validate() error {
	if c.Input == "" {
		return ErrNoInput
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := c.Window.Validate(); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if c.Snapshot.Dir != "" {
		if err := c.Snapshot.Validate(); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}
	if c.Preview.Addr != "" {
		if c.Preview.FPS <= 0 || c.Preview.FPS > 60 {
			return fmt.Errorf("preview: fps must be between 1 and 60, got %d", c.Preview.FPS)
		}
		if c.Preview.Quality < 1 || c.Preview.Quality > 100 {
			return fmt.Errorf("preview: quality must be between 1 and 100, got %d", c.Preview.Quality)
		}
	}
	return nil
}

// Validate checks decoder settings.
func (d *DecoderConfig) Validate() error {
	if d.Threads < 0 {
		return fmt.Errorf("threads must not be negative, got %d", d.Threads)
	}
	for k := range d.InputOptions {
		if k == "" {
			return fmt.Errorf("input_options has an empty key")
		}
	}
	return nil
}

// Validate checks window settings.
func (w *WindowConfig) Validate() error {
	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("size must be positive, got %dx%d", w.Width, w.Height)
	}
	if w.Scale <= 0 || w.Scale > 1 {
		return fmt.Errorf("scale must be in (0, 1], got %v", w.Scale)
	}
	switch w.Fit {
	case FitStretch, FitContain:
	default:
		return fmt.Errorf("fit must be %q or %q, got %q", FitStretch, FitContain, w.Fit)
	}
	return nil
}

// Validate checks snapshot settings.
func (s *SnapshotConfig) Validate() error {
	if s.Every <= 0 {
		return fmt.Errorf("every must be positive, got %d", s.Every)
	}
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", s.Quality)
	}
	return nil
}

// Validate checks the probe configuration.
func (c *ProbeConfig) Validate() error {
	if c.Input == "" {
		return ErrNoInput
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("max_frames must not be negative, got %d", c.MaxFrames)
	}
	if c.Dump.Dir != "" {
		if err := c.Dump.Validate(); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	}
	return nil
}
