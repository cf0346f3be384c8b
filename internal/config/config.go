package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fit modes for the video quad.
const (
	FitStretch = "stretch"
	FitContain = "contain"
)

// WindowConfig describes the player window and the quad the video is drawn on.
type WindowConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Title  string  `yaml:"title"`
	Scale  float64 `yaml:"scale"` // fraction of the window covered by the quad
	Fit    string  `yaml:"fit"`
}

// DecoderConfig tunes how the input is opened and decoded.
type DecoderConfig struct {
	Threads      int               `yaml:"threads"` // 0 lets libav decide
	InputOptions map[string]string `yaml:"input_options"`
}

// SnapshotConfig controls writing decoded frames to disk. Empty Dir disables it.
type SnapshotConfig struct {
	Dir     string `yaml:"dir"`
	Every   int    `yaml:"every"`
	Quality int    `yaml:"quality"`
}

// PreviewConfig controls the WebSocket preview server. Empty Addr disables it.
type PreviewConfig struct {
	Addr    string `yaml:"addr"`
	FPS     int    `yaml:"fps"`
	Quality int    `yaml:"quality"`
}

// PlayerConfig holds all runtime configuration of the player binary.
type PlayerConfig struct {
	Input     string         `yaml:"-"`
	LogLevel  string         `yaml:"log_level"`
	Decoder   DecoderConfig  `yaml:"decoder"`
	Window    WindowConfig   `yaml:"window"`
	Realtime  bool           `yaml:"realtime"`
	ExitOnEnd bool           `yaml:"exit_on_end"`
	Snapshot  SnapshotConfig `yaml:"snapshot"`
	Preview   PreviewConfig  `yaml:"preview"`
}

// ProbeConfig holds configuration of the probe binary.
type ProbeConfig struct {
	Input     string         `yaml:"-"`
	LogLevel  string         `yaml:"log_level"`
	Decoder   DecoderConfig  `yaml:"decoder"`
	MaxFrames int            `yaml:"max_frames"`
	Dump      SnapshotConfig `yaml:"dump"`
}

// DefaultPlayerConfig returns the player configuration used when no file or flag overrides a value.
func DefaultPlayerConfig() *PlayerConfig {
	return &PlayerConfig{
		LogLevel: "info",
		Window: WindowConfig{
			Width:  1200,
			Height: 1200 * 9 / 16,
			Title:  "Editor",
			Scale:  0.5,
			Fit:    FitStretch,
		},
		Realtime: true,
		Snapshot: SnapshotConfig{
			Every:   1,
			Quality: 90,
		},
		Preview: PreviewConfig{
			FPS:     5,
			Quality: 70,
		},
	}
}

// DefaultProbeConfig returns the probe configuration defaults.
func DefaultProbeConfig() *ProbeConfig {
	return &ProbeConfig{
		LogLevel: "info",
		Dump: SnapshotConfig{
			Every:   1,
			Quality: 90,
		},
	}
}

// LoadPlayer reads a YAML file on top of the player defaults.
func LoadPlayer(path string) (*PlayerConfig, error) {
	cfg := DefaultPlayerConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadProbe reads a YAML file on top of the probe defaults.
func LoadProbe(path string) (*ProbeConfig, error) {
	cfg := DefaultProbeConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}
