package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// BindPlayerFlags registers player flags on fs, writing into cfg.
func BindPlayerFlags(fs *pflag.FlagSet, cfg *PlayerConfig) {
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	bindDecoderFlags(fs, &cfg.Decoder)
	fs.IntVar(&cfg.Window.Width, "width", cfg.Window.Width, "Window width")
	fs.IntVar(&cfg.Window.Height, "height", cfg.Window.Height, "Window height")
	fs.StringVar(&cfg.Window.Title, "title", cfg.Window.Title, "Window title")
	fs.Float64Var(&cfg.Window.Scale, "scale", cfg.Window.Scale, "Fraction of the window covered by the video quad")
	fs.StringVar(&cfg.Window.Fit, "fit", cfg.Window.Fit, "Quad fit mode (stretch, contain)")
	fs.BoolVar(&cfg.Realtime, "realtime", cfg.Realtime, "Pace frames by their presentation timestamps")
	fs.BoolVar(&cfg.ExitOnEnd, "exit-on-end", cfg.ExitOnEnd, "Close the window when the input ends")
	fs.StringVar(&cfg.Snapshot.Dir, "snapshot-dir", cfg.Snapshot.Dir, "Directory to save frames to (empty = disabled)")
	fs.IntVar(&cfg.Snapshot.Every, "snapshot-every", cfg.Snapshot.Every, "Save every N-th frame")
	fs.IntVar(&cfg.Snapshot.Quality, "snapshot-quality", cfg.Snapshot.Quality, "JPEG quality of saved frames (1-100)")
	fs.StringVar(&cfg.Preview.Addr, "preview-addr", cfg.Preview.Addr, "Listen address of the preview server (empty = disabled)")
	fs.IntVar(&cfg.Preview.FPS, "preview-fps", cfg.Preview.FPS, "Maximum frames per second sent to preview clients")
	fs.IntVar(&cfg.Preview.Quality, "preview-quality", cfg.Preview.Quality, "JPEG quality of preview frames (1-100)")
}

// BindProbeFlags registers probe flags on fs, writing into cfg.
func BindProbeFlags(fs *pflag.FlagSet, cfg *ProbeConfig) {
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	bindDecoderFlags(fs, &cfg.Decoder)
	fs.IntVar(&cfg.MaxFrames, "max-frames", cfg.MaxFrames, "Stop after N decoded frames (0 = all)")
	fs.StringVar(&cfg.Dump.Dir, "dump-dir", cfg.Dump.Dir, "Directory to save decoded frames to (empty = disabled)")
	fs.IntVar(&cfg.Dump.Every, "dump-every", cfg.Dump.Every, "Save every N-th frame")
	fs.IntVar(&cfg.Dump.Quality, "dump-quality", cfg.Dump.Quality, "JPEG quality of saved frames (1-100)")
}

func bindDecoderFlags(fs *pflag.FlagSet, cfg *DecoderConfig) {
	fs.IntVar(&cfg.Threads, "threads", cfg.Threads, "Decoder threads (0 = auto)")
	fs.Var(&optionsValue{m: &cfg.InputOptions}, "input-option", "Demuxer/protocol option as key=value, repeatable (e.g. rtsp_transport=tcp)")
}

// optionsValue collects repeated key=value flags into a map. Keys given on
// the command line override keys from the config file.
type optionsValue struct {
	m *map[string]string
}

var _ pflag.SliceValue = (*optionsValue)(nil)

func (o *optionsValue) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	if *o.m == nil {
		*o.m = make(map[string]string)
	}
	(*o.m)[k] = v
	return nil
}

func (o *optionsValue) Type() string {
	return "key=value"
}

func (o *optionsValue) String() string {
	return strings.Join(o.GetSlice(), ",")
}

func (o *optionsValue) Append(s string) error {
	return o.Set(s)
}

func (o *optionsValue) Replace(ss []string) error {
	*o.m = nil
	for _, s := range ss {
		if err := o.Set(s); err != nil {
			return err
		}
	}
	return nil
}

func (o *optionsValue) GetSlice() []string {
	if o.m == nil || *o.m == nil {
		return nil
	}
	out := make([]string, 0, len(*o.m))
	for k, v := range *o.m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// ResolvePlayer returns the effective configuration: the file at path (if any)
// with every flag the user set on fs applied on top.
func ResolvePlayer(fs *pflag.FlagSet, flagged *PlayerConfig, path string) (*PlayerConfig, error) {
	if path == "" {
		return flagged, nil
	}
	cfg, err := LoadPlayer(path)
	if err != nil {
		return nil, err
	}
	replay := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	BindPlayerFlags(replay, cfg)
	if err := replayChanged(fs, replay); err != nil {
		return nil, err
	}
	cfg.Input = flagged.Input
	return cfg, nil
}

// ResolveProbe is ResolvePlayer for the probe configuration.
func ResolveProbe(fs *pflag.FlagSet, flagged *ProbeConfig, path string) (*ProbeConfig, error) {
	if path == "" {
		return flagged, nil
	}
	cfg, err := LoadProbe(path)
	if err != nil {
		return nil, err
	}
	replay := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	BindProbeFlags(replay, cfg)
	if err := replayChanged(fs, replay); err != nil {
		return nil, err
	}
	cfg.Input = flagged.Input
	return cfg, nil
}

func replayChanged(from, to *pflag.FlagSet) error {
	var firstErr error
	from.Visit(func(f *pflag.Flag) {
		if firstErr != nil || to.Lookup(f.Name) == nil {
			return
		}
		values := []string{f.Value.String()}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			values = sv.GetSlice()
		}
		for _, v := range values {
			if err := to.Set(f.Name, v); err != nil {
				firstErr = fmt.Errorf("flag --%s: %w", f.Name, err)
				return
			}
		}
	})
	return firstErr
}
