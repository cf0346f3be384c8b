package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/junsooki/reel/internal/config"
	"github.com/junsooki/reel/internal/decoder"
	"github.com/junsooki/reel/internal/display"
	"github.com/junsooki/reel/internal/encoder"
	"github.com/junsooki/reel/internal/logging"
	"github.com/junsooki/reel/internal/player"
	"github.com/junsooki/reel/internal/preview"
	"github.com/junsooki/reel/internal/snapshot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("reel failed")
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.DefaultPlayerConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:           "reel [flags] <input>",
		Short:         "Play a video file in a window",
		Long:          "reel decodes the first video stream of a file or URL with FFmpeg and draws it on a quad in a window.\nSpace pauses, Escape quits.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Input = args[0]
			resolved, err := config.ResolvePlayer(cmd.Flags(), cfg, configPath)
			if err != nil {
				return err
			}
			if err := resolved.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), resolved)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	config.BindPlayerFlags(cmd.Flags(), cfg)
	return cmd
}

func run(ctx context.Context, cfg *config.PlayerConfig) (_err error) {
	if err := logging.Setup(cfg.LogLevel); err != nil {
		return err
	}

	src, err := decoder.Open(ctx, cfg.Input, decoder.Options{
		Threads:      cfg.Decoder.Threads,
		InputOptions: cfg.Decoder.InputOptions,
	})
	if err != nil {
		return err
	}

	var (
		sinks []player.FrameSink
		hub   *preview.Hub
	)
	if cfg.Snapshot.Dir != "" {
		w, err := snapshot.NewWriter(cfg.Snapshot.Dir, snapshot.PrefixFor(cfg.Input), cfg.Snapshot.Every,
			encoder.NewJPEGEncoder(cfg.Snapshot.Quality))
		if err != nil {
			src.Close()
			return err
		}
		sinks = append(sinks, w)
	}
	if cfg.Preview.Addr != "" {
		hub = preview.NewHub(cfg.Preview.Addr, src.Info(), encoder.NewJPEGEncoder(cfg.Preview.Quality), cfg.Preview.FPS)
		sinks = append(sinks, hub)
	}

	p := player.New(src, player.Config{Realtime: cfg.Realtime}, sinks...)
	defer func() {
		if err := p.Close(); err != nil {
			_err = multierror.Append(_err, err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	ended := make(chan struct{})
	g.Go(func() error {
		err := p.Run(gctx)
		if err == nil && cfg.ExitOnEnd {
			close(ended)
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if hub != nil {
		g.Go(func() error {
			return hub.Serve(gctx)
		})
	}

	disp := display.NewEbitenDisplay(p.Frames(), display.Options{
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		Title:  cfg.Window.Title,
		Scale:  cfg.Window.Scale,
		Fit:    cfg.Window.Fit,
		Done:   ended,
		OnTogglePause: func() {
			logrus.WithFields(logrus.Fields{
				"function": "OnTogglePause",
				"paused":   p.TogglePause(),
			}).Info("Playback toggled")
		},
	})

	// Ebitengine must own the main goroutine.
	var result *multierror.Error
	if err := disp.Run(gctx); err != nil {
		result = multierror.Append(result, err)
	}
	cancel()
	if err := g.Wait(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
