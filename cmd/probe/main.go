package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/junsooki/reel/internal/config"
	"github.com/junsooki/reel/internal/decoder"
	"github.com/junsooki/reel/internal/encoder"
	"github.com/junsooki/reel/internal/logging"
	"github.com/junsooki/reel/internal/player"
	"github.com/junsooki/reel/internal/probe"
	"github.com/junsooki/reel/internal/snapshot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("reel-probe failed")
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.DefaultProbeConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:           "reel-probe [flags] <input>",
		Short:         "Dump the container layout and every decoded video frame",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Input = args[0]
			resolved, err := config.ResolveProbe(cmd.Flags(), cfg, configPath)
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
	config.BindProbeFlags(cmd.Flags(), cfg)
	return cmd
}

func run(ctx context.Context, cfg *config.ProbeConfig) (_err error) {
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
	var sinks []player.FrameSink
	defer func() {
		var result *multierror.Error
		for _, sink := range sinks {
			if err := sink.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := src.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := result.ErrorOrNil(); err != nil {
			_err = multierror.Append(_err, err)
		}
	}()

	out := os.Stdout
	if err := probe.WriteFormat(out, src.Info()); err != nil {
		return err
	}
	fmt.Fprintln(out)

	if cfg.Dump.Dir != "" {
		w, err := snapshot.NewWriter(cfg.Dump.Dir, snapshot.PrefixFor(cfg.Input), cfg.Dump.Every,
			encoder.NewJPEGEncoder(cfg.Dump.Quality))
		if err != nil {
			return err
		}
		sinks = append(sinks, w)
	}

	stats, err := probe.Run(ctx, src, probe.Options{MaxFrames: int64(cfg.MaxFrames)}, out, sinks...)
	fmt.Fprintln(out)
	fmt.Fprintln(out, stats.Summary())
	return err
}
