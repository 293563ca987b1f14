// Package cli implements the asynctrace command line: it runs file-system
// operations on a hostloop.Loop under a Tracker and prints the snapshot.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/asynctrace"
	"github.com/hupe1980/asynctrace/codec"
	"github.com/hupe1980/asynctrace/config"
	"github.com/hupe1980/asynctrace/hostloop"
	"github.com/hupe1980/asynctrace/internal/util"
	"github.com/hupe1980/asynctrace/metrics"
)

// version is set by ldflags at build time.
var version = "dev"

const defaultConfigPath = "asynctrace.yaml"

// Preset names accepted by --preset.
const (
	PresetFS   = "fs"
	PresetNone = "none"
)

// flags holds the persistent flags shared by all trace commands.
type flags struct {
	configPath  string
	preset      string
	format      string
	compress    bool
	template    string
	outputPath  string
	timeout     time.Duration
	showMetrics bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "asynctrace",
		Short:         "Trace the lifecycle of asynchronous file-system operations",
		Long:          "Runs file-system operations on an event loop, records every operation's init, before, after and destroy\nnotification with stacks and payload copies, and prints the resulting activity snapshot.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "Config file (default ./"+defaultConfigPath+" if present)")
	pf.StringVar(&f.preset, "preset", PresetFS, "Policy preset (fs|none)")
	pf.StringVarP(&f.format, "format", "f", "", "Output format (json|cbor), overrides the config")
	pf.BoolVar(&f.compress, "compress", false, "zstd-compress the output")
	pf.StringVarP(&f.template, "template", "t", "", "Render the snapshot through a Go template instead of encoding it")
	pf.StringVarP(&f.outputPath, "output", "o", "", "Write the snapshot to a file instead of stdout")
	pf.DurationVar(&f.timeout, "timeout", 30*time.Second, "Abort if the operations do not complete in time")
	pf.BoolVar(&f.showMetrics, "metrics", false, "Print event counters to stderr")

	root.AddCommand(newReadCmd(f), newStatCmd(f), newWatchCmd(f), newVersionCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "asynctrace %s\n", version)
		},
	}
}

// loadConfig resolves the config file and applies flag overrides.
func (f *flags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := f.configPath
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = f.format
	}
	if cmd.Flags().Changed("compress") {
		cfg.Output.Compress = f.compress
	}
	if cmd.Flags().Changed("template") {
		cfg.Output.Template = f.template
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch f.preset {
	case PresetFS, PresetNone:
	default:
		return nil, fmt.Errorf("unknown preset %q (want %s or %s)", f.preset, PresetFS, PresetNone)
	}
	return cfg, nil
}

// trace runs schedule on a fresh loop under a tracker and writes the
// snapshot once the loop drained.
func (f *flags) trace(cmd *cobra.Command, schedule func(loop *hostloop.Loop) error) error {
	cfg, err := f.loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(cmd.ErrOrStderr()).WithContext("run_id", uuid.NewString())
	reg := prometheus.NewRegistry()

	format, err := codec.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	optFns := []func(o *asynctrace.Options){
		func(o *asynctrace.Options) {
			o.KeepTypes = cfg.Keep.Types
			o.Encodings = cfg.Output.Encodings
			o.Output = codec.Options{
				Format:   format,
				Compress: cfg.Output.Compress,
				Indent:   format == codec.JSON && !cfg.Output.Compress,
			}
			o.Collector = cfg.CollectorOptions()
			o.Logger = logger
			o.Recorder = metrics.New(reg)
		},
	}
	if f.preset == PresetFS {
		optFns = append(optFns, asynctrace.FileSystem)
	}

	loop := hostloop.New(func(o *hostloop.Options) { o.Logger = logger.WithComponent("hostloop") })
	tracker := asynctrace.New(loop, optFns...).Enable()

	if err := schedule(loop); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("event loop: %w", err)
	}
	tracker.Disable()

	out := cmd.OutOrStdout()
	if f.outputPath != "" {
		file, err := os.Create(f.outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()
		out = file
	}

	var n int
	if cfg.Output.Template != "" {
		snapshot, err := tracker.Snapshot()
		if err != nil {
			return err
		}
		rendered, err := util.RenderTemplate(cfg.Output.Template, snapshot)
		if err != nil {
			return fmt.Errorf("failed to render template: %w", err)
		}
		n, err = io.WriteString(out, rendered)
		if err != nil {
			return err
		}
	} else {
		n, err = tracker.Write(out)
		if err != nil {
			return err
		}
		if format == codec.JSON && !cfg.Output.Compress {
			fmt.Fprintln(out)
		}
	}

	if f.outputPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s to %s\n", humanize.Bytes(uint64(n)), f.outputPath)
	}
	if f.showMetrics {
		return printMetrics(cmd.ErrOrStderr(), reg)
	}
	return nil
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	samples, err := metrics.Snapshot(g)
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, s := range samples {
		fmt.Fprintf(w, "%s %s\n", s, humanize.Commaf(s.Value))
	}
	return nil
}
