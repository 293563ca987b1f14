// Package config loads tracker settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/asynctrace/capture"
	"github.com/hupe1980/asynctrace/collector"
	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/logging"
	"github.com/hupe1980/asynctrace/prune"
	"github.com/hupe1980/asynctrace/stringify"
)

// Output formats understood by the codec.
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Capture selects which events get a call stack. With both lists empty no
// stacks are recorded.
type Capture struct {
	Events []string `yaml:"events"`
	Types  []string `yaml:"types"`
	Depth  int      `yaml:"depth"`
}

// Limits is the capture budget. -1 means unlimited.
type Limits struct {
	Buffer     int `yaml:"buffer"`
	String     int `yaml:"string"`
	Collection int `yaml:"collection"`
	Depth      int `yaml:"depth"`
}

// Callbacks controls what is recorded about callables in payloads.
type Callbacks struct {
	Arguments bool `yaml:"arguments"`
	Source    bool `yaml:"source"`
}

// Keep selects the activities that end up in the snapshot. Empty keeps all.
type Keep struct {
	Types []string `yaml:"types"`
}

// Logging configures the structured logger.
type Logging struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Output configures snapshot encoding.
type Output struct {
	Format    string   `yaml:"format"`
	Compress  bool     `yaml:"compress"`
	Encodings []string `yaml:"encodings"`
	Template  string   `yaml:"template"`
}

// Config is the root of the YAML document.
type Config struct {
	Capture          Capture   `yaml:"capture"`
	Limits           Limits    `yaml:"limits"`
	Callbacks        Callbacks `yaml:"callbacks"`
	CleanupOnDestroy bool      `yaml:"cleanup_on_destroy"`
	Keep             Keep      `yaml:"keep"`
	Logging          Logging   `yaml:"logging"`
	Output           Output    `yaml:"output"`
}

// Default returns the built-in configuration: nothing captured beyond the
// activity graph itself, JSON output.
func Default() *Config {
	return &Config{
		Capture: Capture{Depth: collector.DefaultStackDepth},
		Limits: Limits{
			Collection: collector.DefaultCollectionCaptureLimit,
			Depth:      collector.DefaultCloneDepth,
		},
		CleanupOnDestroy: true,
		Logging:          Logging{Level: "info", Format: "text"},
		Output:           Output{Format: FormatJSON, Encodings: slices.Clone(stringify.DefaultEncodings)},
	}
}

// Load reads path. A missing file yields the defaults; fields absent from
// the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	for _, e := range c.Capture.Events {
		if !slices.Contains(core.Events, core.Event(e)) {
			return fmt.Errorf("%w: capture.events: unknown event %q", ErrInvalid, e)
		}
	}
	if c.Capture.Depth < 0 {
		return fmt.Errorf("%w: capture.depth must not be negative", ErrInvalid)
	}
	limits := map[string]int{
		"buffer":     c.Limits.Buffer,
		"string":     c.Limits.String,
		"collection": c.Limits.Collection,
	}
	for name, v := range limits {
		if v < -1 {
			return fmt.Errorf("%w: limits.%s must be -1 (unlimited) or >= 0, got %d", ErrInvalid, name, v)
		}
	}
	if c.Limits.Depth < 0 {
		return fmt.Errorf("%w: limits.depth must not be negative", ErrInvalid)
	}
	switch strings.ToLower(c.Output.Format) {
	case FormatJSON, FormatCBOR:
	default:
		return fmt.Errorf("%w: output.format must be %q or %q, got %q", ErrInvalid, FormatJSON, FormatCBOR, c.Output.Format)
	}
	known := stringify.New().Encodings()
	for _, enc := range c.Output.Encodings {
		if !slices.Contains(known, enc) {
			return fmt.Errorf("%w: output.encodings: unknown encoding %q", ErrInvalid, enc)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be text or json, got %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

// StackCapturer builds the capture policy.
func (c *Config) StackCapturer() core.StackCapturer {
	if len(c.Capture.Events) == 0 && len(c.Capture.Types) == 0 {
		return capture.Never
	}
	var events []core.Event
	for _, e := range c.Capture.Events {
		events = append(events, core.Event(e))
	}
	var types []string
	if len(c.Capture.Types) > 0 {
		types = c.Capture.Types
	}
	return capture.AllowList(events, types)
}

// KeepFunc builds the prune predicate; nil keeps everything.
func (c *Config) KeepFunc() prune.Keep {
	if len(c.Keep.Types) == 0 {
		return nil
	}
	return prune.Types(c.Keep.Types...)
}

// CollectorOptions applies the configuration to collector options. The
// stack capturer is only replaced when capture.events or capture.types is
// set, so a capturer chosen by a preset survives the default config.
func (c *Config) CollectorOptions() func(o *collector.Options) {
	return func(o *collector.Options) {
		if len(c.Capture.Events) > 0 || len(c.Capture.Types) > 0 {
			o.StackCapturer = c.StackCapturer()
		}
		o.StackDepth = c.Capture.Depth
		o.BufferCaptureLimit = c.Limits.Buffer
		o.StringCaptureLimit = c.Limits.String
		o.CollectionCaptureLimit = c.Limits.Collection
		o.CloneDepth = c.Limits.Depth
		o.CaptureCallbackArguments = c.Callbacks.Arguments
		o.CaptureCallbackSource = c.Callbacks.Source
		o.CleanupOnDestroy = c.CleanupOnDestroy
	}
}

// NewLogger builds the configured logger writing to out.
func (c *Config) NewLogger(out io.Writer) *logging.TraceLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(c.Logging.Level),
		Format:    strings.ToLower(c.Logging.Format),
		Output:    out,
		AddSource: c.Logging.AddSource,
	})
}
