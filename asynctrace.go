// Package asynctrace provides a high-level façade over the activity
// collector and its processing pipeline. Most applications interact with
// this package by:
//  1. Creating a Tracker over a host event source via New (optionally with
//     the FileSystem preset)
//  2. Enabling it while the host runs its asynchronous operations
//  3. Taking a Snapshot or writing one with Write once the interesting work
//     completed
//
// The façade delegates observation to collector.Collector and composes the
// cleanup, prune, stringify and encode steps into one call. All defaults
// capture the activity graph only; stacks, payload bytes and callback
// details are opt-in.
package asynctrace

import (
	"io"
	"slices"
	"time"

	"github.com/hupe1980/asynctrace/capture"
	"github.com/hupe1980/asynctrace/codec"
	"github.com/hupe1980/asynctrace/collector"
	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/logging"
	"github.com/hupe1980/asynctrace/prune"
	"github.com/hupe1980/asynctrace/stringify"
)

// FileSystemTypes are the operation types kept by the FileSystem preset.
var FileSystemTypes = []string{"FSREQWRAP", "FSREQUESTWRAP"}

// opaqueTypes are handle types recorded as deleted by the FileSystem preset.
var opaqueTypes = []string{"File", "Watcher"}

// Options configures the Tracker.
type Options struct {
	// KeepTypes selects the activities present in snapshots. Empty keeps
	// all of them.
	KeepTypes []string

	// Encodings are rendered for every captured buffer. Defaults to
	// stringify.DefaultEncodings.
	Encodings []string

	// Output configures Write.
	Output codec.Options

	// Collector tunes the underlying collector (capture policy, limits,
	// callback details).
	Collector func(o *collector.Options)

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Recorder receives event counters (for example a metrics.Recorder).
	Recorder core.Recorder
}

// FileSystem is the preset for file-system diagnostics: only FSREQWRAP and
// FSREQUESTWRAP activities are kept, stacks are captured for every event of
// those types and open handles are not copied. KeepTypes already set by an
// earlier option is left alone, and an earlier Collector function still
// runs after the preset's defaults.
func FileSystem(o *Options) {
	if len(o.KeepTypes) == 0 {
		o.KeepTypes = slices.Clone(FileSystemTypes)
	}
	tune := o.Collector
	o.Collector = func(co *collector.Options) {
		co.StackCapturer = capture.AllowList(nil, FileSystemTypes)
		co.Omit = func(_ string, typeName string) bool {
			return slices.Contains(opaqueTypes, typeName)
		}
		if tune != nil {
			tune(co)
		}
	}
}

// Tracker is the high-level façade over a collector.
type Tracker struct {
	opts      Options
	collector *collector.Collector
}

// New creates a Tracker observing source. The tracker starts disabled.
func New(source core.EventSource, optFns ...func(o *Options)) *Tracker {
	opts := Options{
		Encodings: slices.Clone(stringify.DefaultEncodings),
		Output:    codec.Options{Format: codec.JSON},
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = core.EnsureLogger(opts.Logger)

	c := collector.New(source, time.Now(), func(o *collector.Options) {
		o.Logger = opts.Logger
		o.Recorder = core.EnsureRecorder(opts.Recorder)
		if opts.Collector != nil {
			opts.Collector(o)
		}
	})
	return &Tracker{opts: opts, collector: c}
}

// Enable starts observing.
func (t *Tracker) Enable() *Tracker { t.collector.Enable(); return t }

// Disable stops observing. Activities recorded so far are kept.
func (t *Tracker) Disable() *Tracker { t.collector.Disable(); return t }

// Collector exposes the underlying collector.
func (t *Tracker) Collector() *collector.Collector { return t.collector }

// Keep returns the snapshot filter; nil keeps everything.
func (t *Tracker) Keep() prune.Keep {
	if len(t.opts.KeepTypes) == 0 {
		return nil
	}
	return prune.Types(t.opts.KeepTypes...)
}

// Activities finalizes all resources, symbolizes stacks and returns the
// kept activities with their buffers rendered.
func (t *Tracker) Activities() (*core.ActivityMap, error) {
	t.collector.CleanAllResources().ProcessStacks()
	kept := t.collector.Prune(t.Keep())
	if len(t.opts.Encodings) > 0 {
		if err := stringify.Buffers(kept, t.opts.Encodings...); err != nil {
			return nil, err
		}
	}
	return kept, nil
}

// Snapshot returns the kept activities in plain form.
func (t *Tracker) Snapshot() ([]any, error) {
	kept, err := t.Activities()
	if err != nil {
		return nil, err
	}
	return core.PlainActivities(kept), nil
}

// Write encodes the snapshot to w and returns the number of bytes written.
func (t *Tracker) Write(w io.Writer) (int, error) {
	start := time.Now()
	snapshot, err := t.Snapshot()
	if err != nil {
		return 0, err
	}
	n, err := codec.Write(w, snapshot, t.opts.Output)
	if err != nil {
		return n, err
	}
	if tl, ok := t.opts.Logger.(*logging.TraceLogger); ok {
		tl.LogSnapshot(len(snapshot), n, string(t.opts.Output.Format), time.Since(start))
	}
	return n, nil
}
