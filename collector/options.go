package collector

import (
	"time"

	"github.com/hupe1980/asynctrace/capture"
	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/logging"
)

// Defaults for options the host-facing surface leaves open.
const (
	DefaultCollectionCaptureLimit = 32
	DefaultCloneDepth             = 4
	DefaultStackDepth             = capture.DefaultDepth
)

// Options configures a Collector.
type Options struct {
	// StackCapturer decides which events get a stack. Defaults to
	// capture.Never.
	StackCapturer core.StackCapturer

	// BufferCaptureLimit caps bytes copied out of buffers. Default 0.
	BufferCaptureLimit int
	// StringCaptureLimit caps characters copied out of context strings.
	// Positional args are always captured in full. Default 0.
	StringCaptureLimit int
	// CollectionCaptureLimit caps elements and keys per container.
	CollectionCaptureLimit int
	// CloneDepth is the deepest container level copied.
	CloneDepth int
	// Omit records matching objects as deleted instead of copying them.
	Omit func(key string, typeName string) bool

	// CaptureCallbackArguments records the last arguments of callbacks
	// found in payloads.
	CaptureCallbackArguments bool
	// CaptureCallbackSource records the source text of those callbacks.
	CaptureCallbackSource bool

	// CleanupOnDestroy processes an activity's resource as soon as its
	// destroy notification arrives. Default true.
	CleanupOnDestroy bool

	// StackDepth is the maximum number of frames per stack.
	StackDepth int

	// Processor overrides the resource processing strategy built from the
	// limits above.
	Processor core.ResourceProcessor

	Logger   logging.Logger
	Recorder core.Recorder

	// Now is the clock events are timestamped with. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the defaults New starts from.
func DefaultOptions() Options {
	return Options{
		StackCapturer:          capture.Never,
		CollectionCaptureLimit: DefaultCollectionCaptureLimit,
		CloneDepth:             DefaultCloneDepth,
		CleanupOnDestroy:       true,
		StackDepth:             DefaultStackDepth,
		Logger:                 logging.NoOpLogger{},
		Recorder:               core.NoOpRecorder{},
		Now:                    time.Now,
	}
}
