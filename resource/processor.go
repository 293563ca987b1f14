// Package resource turns live host payloads into durable snapshots.
//
// A payload is classified as positional (args) or keyed (context), cloned
// within the configured budget and scouted for callables. The processor never
// keeps a reference to the payload it was given.
package resource

import (
	"fmt"

	"github.com/hupe1980/asynctrace/clone"
	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/logging"
	"github.com/hupe1980/asynctrace/scout"
)

// Payload keys recognized on plain maps and used as the first path segment
// of function records.
const (
	KeyArgs    = "args"
	KeyContext = "context"
)

// Options configures a Processor.
type Options struct {
	BufferLimit     int
	StringLimit     int
	CollectionLimit int
	// CloneDepth bounds how deep contexts and args are copied.
	CloneDepth int
	// Omit records matching objects as deleted.
	Omit func(key string, typeName string) bool

	CaptureArguments bool
	CaptureSource    bool
	// Locator resolves columns, inferred names and source text.
	Locator *scout.Locator

	Logger logging.Logger
}

// Processor implements core.ResourceProcessor.
type Processor struct {
	opts Options
}

// New creates a Processor.
func New(optFns ...func(o *Options)) *Processor {
	opts := Options{
		CollectionLimit: clone.Unlimited,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = core.EnsureLogger(opts.Logger)
	if opts.Locator == nil {
		opts.Locator = scout.NewLocator()
	}
	return &Processor{opts: opts}
}

// Process classifies and snapshots raw. Unrecognized payloads yield nil.
func (p *Processor) Process(raw any) (res *core.ProcessedResource, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("resource: processing panicked: %v", r)
		}
	}()

	key, value, ok := Classify(raw)
	if !ok {
		return nil, nil
	}

	res = &core.ProcessedResource{
		Functions: scout.Scout(map[string]any{key: value}, p.scoutOptions()),
	}
	switch key {
	case KeyArgs:
		opts := p.cloneOptions()
		opts.StringLimit = clone.Unlimited
		res.Args = clone.Clone(value, opts)
	case KeyContext:
		res.Context = clone.Clone(value, p.cloneOptions())
	}
	if res.Functions == nil {
		res.Functions = []core.FunctionRecord{}
	}
	return res, nil
}

// Classify reports which shape raw has and the value under it.
func Classify(raw any) (key string, value any, ok bool) {
	switch r := raw.(type) {
	case nil:
		return "", nil, false
	case core.ArgsCarrier:
		return KeyArgs, r.Args(), true
	case core.ContextCarrier:
		return KeyContext, r.Context(), true
	case map[string]any:
		if v, found := r[KeyArgs]; found {
			return KeyArgs, v, true
		}
		if v, found := r[KeyContext]; found {
			return KeyContext, v, true
		}
	}
	return "", nil, false
}

func (p *Processor) cloneOptions() clone.Options {
	return clone.Options{
		CollectionLimit: p.opts.CollectionLimit,
		BufferLimit:     p.opts.BufferLimit,
		StringLimit:     p.opts.StringLimit,
		MaxDepth:        p.opts.CloneDepth,
		Omit:            p.opts.Omit,
	}
}

func (p *Processor) scoutOptions() scout.Options {
	return scout.Options{
		CaptureArguments: p.opts.CaptureArguments,
		CaptureSource:    p.opts.CaptureSource,
		ArgumentClone:    p.cloneOptions(),
		Locator:          p.opts.Locator,
		Logger:           p.opts.Logger,
	}
}
