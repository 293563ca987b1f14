package collector

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/asynctrace/capture"
	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/logging"
	"github.com/hupe1980/asynctrace/prune"
	"github.com/hupe1980/asynctrace/resource"
	"github.com/hupe1980/asynctrace/store"
	"github.com/hupe1980/asynctrace/stringify"
)

// Cleanup outcomes reported to the Recorder.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Anomaly kinds reported to the Recorder.
const (
	AnomalyDuplicateID = "duplicate_id"
	AnomalyUnknownID   = "unknown_id"
)

// eventLogger is implemented by loggers with lifecycle helpers, such as
// *logging.TraceLogger.
type eventLogger interface {
	LogEvent(event string, id uint64, typ string, at time.Duration)
	LogAnomaly(kind string, err error)
}

// Collector records the lifecycle of the operations an EventSource reports.
// All hooks run synchronously on the source's delivery goroutine.
type Collector struct {
	source    core.EventSource
	store     *store.Store
	processor core.ResourceProcessor
	capturer  core.StackCapturer
	logger    logging.Logger
	events    eventLogger
	recorder  core.Recorder
	opts      Options

	mu      sync.Mutex
	sub     core.Subscription
	enabled bool
}

// New creates a disabled collector. start is the instant all timestamps
// are relative to.
func New(source core.EventSource, start time.Time, optFns ...func(o *Options)) *Collector {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.StackCapturer == nil {
		opts.StackCapturer = capture.Never
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := core.EnsureLogger(opts.Logger)
	if tl, ok := logger.(*logging.TraceLogger); ok {
		logger = tl.WithComponent("collector")
	}

	processor := opts.Processor
	if processor == nil {
		processor = resource.New(func(o *resource.Options) {
			o.BufferLimit = opts.BufferCaptureLimit
			o.StringLimit = opts.StringCaptureLimit
			o.CollectionLimit = opts.CollectionCaptureLimit
			o.CloneDepth = opts.CloneDepth
			o.Omit = opts.Omit
			o.CaptureArguments = opts.CaptureCallbackArguments
			o.CaptureSource = opts.CaptureCallbackSource
			o.Logger = logger
		})
	}

	events, _ := logger.(eventLogger)

	return &Collector{
		source:    source,
		events:    events,
		store:     store.New(start, func(o *store.Options) { o.Now = opts.Now }),
		processor: processor,
		capturer:  opts.StackCapturer,
		logger:    logger,
		recorder:  core.EnsureRecorder(opts.Recorder),
		opts:      opts,
	}
}

// Enable starts forwarding notifications. Calling it while enabled is a
// no-op; events missed while disabled are not replayed.
func (c *Collector) Enable() *Collector {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		return c
	}
	c.sub = c.source.Subscribe(core.Hooks{
		OnCreate:  c.onCreate,
		OnBefore:  c.onBefore,
		OnAfter:   c.onAfter,
		OnDestroy: c.onDestroy,
	})
	c.enabled = true
	c.logger.Debug("collector enabled", "subscription", string(c.sub))
	return c
}

// Disable stops forwarding notifications. Calling it while disabled is a
// no-op. Recorded activities are kept.
func (c *Collector) Disable() *Collector {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return c
	}
	c.source.Unsubscribe(c.sub)
	c.logger.Debug("collector disabled", "subscription", string(c.sub), "activities", c.store.Len())
	c.sub = ""
	c.enabled = false
	return c
}

// Enabled reports whether notifications are being forwarded.
func (c *Collector) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Store returns the underlying activity store.
func (c *Collector) Store() *store.Store { return c.store }

// Activities returns the live ordered activity map.
func (c *Collector) Activities() *core.ActivityMap { return c.store.Activities() }

func (c *Collector) onCreate(id core.ID, typ string, triggerID core.ID, res any) {
	a, err := c.store.OnCreate(id, typ, triggerID, res)
	if err != nil {
		c.recorder.ObserveAnomaly(AnomalyDuplicateID)
		if c.events != nil {
			c.events.LogAnomaly(AnomalyDuplicateID, err)
		} else {
			c.logger.Warn("duplicate activity id", "activity_id", uint64(id), "activity_type", typ, "error", err)
		}
		return
	}
	c.observe(core.EventInit, a, 1)
}

func (c *Collector) onBefore(id core.ID) { c.forward(core.EventBefore, id, c.store.OnBefore) }

func (c *Collector) onAfter(id core.ID) { c.forward(core.EventAfter, id, c.store.OnAfter) }

func (c *Collector) onDestroy(id core.ID) {
	a := c.forward(core.EventDestroy, id, c.store.OnDestroy)
	if a != nil && c.opts.CleanupOnDestroy {
		c.cleanup(a)
	}
}

func (c *Collector) forward(event core.Event, id core.ID, fn func(core.ID) (*core.Activity, error)) *core.Activity {
	a, err := fn(id)
	if err != nil {
		c.recorder.ObserveAnomaly(AnomalyUnknownID)
		c.logger.Debug("notification for unknown activity", "event", string(event), "activity_id", uint64(id))
		return nil
	}
	c.observe(event, a, 2)
	return a
}

// observe runs inside the hook so captured stacks show the emitting code.
// frames is the number of collector frames between observe and the host.
func (c *Collector) observe(event core.Event, a *core.Activity, frames int) {
	c.recorder.ObserveEvent(event, a.Type)
	if c.events != nil {
		if ts := a.Timestamps(event); len(ts) > 0 {
			c.events.LogEvent(string(event), uint64(a.ID), a.Type, ts[len(ts)-1])
		}
	}
	if !c.capturer.ShouldCapture(event, a.Type, a) {
		return
	}
	stack := capture.Record(1+frames, c.opts.StackDepth)
	if err := c.store.AttachStack(a.ID, event, stack); err != nil {
		c.logger.Debug("stack dropped", "activity_id", uint64(a.ID), "error", err)
	}
}

// ProcessStacks symbolizes every captured stack. Stacks are always recorded
// when the event fires; only the translation to frames is deferred.
func (c *Collector) ProcessStacks() *Collector {
	resolved := 0
	for _, a := range c.store.Values() {
		_ = c.store.Update(a.ID, func(act *core.Activity) {
			resolved += capture.SymbolizeActivity(act)
		})
	}
	c.logger.Debug("stacks symbolized", "stacks", resolved)
	return c
}

// CleanupResource processes the raw resource of one activity and releases
// it. Already processed activities are left alone.
func (c *Collector) CleanupResource(id core.ID) error {
	a, ok := c.store.Get(id)
	if !ok {
		return &core.UnknownIDError{ID: id}
	}
	c.cleanup(a)
	return nil
}

// CleanAllResources processes every activity that still holds its raw
// resource. A failure on one activity does not stop the others.
func (c *Collector) CleanAllResources() *Collector {
	for _, a := range c.store.Values() {
		c.cleanup(a)
	}
	return c
}

func (c *Collector) cleanup(a *core.Activity) {
	var (
		processed *core.ProcessedResource
		err       error
		done      bool
	)
	_ = c.store.Update(a.ID, func(act *core.Activity) {
		if act.Finalized() {
			done = true
			return
		}
		processed, err = c.process(act.Resource)
		act.Finalize(processed)
	})
	if done {
		return
	}

	switch {
	case err != nil:
		c.recorder.ObserveCleanup(a.Type, OutcomeError)
		c.logger.Warn("resource processing failed", "activity_id", uint64(a.ID), "activity_type", a.Type, "error", err)
	case processed == nil:
		c.recorder.ObserveCleanup(a.Type, OutcomeEmpty)
	default:
		c.recorder.ObserveCleanup(a.Type, OutcomeOK)
	}
}

func (c *Collector) process(raw any) (p *core.ProcessedResource, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("collector: processor panicked: %v", r)
		}
	}()
	return c.processor.Process(raw)
}

// Prune returns the activities keep approves. The store is not modified.
func (c *Collector) Prune(keep prune.Keep) *core.ActivityMap {
	return prune.Prune(c.Activities(), keep)
}

// StringifyBuffers renders every captured buffer in the given encodings,
// defaulting to utf8 and hex.
func (c *Collector) StringifyBuffers(encodings ...string) error {
	return stringify.Buffers(c.Activities(), encodings...)
}
