package core

import "github.com/hupe1980/asynctrace/logging"

// ID identifies one asynchronous operation. Ids are assigned by the host and
// are unique per process. The zero value is the root sentinel used as the
// TriggerID of operations created outside any other operation.
type ID uint64

// RootID is the trigger id of activities without a causal predecessor.
const RootID ID = 0

// Event names one lifecycle notification.
type Event string

const (
	// EventInit fires once when the host creates an operation.
	EventInit Event = "init"
	// EventBefore fires each time the operation's callback is about to run.
	EventBefore Event = "before"
	// EventAfter fires each time the operation's callback finished running.
	EventAfter Event = "after"
	// EventDestroy fires once when the host released the operation.
	EventDestroy Event = "destroy"
)

// Events lists all lifecycle events in their natural order.
var Events = []Event{EventInit, EventBefore, EventAfter, EventDestroy}

// Hooks bundles the four callback slots a host invokes. Nil slots are
// ignored by hosts.
type Hooks struct {
	OnCreate  func(id ID, typ string, triggerID ID, resource any)
	OnBefore  func(id ID)
	OnAfter   func(id ID)
	OnDestroy func(id ID)
}

// Subscription is the opaque handle returned by EventSource.Subscribe.
type Subscription string

// EventSource is the host boundary. Implementations deliver notifications
// one at a time, in order, on a single logical thread of control.
type EventSource interface {
	Subscribe(hooks Hooks) Subscription
	Unsubscribe(sub Subscription)
}

// StackCapturer decides whether a call stack is recorded for an event. It
// must not mutate its inputs.
type StackCapturer interface {
	ShouldCapture(event Event, typ string, activity *Activity) bool
}

// ResourceProcessor turns a raw, live payload into its durable replacement.
// A nil result with a nil error means the payload had no recognizable shape.
type ResourceProcessor interface {
	Process(raw any) (*ProcessedResource, error)
}

// Recorder receives counters about notifications and anomalies. It is the
// seam used by the metrics package; NoOpRecorder is the default.
type Recorder interface {
	ObserveEvent(event Event, typ string)
	ObserveAnomaly(kind string)
	ObserveCleanup(typ string, outcome string)
}

// NoOpRecorder discards all observations.
type NoOpRecorder struct{}

// ObserveEvent implements Recorder.
func (NoOpRecorder) ObserveEvent(Event, string) {}

// ObserveAnomaly implements Recorder.
func (NoOpRecorder) ObserveAnomaly(string) {}

// ObserveCleanup implements Recorder.
func (NoOpRecorder) ObserveCleanup(string, string) {}

// Callable is implemented by host callback wrappers. Plain Go func values are
// callables too; this interface adds the introspection a func value cannot
// offer.
type Callable interface {
	// Func returns the wrapped function value, used to resolve its origin.
	Func() any
	// Arguments returns the arguments of the most recent invocation. An
	// error signals the arguments are not introspectable.
	Arguments() ([]any, error)
}

// ArgsCarrier is implemented by positional payloads (tick / continuation
// style operations).
type ArgsCarrier interface {
	Args() []any
}

// ContextCarrier is implemented by keyed payloads (ordinary requests).
type ContextCarrier interface {
	Context() any
}

// EnsureLogger substitutes a NoOpLogger for nil.
func EnsureLogger(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.NoOpLogger{}
	}
	return l
}

// EnsureRecorder substitutes a NoOpRecorder for nil.
func EnsureRecorder(r Recorder) Recorder {
	if r == nil {
		return NoOpRecorder{}
	}
	return r
}
