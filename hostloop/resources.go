package hostloop

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/asynctrace/core"
)

// Operation types emitted by the loop.
const (
	TypeTickObject  = "TickObject"
	TypeTimeout     = "Timeout"
	TypeFSReqWrap   = "FSREQWRAP"
	TypeFSEventWrap = "FSEVENTWRAP"
)

// Callback wraps a function handed to the loop and remembers the arguments
// of its most recent invocation.
type Callback struct {
	fn   any
	call func(args []any)

	mu   sync.Mutex
	last []any
}

func newCallback(fn any, call func(args []any)) *Callback {
	return &Callback{fn: fn, call: call}
}

// Func implements core.Callable.
func (c *Callback) Func() any { return c.fn }

// Arguments implements core.Callable. Before the first invocation the list
// is empty.
func (c *Callback) Arguments() ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.last), nil
}

// Invoke calls the wrapped function with args.
func (c *Callback) Invoke(args ...any) {
	c.mu.Lock()
	c.last = args
	c.mu.Unlock()
	if c.call != nil {
		c.call(args)
	}
}

// TickObject is the payload of NextTick operations. Its positional
// arguments are exposed through core.ArgsCarrier.
type TickObject struct {
	callback *Callback
	args     []any
}

// Args implements core.ArgsCarrier.
func (t *TickObject) Args() []any { return t.args }

// Callback returns the scheduled callback.
func (t *TickObject) Callback() *Callback { return t.callback }

// Timeout is the payload of SetTimeout operations.
type Timeout struct {
	delay     time.Duration
	ontimeout *Callback
}

// Context implements core.ContextCarrier.
func (t *Timeout) Context() any {
	return map[string]any{
		"after":     t.delay.Milliseconds(),
		"ontimeout": t.ontimeout,
	}
}

// FSReq is the payload of a single file-system request. The request
// fields are filled in as the request progresses, so a late cleanup sees
// the final state (for example the bytes a read placed into its buffer).
type FSReq struct {
	mu         sync.Mutex
	fields     map[string]any
	oncomplete *Callback
}

func newFSReq(fields map[string]any, oncomplete *Callback) *FSReq {
	return &FSReq{fields: fields, oncomplete: oncomplete}
}

func (r *FSReq) set(key string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[key] = v
}

// Context implements core.ContextCarrier.
func (r *FSReq) Context() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx := maps.Clone(r.fields)
	ctx["oncomplete"] = r.oncomplete
	return ctx
}

// FSEvent is the payload of a file-system watch.
type FSEvent struct {
	path     string
	handle   *fsnotify.Watcher
	onchange *Callback
}

// Context implements core.ContextCarrier.
func (e *FSEvent) Context() any {
	return map[string]any{
		"path":        e.path,
		"initialized": true,
		"handle":      e.handle,
		"onchange":    e.onchange,
	}
}

var (
	_ core.Callable       = (*Callback)(nil)
	_ core.ArgsCarrier    = (*TickObject)(nil)
	_ core.ContextCarrier = (*Timeout)(nil)
	_ core.ContextCarrier = (*FSReq)(nil)
	_ core.ContextCarrier = (*FSEvent)(nil)
)
