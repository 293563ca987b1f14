// Package hostloop is a small single-threaded event loop that reports the
// lifecycle of every operation it schedules through core.EventSource.
//
// Operations are scheduled with NextTick, SetTimeout, ReadFile, Stat and
// Watch. Blocking work runs on worker goroutines; its completion is handed
// back to the loop, so all notifications and all user callbacks run on the
// goroutine that calls Run. Scheduling functions must be called from that
// goroutine (from inside a callback) or before Run starts.
package hostloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/logging"
)

// Options configures a Loop.
type Options struct {
	Logger logging.Logger
}

// task is one unit of work executed on the loop goroutine. A task with a
// run function is surrounded by before/after; a final task also destroys
// its operation and releases the reference that kept the loop alive.
type task struct {
	id    core.ID
	run   func()
	final bool
}

// Loop is the event loop.
type Loop struct {
	logger logging.Logger

	subMu sync.Mutex
	order []core.Subscription
	hooks map[core.Subscription]core.Hooks

	nextID  atomic.Uint64
	current core.ID

	mu     sync.Mutex
	queue  []task
	refs   int
	timers map[core.ID]*time.Timer
	wake   chan struct{}
}

// New creates an idle loop.
func New(optFns ...func(o *Options)) *Loop {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Loop{
		logger: core.EnsureLogger(opts.Logger),
		hooks:  make(map[core.Subscription]core.Hooks),
		timers: make(map[core.ID]*time.Timer),
		wake:   make(chan struct{}, 1),
	}
}

// Subscribe implements core.EventSource.
func (l *Loop) Subscribe(hooks core.Hooks) core.Subscription {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	sub := core.Subscription(uuid.NewString())
	l.hooks[sub] = hooks
	l.order = append(l.order, sub)
	return sub
}

// Unsubscribe implements core.EventSource. Unknown handles are ignored.
func (l *Loop) Unsubscribe(sub core.Subscription) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	if _, ok := l.hooks[sub]; !ok {
		return
	}
	delete(l.hooks, sub)
	for i, o := range l.order {
		if o == sub {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Loop) subscribers() []core.Hooks {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	out := make([]core.Hooks, 0, len(l.order))
	for _, sub := range l.order {
		out = append(out, l.hooks[sub])
	}
	return out
}

// Current returns the id of the operation whose callback is executing, or
// core.RootID outside any callback.
func (l *Loop) Current() core.ID { return l.current }

// Pending returns the number of operations that keep the loop alive.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs
}

// create allocates an id, emits init with the current operation as trigger
// and takes a reference that the operation's final task releases.
func (l *Loop) create(typ string, resource any) core.ID {
	id := core.ID(l.nextID.Add(1))
	trigger := l.current

	l.mu.Lock()
	l.refs++
	l.mu.Unlock()

	l.logger.Debug("Operation created", "id", uint64(id), "type", typ, "trigger_id", uint64(trigger))
	for _, h := range l.subscribers() {
		if h.OnCreate != nil {
			h.OnCreate(id, typ, trigger, resource)
		}
	}
	return id
}

// post queues t and wakes the loop. Safe from any goroutine.
func (l *Loop) post(t task) {
	l.mu.Lock()
	l.queue = append(l.queue, t)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest task. done reports that nothing is queued and no
// operation is outstanding.
func (l *Loop) next() (t task, ok bool, done bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return task{}, false, l.refs == 0
	}
	t = l.queue[0]
	l.queue[0] = task{}
	l.queue = l.queue[1:]
	return t, true, false
}

// Run executes queued callbacks until no operation is outstanding or ctx
// is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		t, ok, done := l.next()
		if done {
			return nil
		}
		if !ok {
			select {
			case <-l.wake:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		l.exec(t)
	}
}

func (l *Loop) exec(t task) {
	if t.run != nil {
		for _, h := range l.subscribers() {
			if h.OnBefore != nil {
				h.OnBefore(t.id)
			}
		}
		prev := l.current
		l.current = t.id
		t.run()
		l.current = prev
		for _, h := range l.subscribers() {
			if h.OnAfter != nil {
				h.OnAfter(t.id)
			}
		}
	}
	if !t.final {
		return
	}
	for _, h := range l.subscribers() {
		if h.OnDestroy != nil {
			h.OnDestroy(t.id)
		}
	}
	l.mu.Lock()
	l.refs--
	l.mu.Unlock()
}

// NextTick schedules fn to run with args on the next loop turn.
func (l *Loop) NextTick(fn func(args ...any), args ...any) core.ID {
	cb := newCallback(fn, func(a []any) { fn(a...) })
	tick := &TickObject{callback: cb, args: args}
	id := l.create(TypeTickObject, tick)
	l.post(task{id: id, final: true, run: func() { cb.Invoke(args...) }})
	return id
}

// SetTimeout schedules fn to run once d has elapsed.
func (l *Loop) SetTimeout(fn func(), d time.Duration) core.ID {
	cb := newCallback(fn, func([]any) { fn() })
	id := l.create(TypeTimeout, &Timeout{delay: d, ontimeout: cb})
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timers[id] = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, id)
		l.mu.Unlock()
		l.post(task{id: id, final: true, run: func() { cb.Invoke() }})
	})
	return id
}

// ClearTimeout cancels a pending timeout. The operation is destroyed
// without running its callback. It reports false when id is not a pending
// timeout.
func (l *Loop) ClearTimeout(id core.ID) bool {
	l.mu.Lock()
	t, ok := l.timers[id]
	if ok && t.Stop() {
		delete(l.timers, id)
	} else {
		ok = false
	}
	l.mu.Unlock()
	if ok {
		l.post(task{id: id, final: true})
	}
	return ok
}
