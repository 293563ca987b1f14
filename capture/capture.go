// Package capture decides which lifecycle events get a call stack and
// records those stacks.
//
// Policies implement core.StackCapturer and are pure: they only look at the
// event, the activity type and the activity record. Capture is opt-in; a
// collector without a policy uses Never.
package capture

import (
	"runtime"

	"github.com/hupe1980/asynctrace/core"
)

// DefaultDepth is the number of frames recorded when no depth is given.
const DefaultDepth = 32

// Predicate adapts a function to core.StackCapturer.
type Predicate func(event core.Event, typ string, activity *core.Activity) bool

// ShouldCapture implements core.StackCapturer.
func (p Predicate) ShouldCapture(event core.Event, typ string, activity *core.Activity) bool {
	return p(event, typ, activity)
}

var (
	// Never captures nothing.
	Never core.StackCapturer = Predicate(func(core.Event, string, *core.Activity) bool { return false })
	// Always captures every event of every type.
	Always core.StackCapturer = Predicate(func(core.Event, string, *core.Activity) bool { return true })
)

// Filter captures when both the event and the type are allowed.
type Filter struct {
	events map[core.Event]struct{}
	types  map[string]struct{}
}

// AllowList returns a Filter for the given events and types. A nil events
// slice allows all four events; a nil types slice allows every type.
func AllowList(events []core.Event, types []string) *Filter {
	f := &Filter{}
	if events != nil {
		f.events = make(map[core.Event]struct{}, len(events))
		for _, e := range events {
			f.events[e] = struct{}{}
		}
	}
	if types != nil {
		f.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			f.types[t] = struct{}{}
		}
	}
	return f
}

// ShouldCapture implements core.StackCapturer.
func (f *Filter) ShouldCapture(event core.Event, typ string, _ *core.Activity) bool {
	if f.events != nil {
		if _, ok := f.events[event]; !ok {
			return false
		}
	}
	if f.types != nil {
		if _, ok := f.types[typ]; !ok {
			return false
		}
	}
	return true
}

// All captures when every policy approves. No policies approve everything.
func All(capturers ...core.StackCapturer) core.StackCapturer {
	return Predicate(func(event core.Event, typ string, a *core.Activity) bool {
		for _, c := range capturers {
			if !c.ShouldCapture(event, typ, a) {
				return false
			}
		}
		return true
	})
}

// Any captures when at least one policy approves.
func Any(capturers ...core.StackCapturer) core.StackCapturer {
	return Predicate(func(event core.Event, typ string, a *core.Activity) bool {
		for _, c := range capturers {
			if c.ShouldCapture(event, typ, a) {
				return true
			}
		}
		return false
	})
}

// FirstOnly wraps c so before/after stacks are only recorded for the first
// invocation of a callback.
func FirstOnly(c core.StackCapturer) core.StackCapturer {
	return Predicate(func(event core.Event, typ string, a *core.Activity) bool {
		if a != nil {
			switch event {
			case core.EventBefore:
				if len(a.BeforeStacks) > 0 {
					return false
				}
			case core.EventAfter:
				if len(a.AfterStacks) > 0 {
					return false
				}
			}
		}
		return c.ShouldCapture(event, typ, a)
	})
}

// Record takes the current call stack without symbolizing it. skip 0 starts
// at the caller of Record. depth <= 0 uses DefaultDepth.
func Record(skip, depth int) *core.Stack {
	if depth <= 0 {
		depth = DefaultDepth
	}
	pcs := make([]uintptr, depth)
	n := runtime.Callers(skip+2, pcs)
	return &core.Stack{PCs: pcs[:n:n]}
}

// Symbolize resolves the frames of s in place. Symbolized stacks are left
// alone.
func Symbolize(s *core.Stack) {
	if s == nil || s.Symbolized() {
		return
	}
	s.Frames = core.ResolveFrames(s.PCs)
}

// SymbolizeActivity resolves every stack of a and returns how many were
// resolved.
func SymbolizeActivity(a *core.Activity) int {
	n := 0
	for _, s := range a.Stacks() {
		if !s.Symbolized() {
			Symbolize(s)
			n++
		}
	}
	return n
}
