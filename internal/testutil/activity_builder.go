package testutil

import (
	"time"

	"github.com/hupe1980/asynctrace/core"
)

// ActivityBuilder provides a fluent helper for constructing activities in
// tests. Example:
//
//	a := NewActivityBuilder(7, "FSREQWRAP").Trigger(1).Event(core.EventBefore, time.Millisecond).Build()
//
// The init timestamp defaults to 0.
type ActivityBuilder struct {
	a         *core.Activity
	processed *core.ProcessedResource
	finalize  bool
}

// NewActivityBuilder creates a builder for a root-triggered activity.
func NewActivityBuilder(id core.ID, typ string) *ActivityBuilder {
	a := core.NewActivity(id, typ, core.RootID, nil)
	a.Append(core.EventInit, 0)
	return &ActivityBuilder{a: a}
}

// Trigger sets the trigger id (chainable).
func (b *ActivityBuilder) Trigger(id core.ID) *ActivityBuilder { b.a.TriggerID = id; return b }

// Resource sets the raw payload (chainable).
func (b *ActivityBuilder) Resource(r any) *ActivityBuilder { b.a.Resource = r; return b }

// Event appends a timestamp for event (chainable).
func (b *ActivityBuilder) Event(event core.Event, ts time.Duration) *ActivityBuilder {
	b.a.Append(event, ts)
	return b
}

// Stack attaches a symbolized stack with the given function names (chainable).
func (b *ActivityBuilder) Stack(event core.Event, functions ...string) *ActivityBuilder {
	s := &core.Stack{Frames: make([]core.Frame, 0, len(functions))}
	for i, fn := range functions {
		s.Frames = append(s.Frames, core.Frame{Function: fn, File: "main.go", Line: i + 1})
	}
	b.a.AttachStack(event, s)
	return b
}

// Processed finalizes the activity with p on Build (chainable).
func (b *ActivityBuilder) Processed(p *core.ProcessedResource) *ActivityBuilder {
	b.processed = p
	b.finalize = true
	return b
}

// Build returns the activity.
func (b *ActivityBuilder) Build() *core.Activity {
	if b.finalize {
		b.a.Finalize(b.processed)
	}
	return b.a
}

// ActivityMap builds an ordered map from activities.
func ActivityMap(activities ...*core.Activity) *core.ActivityMap {
	m := core.NewActivityMap()
	for _, a := range activities {
		m.Add(a)
	}
	return m
}
