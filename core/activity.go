package core

import (
	"time"
)

// Frame is one symbolized call-stack entry.
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Stack is a call stack recorded at the moment of an event. PCs are taken
// live; Frames are filled in by symbolization, which may be deferred.
type Stack struct {
	PCs    []uintptr `json:"-"`
	Frames []Frame   `json:"frames"`
}

// Symbolized reports whether Frames has been resolved from PCs.
func (s *Stack) Symbolized() bool {
	return s != nil && (len(s.PCs) == 0 || len(s.Frames) > 0)
}

// FunctionInfo describes where a callable was declared.
type FunctionInfo struct {
	File         string `json:"file"`
	Line         int    `json:"line"`   // 1-based, 0 when unknown
	Column       int    `json:"column"` // 1-based, 0 when unknown
	Name         string `json:"name"`
	InferredName string `json:"inferredName"`
	ResolvedName string `json:"resolvedName"`
}

// FunctionRecord describes one callable discovered inside a payload. It
// never references the callable itself.
type FunctionRecord struct {
	Path      []string     `json:"path"`
	Key       string       `json:"key"`
	Level     int          `json:"level"`
	Info      FunctionInfo `json:"info"`
	Arguments any          `json:"arguments,omitempty"`
	Source    string       `json:"source,omitempty"`
}

// ProcessedResource is the durable, size-capped replacement of a live
// payload. Exactly one of Context or Args is set.
type ProcessedResource struct {
	Context   any              `json:"context,omitempty"`
	Args      any              `json:"args,omitempty"`
	Functions []FunctionRecord `json:"functions,omitempty"`
}

// Activity is the lifecycle record of one asynchronous operation.
//
// Contract:
//   - ID, Type and TriggerID never change after creation
//   - the four timestamp sequences are append-only and each is non-decreasing
//   - stacks are present only where the capture policy approved
//   - Resource holds the raw payload until Finalize releases it
type Activity struct {
	ID        ID     `json:"id"`
	Type      string `json:"type"`
	TriggerID ID     `json:"triggerId"`

	Init    []time.Duration `json:"init"`
	Before  []time.Duration `json:"before"`
	After   []time.Duration `json:"after"`
	Destroy []time.Duration `json:"destroy"`

	InitStack    *Stack   `json:"initStack,omitempty"`
	BeforeStacks []*Stack `json:"beforeStacks,omitempty"`
	AfterStacks  []*Stack `json:"afterStacks,omitempty"`
	DestroyStack *Stack   `json:"destroyStack,omitempty"`

	// Resource is the raw host payload while the activity is live.
	Resource any `json:"-"`
	// Processed replaces Resource once the activity has been finalized.
	Processed *ProcessedResource `json:"resource,omitempty"`

	finalized bool
}

// NewActivity creates a record for a freshly created operation.
func NewActivity(id ID, typ string, triggerID ID, resource any) *Activity {
	return &Activity{
		ID:        id,
		Type:      typ,
		TriggerID: triggerID,
		Init:      []time.Duration{},
		Before:    []time.Duration{},
		After:     []time.Duration{},
		Destroy:   []time.Duration{},
		Resource:  resource,
	}
}

// Timestamps returns the sequence recorded for event.
func (a *Activity) Timestamps(event Event) []time.Duration {
	switch event {
	case EventInit:
		return a.Init
	case EventBefore:
		return a.Before
	case EventAfter:
		return a.After
	case EventDestroy:
		return a.Destroy
	default:
		return nil
	}
}

// Append records a timestamp for event. A timestamp earlier than the last one
// in the same sequence is clamped so every sequence stays non-decreasing.
func (a *Activity) Append(event Event, ts time.Duration) {
	seq := a.Timestamps(event)
	if n := len(seq); n > 0 && ts < seq[n-1] {
		ts = seq[n-1]
	}
	seq = append(seq, ts)
	switch event {
	case EventInit:
		a.Init = seq
	case EventBefore:
		a.Before = seq
	case EventAfter:
		a.After = seq
	case EventDestroy:
		a.Destroy = seq
	}
}

// AttachStack stores a stack captured for event.
func (a *Activity) AttachStack(event Event, s *Stack) {
	switch event {
	case EventInit:
		a.InitStack = s
	case EventBefore:
		a.BeforeStacks = append(a.BeforeStacks, s)
	case EventAfter:
		a.AfterStacks = append(a.AfterStacks, s)
	case EventDestroy:
		a.DestroyStack = s
	}
}

// Stacks returns every captured stack of the activity.
func (a *Activity) Stacks() []*Stack {
	out := make([]*Stack, 0, 2+len(a.BeforeStacks)+len(a.AfterStacks))
	if a.InitStack != nil {
		out = append(out, a.InitStack)
	}
	out = append(out, a.BeforeStacks...)
	out = append(out, a.AfterStacks...)
	if a.DestroyStack != nil {
		out = append(out, a.DestroyStack)
	}
	return out
}

// Finalize replaces the raw payload with its processed form and releases
// the raw reference. p may be nil.
func (a *Activity) Finalize(p *ProcessedResource) {
	a.Processed = p
	a.Resource = nil
	a.finalized = true
}

// Finalized reports whether Finalize has run.
func (a *Activity) Finalized() bool { return a.finalized }

// Destroyed reports whether the host released the operation.
func (a *Activity) Destroyed() bool { return len(a.Destroy) > 0 }
