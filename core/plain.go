package core

import (
	"fmt"
	"math"
	"runtime"
	"time"
)

// Plain converts a snapshot node into a tree made only of map[string]any,
// []any and scalars, suitable for JSON or CBOR encoding.
func Plain(node any) any {
	switch n := node.(type) {
	case nil:
		return nil
	case Placeholder:
		return string(n)
	case *String:
		return map[string]any{"type": TypeString, "len": n.Len, "included": n.Included, "val": n.Val}
	case *Buffer:
		m := map[string]any{"type": TypeBuffer, "len": n.Len, "included": n.Included}
		if n.Strings != nil {
			strs := make(map[string]any, len(n.Strings))
			for enc, s := range n.Strings {
				strs[enc] = s
			}
			m["val"] = strs
		} else {
			raw := make([]any, len(n.Raw))
			for i, b := range n.Raw {
				raw[i] = int(b)
			}
			m["val"] = raw
		}
		return m
	case *Array:
		elems := make([]any, len(n.Elements))
		for i, e := range n.Elements {
			elems[i] = Plain(e)
		}
		return map[string]any{"type": TypeArray, "len": n.Len, "included": n.Included, "elements": elems}
	case *Object:
		m := map[string]any{"type": TypeObject, "proto": nil}
		if n.Proto != nil {
			m["proto"] = *n.Proto
		}
		if n.Val != "" {
			m["val"] = string(n.Val)
			return m
		}
		keys := make(map[string]any, len(n.Keys))
		for k, v := range n.Keys {
			keys[k] = Plain(v)
		}
		m["keys"] = keys
		if n.Included < n.Len {
			m["len"] = n.Len
			m["included"] = n.Included
		}
		return m
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = Plain(v)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = Plain(v)
		}
		return out
	case float64:
		return plainFloat(n)
	case float32:
		if f := float64(n); math.IsNaN(f) || math.IsInf(f, 0) {
			return plainFloat(f)
		}
		return n
	case complex64, complex128:
		return fmt.Sprint(n)
	default:
		return n
	}
}

// plainFloat spells out values that JSON cannot represent.
func plainFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

// PlainFunction converts a function record.
func PlainFunction(f FunctionRecord) map[string]any {
	path := make([]any, len(f.Path))
	for i, p := range f.Path {
		path[i] = p
	}
	m := map[string]any{
		"path":  path,
		"key":   f.Key,
		"level": f.Level,
		"info": map[string]any{
			"file":         f.Info.File,
			"line":         f.Info.Line,
			"column":       f.Info.Column,
			"name":         f.Info.Name,
			"inferredName": f.Info.InferredName,
			"resolvedName": f.Info.ResolvedName,
		},
		"arguments": Plain(f.Arguments),
	}
	if f.Source != "" {
		m["source"] = f.Source
	}
	return m
}

// PlainResource converts a processed resource; nil stays nil.
func PlainResource(p *ProcessedResource) any {
	if p == nil {
		return nil
	}
	m := map[string]any{}
	if p.Context != nil {
		m["context"] = Plain(p.Context)
	}
	if p.Args != nil {
		m["args"] = Plain(p.Args)
	}
	fns := make([]any, len(p.Functions))
	for i, f := range p.Functions {
		fns[i] = PlainFunction(f)
	}
	m["functions"] = fns
	return m
}

// PlainActivity converts an activity. The raw resource of an activity that
// was not finalized is never emitted.
func PlainActivity(a *Activity) map[string]any {
	stacks := func(ss []*Stack) []any {
		out := make([]any, len(ss))
		for i, s := range ss {
			out[i] = plainStack(s)
		}
		return out
	}
	return map[string]any{
		"id":           uint64(a.ID),
		"type":         a.Type,
		"triggerId":    uint64(a.TriggerID),
		"init":         plainDurations(a.Init),
		"before":       plainDurations(a.Before),
		"after":        plainDurations(a.After),
		"destroy":      plainDurations(a.Destroy),
		"initStack":    plainStack(a.InitStack),
		"beforeStacks": stacks(a.BeforeStacks),
		"afterStacks":  stacks(a.AfterStacks),
		"destroyStack": plainStack(a.DestroyStack),
		"resource":     PlainResource(a.Processed),
		"finalized":    a.finalized,
	}
}

// PlainActivities converts an ordered map into a slice preserving order.
func PlainActivities(m *ActivityMap) []any {
	out := make([]any, 0, m.Len())
	m.Range(func(a *Activity) bool {
		out = append(out, PlainActivity(a))
		return true
	})
	return out
}

func plainDurations(ds []time.Duration) []any {
	out := make([]any, len(ds))
	for i, d := range ds {
		out[i] = d.Nanoseconds()
	}
	return out
}

func plainStack(s *Stack) []any {
	if s == nil {
		return []any{}
	}
	frames := s.Frames
	if !s.Symbolized() {
		frames = ResolveFrames(s.PCs)
	}
	out := make([]any, len(frames))
	for i, f := range frames {
		out[i] = map[string]any{"function": f.Function, "file": f.File, "line": f.Line}
	}
	return out
}

// ResolveFrames symbolizes program counters recorded by runtime.Callers.
func ResolveFrames(pcs []uintptr) []Frame {
	if len(pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs)
	out := make([]Frame, 0, len(pcs))
	for {
		f, more := frames.Next()
		out = append(out, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return out
}
