// Package clone deep-copies host payloads into size-capped snapshot nodes.
//
// Clone never fails: callables are dropped, cycles become core.Cyclic,
// values that cannot be read become core.Inaccessible and containers beyond
// the depth budget are recorded with core.Deleted. Truncation is explicit:
// every Array, String and Buffer node carries the original length next to
// the number of items actually included.
package clone

import (
	"bytes"
	"reflect"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/internal/util"
)

// Unlimited disables a limit.
const Unlimited = -1

// Options is the capture budget of one clone call.
type Options struct {
	// CollectionLimit caps array elements and object keys.
	CollectionLimit int
	// BufferLimit caps bytes copied out of byte-like values.
	BufferLimit int
	// StringLimit caps characters copied out of strings. 0 copies none.
	StringLimit int
	// MaxDepth is the deepest container level that is expanded; the root is
	// level 0. Deeper objects are recorded as deleted. 0 disables the limit.
	MaxDepth int
	// Omit elects to record an object as deleted. key is the key the value
	// is stored under ("" at the root), typeName its Go type name.
	Omit func(key string, typeName string) bool
}

// FullCapture copies everything.
var FullCapture = Options{CollectionLimit: Unlimited, BufferLimit: Unlimited, StringLimit: Unlimited}

var (
	callableType = reflect.TypeOf((*core.Callable)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	timeType     = reflect.TypeOf(time.Time{})
	bufferType   = reflect.TypeOf(&bytes.Buffer{})
)

// Clone copies v according to opts.
func Clone(v any, opts Options) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = core.Inaccessible
		}
	}()
	c := &cloner{opts: opts, path: util.Path{}}
	return c.clone("", reflect.ValueOf(v), 0)
}

// IsCallable reports whether v is a Go func or a core.Callable.
func IsCallable(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	if v.Kind() == reflect.Func {
		return true
	}
	if v.Type().Implements(callableType) {
		return true
	}
	if v.Kind() == reflect.Interface && !v.IsNil() {
		return IsCallable(v.Elem())
	}
	return false
}

type cloner struct {
	opts Options
	path util.Path
}

func limit(n, max int) int {
	if max < 0 || n < max {
		return n
	}
	return max
}

// safe runs fn, turning a panic into the Inaccessible placeholder.
func safe(fn func() any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = core.Inaccessible
		}
	}()
	return fn()
}

func (c *cloner) clone(key string, v reflect.Value, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if IsCallable(v) {
		return nil
	}
	if v.CanInterface() {
		if node, ok := c.recloneNode(v.Interface()); ok {
			return node
		}
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return c.clone(key, v.Elem(), depth)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if v.Type() == bufferType {
			return c.buffer(reflect.ValueOf(v.Interface().(*bytes.Buffer).Bytes()))
		}
		if v.Type().Implements(errorType) {
			return c.errorValue(v)
		}
		leave, ok := c.path.Enter(v)
		if !ok {
			return core.Cyclic
		}
		defer leave()
		return c.clone(key, v.Elem(), depth)
	case reflect.String:
		return c.str(v.String(), c.opts.StringLimit)
	case reflect.Chan, reflect.UnsafePointer:
		return core.Inaccessible
	}

	if util.IsScalarKind(v.Kind()) {
		if v.CanInterface() {
			return v.Interface()
		}
		return core.Inaccessible
	}
	if v.Type() == timeType {
		return v.Interface().(time.Time).Format(time.RFC3339Nano)
	}
	if v.Type().Implements(errorType) && v.CanInterface() {
		return c.errorValue(v)
	}
	if util.IsByteLike(v) {
		return c.buffer(v)
	}

	typeName := util.TypeName(v.Type())
	if c.opts.Omit != nil && c.opts.Omit(key, typeName) {
		if v.Kind() == reflect.Map || v.Kind() == reflect.Struct {
			return &core.Object{Proto: core.ProtoName(typeName), Val: core.Deleted}
		}
		return core.Deleted
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		leave, ok := c.path.Enter(v)
		if !ok {
			return core.Cyclic
		}
		defer leave()
		return c.array(v, depth)
	case reflect.Map:
		leave, ok := c.path.Enter(v)
		if !ok {
			return core.Cyclic
		}
		defer leave()
		if c.tooDeep(depth) {
			return &core.Object{Proto: core.ProtoName(typeName), Val: core.Deleted}
		}
		return c.mapValue(v, typeName, depth)
	case reflect.Struct:
		if c.tooDeep(depth) {
			return &core.Object{Proto: core.ProtoName(typeName), Val: core.Deleted}
		}
		return c.structValue(v, typeName, depth)
	default:
		return core.Inaccessible
	}
}

func (c *cloner) tooDeep(depth int) bool {
	return c.opts.MaxDepth > 0 && depth > c.opts.MaxDepth
}

func (c *cloner) str(s string, max int) *core.String {
	n := utf8.RuneCountInString(s)
	included := limit(n, max)
	val := s
	if included < n {
		val = truncateRunes(s, included)
	}
	return &core.String{Len: n, Included: included, Val: val}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func (c *cloner) buffer(v reflect.Value) *core.Buffer {
	n := v.Len()
	included := limit(n, c.opts.BufferLimit)
	return &core.Buffer{Len: n, Included: included, Raw: util.Bytes(v, included)}
}

func (c *cloner) errorValue(v reflect.Value) any {
	return safe(func() any {
		err := v.Interface().(error)
		return &core.Object{
			Proto:    core.ProtoName(util.TypeName(v.Type())),
			Keys:     map[string]any{"message": c.str(err.Error(), Unlimited)},
			Len:      1,
			Included: 1,
		}
	})
}

func (c *cloner) array(v reflect.Value, depth int) *core.Array {
	n := v.Len()
	if c.tooDeep(depth) {
		return &core.Array{Len: n, Included: 0, Elements: []any{}}
	}
	included := limit(n, c.opts.CollectionLimit)
	elems := make([]any, included)
	for i := 0; i < included; i++ {
		elem := v.Index(i)
		elems[i] = safe(func() any { return c.clone("", elem, depth+1) })
	}
	return &core.Array{Len: n, Included: included, Elements: elems}
}

func (c *cloner) mapValue(v reflect.Value, typeName string, depth int) *core.Object {
	keys, names := util.SortedKeys(v)
	obj := &core.Object{Proto: core.ProtoName(typeName), Keys: map[string]any{}}
	seen := make(map[string]bool, len(keys))
	for i, k := range keys {
		val := v.MapIndex(k)
		name := names[i]
		if IsCallable(val) || seen[name] {
			continue
		}
		seen[name] = true
		obj.Len++
		if c.opts.CollectionLimit >= 0 && obj.Included >= c.opts.CollectionLimit {
			continue
		}
		obj.Keys[name] = safe(func() any { return c.clone(name, val, depth+1) })
		obj.Included++
	}
	return obj
}

func (c *cloner) structValue(v reflect.Value, typeName string, depth int) *core.Object {
	obj := &core.Object{Proto: core.ProtoName(typeName), Keys: map[string]any{}}
	fields := util.ExposedFields(v.Type())
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		name, _ := util.FieldName(f)
		val := v.FieldByIndex(f.Index)
		if IsCallable(val) || seen[name] {
			continue
		}
		seen[name] = true
		obj.Len++
		if c.opts.CollectionLimit >= 0 && obj.Included >= c.opts.CollectionLimit {
			continue
		}
		obj.Keys[name] = safe(func() any { return c.clone(name, val, depth+1) })
		obj.Included++
	}
	return obj
}

// recloneNode re-applies the budget to values that already are snapshot
// nodes, keeping their original lengths.
func (c *cloner) recloneNode(v any) (any, bool) {
	switch n := v.(type) {
	case core.Placeholder:
		return n, true
	case *core.String:
		if n == nil {
			return nil, true
		}
		included := limit(n.Included, c.opts.StringLimit)
		return &core.String{Len: n.Len, Included: included, Val: truncateRunes(n.Val, included)}, true
	case *core.Buffer:
		if n == nil {
			return nil, true
		}
		included := limit(n.Included, c.opts.BufferLimit)
		out := &core.Buffer{Len: n.Len, Included: included}
		if n.Raw != nil {
			out.Raw = append([]byte{}, n.Raw[:limit(len(n.Raw), included)]...)
		}
		if n.Strings != nil {
			out.Strings = make(map[string]string, len(n.Strings))
			for k, s := range n.Strings {
				out.Strings[k] = s
			}
		}
		return out, true
	case *core.Array:
		if n == nil {
			return nil, true
		}
		included := limit(n.Included, c.opts.CollectionLimit)
		elems := make([]any, included)
		for i := 0; i < included && i < len(n.Elements); i++ {
			elems[i] = c.clone("", reflect.ValueOf(n.Elements[i]), 0)
		}
		return &core.Array{Len: n.Len, Included: included, Elements: elems}, true
	case *core.Object:
		if n == nil {
			return nil, true
		}
		out := &core.Object{Proto: n.Proto, Len: n.Len, Val: n.Val}
		if n.Val != "" {
			return out, true
		}
		out.Keys = make(map[string]any, len(n.Keys))
		names := make([]string, 0, len(n.Keys))
		for k := range n.Keys {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if c.opts.CollectionLimit >= 0 && out.Included >= c.opts.CollectionLimit {
				break
			}
			out.Keys[k] = c.clone(k, reflect.ValueOf(n.Keys[k]), 0)
			out.Included++
		}
		return out, true
	default:
		return nil, false
	}
}
