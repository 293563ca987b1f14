// Package scout finds callables inside payloads and describes where they
// were declared.
//
// Scout walks exported struct fields, map keys and sequence indices and
// emits one core.FunctionRecord per callable found, together with the path
// of keys that leads to it. Records never reference the callable itself.
package scout

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"github.com/hupe1980/asynctrace/clone"
	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/internal/util"
	"github.com/hupe1980/asynctrace/logging"
)

// DefaultMaxDepth bounds how many levels below the root are searched.
const DefaultMaxDepth = 8

// Options configures a scouting run.
type Options struct {
	// MaxDepth is the deepest level searched; 0 means DefaultMaxDepth.
	MaxDepth int
	// CaptureArguments records the arguments of the last invocation of
	// callables that expose them.
	CaptureArguments bool
	// CaptureSource records the function text when the Locator finds it.
	CaptureSource bool
	// ArgumentClone bounds captured arguments. Strings are always captured
	// in full.
	ArgumentClone clone.Options
	// Locator adds column, inferred name and source. nil skips source lookup.
	Locator *Locator
	// Logger receives introspection failures at debug level.
	Logger logging.Logger
}

// Scout returns the callables reachable from root in traversal order.
func Scout(root any, opts Options) []core.FunctionRecord {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	opts.Logger = core.EnsureLogger(opts.Logger)

	s := &scouter{opts: opts, path: util.Path{}}
	s.walk(reflect.ValueOf(root), nil)
	return s.records
}

type scouter struct {
	opts    Options
	path    util.Path
	records []core.FunctionRecord
}

func (s *scouter) walk(v reflect.Value, path []string) {
	if !v.IsValid() || len(path) > s.opts.MaxDepth {
		return
	}
	if clone.IsCallable(v) {
		s.record(v, path)
		return
	}

	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			s.walk(v.Elem(), path)
		}
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		leave, ok := s.path.Enter(v)
		if !ok {
			return
		}
		defer leave()
		s.walk(v.Elem(), path)
	case reflect.Struct:
		for _, f := range util.ExposedFields(v.Type()) {
			name, _ := util.FieldName(f)
			s.walk(v.FieldByIndex(f.Index), child(path, name))
		}
	case reflect.Map:
		leave, ok := s.path.Enter(v)
		if !ok {
			return
		}
		defer leave()
		keys, names := util.SortedKeys(v)
		for i, k := range keys {
			s.walk(v.MapIndex(k), child(path, names[i]))
		}
	case reflect.Slice, reflect.Array:
		if util.IsByteLike(v) {
			return
		}
		leave, ok := s.path.Enter(v)
		if !ok {
			return
		}
		defer leave()
		for i := 0; i < v.Len(); i++ {
			s.walk(v.Index(i), child(path, strconv.Itoa(i)))
		}
	}
}

func child(path []string, key string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = key
	return out
}

func (s *scouter) record(v reflect.Value, path []string) {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.CanInterface() {
		return
	}

	rec := core.FunctionRecord{Path: path, Level: len(path)}
	if len(path) > 0 {
		rec.Key = path[len(path)-1]
	}

	var fn any
	var callable core.Callable
	if v.Kind() == reflect.Func {
		fn = v.Interface()
	} else if c, ok := v.Interface().(core.Callable); ok {
		callable = c
		fn = safeFunc(c)
	}

	info, loc, found := Describe(fn, s.opts.Locator)
	rec.Info = info
	if s.opts.CaptureSource && found {
		rec.Source = loc.Source
	}
	if s.opts.CaptureArguments {
		rec.Arguments = s.arguments(callable, path)
	}
	s.records = append(s.records, rec)
}

func safeFunc(c core.Callable) (fn any) {
	defer func() {
		if r := recover(); r != nil {
			fn = nil
		}
	}()
	return c.Func()
}

func (s *scouter) arguments(c core.Callable, path []string) any {
	args, err := safeArguments(c)
	if err != nil {
		s.opts.Logger.Debug("arguments not captured", "error", &core.IntrospectionError{Path: path, Err: err})
		return core.Inaccessible
	}
	opts := s.opts.ArgumentClone
	opts.StringLimit = clone.Unlimited
	return clone.Clone(args, opts)
}

func safeArguments(c core.Callable) (args []any, err error) {
	if c == nil {
		return nil, errPlainFunc
	}
	defer func() {
		if r := recover(); r != nil {
			args, err = nil, errPanicked
		}
	}()
	return c.Arguments()
}

// Describe resolves the declaration site of fn. The Location is only valid
// when the returned bool is true. fn values that are not funcs yield a zero
// FunctionInfo.
func Describe(fn any, loc *Locator) (core.FunctionInfo, Location, bool) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return core.FunctionInfo{}, Location{}, false
	}
	pc := v.Pointer()
	rf := runtime.FuncForPC(pc)
	if rf == nil {
		return core.FunctionInfo{}, Location{}, false
	}

	file, line := rf.FileLine(rf.Entry())
	resolved := rf.Name()
	name, enclosing := splitSymbol(resolved)
	info := core.FunctionInfo{
		File:         file,
		Line:         line,
		Name:         name,
		InferredName: name,
		ResolvedName: resolved,
	}
	if name == "" {
		info.InferredName = enclosing
	}

	l, found := loc.Locate(file, line)
	if found {
		info.Column = l.Column
		if l.InferredName != "" {
			info.InferredName = l.InferredName
		}
	}
	return info, l, found
}

// splitSymbol splits a runtime symbol into the function's own name and, for
// closures, the name of the enclosing function. Closures have no own name.
//
//	example.com/pkg.Read            -> "Read", ""
//	example.com/pkg.(*File).Close-fm -> "Close", ""
//	example.com/pkg.Read.func1.2    -> "", "Read"
func splitSymbol(symbol string) (name, enclosing string) {
	symbol = strings.TrimSuffix(symbol, "-fm")
	symbol = strings.ReplaceAll(symbol, "[...]", "")
	rest := symbol
	if i := strings.LastIndex(rest, "/"); i >= 0 {
		rest = rest[i+1:]
	}
	if i := strings.Index(rest, "."); i >= 0 {
		rest = rest[i+1:]
	}
	parts := strings.Split(rest, ".")
	for i, p := range parts {
		if isClosureSegment(p) {
			if i > 0 && parts[i-1] != "glob" && parts[i-1] != "" {
				enclosing = parts[i-1]
			}
			return "", enclosing
		}
	}
	return parts[len(parts)-1], ""
}

func isClosureSegment(p string) bool {
	digits := strings.TrimPrefix(p, "func")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
