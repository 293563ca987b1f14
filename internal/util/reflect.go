package util

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Identity keys a reference value (pointer, map, slice) for cycle tracking.
// Two slices with the same backing array but different lengths are distinct.
type Identity struct {
	Kind reflect.Kind
	Ptr  uintptr
	Len  int
	Type reflect.Type
}

// IdentityOf returns the identity of v and whether v is a trackable reference.
func IdentityOf(v reflect.Value) (Identity, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return Identity{}, false
		}
		return Identity{Kind: v.Kind(), Ptr: v.Pointer(), Type: v.Type()}, true
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return Identity{}, false
		}
		return Identity{Kind: v.Kind(), Ptr: v.Pointer(), Len: v.Len(), Type: v.Type()}, true
	default:
		return Identity{}, false
	}
}

// Path tracks the identities currently being traversed.
type Path map[Identity]struct{}

// Enter marks v as on-path. It returns false when v is already on the path,
// i.e. the traversal found a cycle.
func (p Path) Enter(v reflect.Value) (leave func(), ok bool) {
	id, trackable := IdentityOf(v)
	if !trackable {
		return func() {}, true
	}
	if _, seen := p[id]; seen {
		return nil, false
	}
	p[id] = struct{}{}
	return func() { delete(p, id) }, true
}

// FieldName returns the key a struct field is exposed under, honoring json
// tags the way encoding/json does. Unexported and "-" tagged fields are
// reported as not exposed.
func FieldName(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", false
	}
	jsonTag := field.Tag.Get("json")
	if jsonTag == "-" {
		return "", false
	}
	fieldName := field.Name
	if jsonTag != "" {
		parts := strings.Split(jsonTag, ",")
		if parts[0] != "" {
			fieldName = parts[0]
		}
	}
	return fieldName, true
}

// ExposedFields lists the exposed fields of struct type t in declaration order.
func ExposedFields(t reflect.Type) []reflect.StructField {
	fields := make([]reflect.StructField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if _, ok := FieldName(f); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// TypeName returns the declared name of t, looking through pointers.
// Unnamed types yield the empty string.
func TypeName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// IsByteLike reports whether v is a byte slice or byte array of any named type.
func IsByteLike(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return v.Type().Elem().Kind() == reflect.Uint8
	default:
		return false
	}
}

// Bytes copies up to limit bytes out of a byte-like value. limit < 0 copies all.
func Bytes(v reflect.Value, limit int) []byte {
	n := v.Len()
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]byte, n)
	if v.Kind() == reflect.Slice {
		copy(out, v.Bytes()[:n])
		return out
	}
	for i := 0; i < n; i++ {
		out[i] = byte(v.Index(i).Uint())
	}
	return out
}

// KeyString renders a map key.
func KeyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}
	return fmt.Sprintf("<%s>", k.Type())
}

// SortedKeys returns the map keys of v ordered by their rendering. Keys
// that render alike are ordered by their dynamic type name.
func SortedKeys(v reflect.Value) ([]reflect.Value, []string) {
	keys := v.MapKeys()
	names := make([]string, len(keys))
	types := make([]string, len(keys))
	for i, k := range keys {
		names[i] = KeyString(k)
		types[i] = keyType(k)
	}
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if names[idx[a]] != names[idx[b]] {
			return names[idx[a]] < names[idx[b]]
		}
		return types[idx[a]] < types[idx[b]]
	})
	outKeys := make([]reflect.Value, len(keys))
	outNames := make([]string, len(keys))
	for i, j := range idx {
		outKeys[i] = keys[j]
		outNames[i] = names[j]
	}
	return outKeys, outNames
}

func keyType(k reflect.Value) string {
	if k.Kind() == reflect.Interface && !k.IsNil() {
		return k.Elem().Type().String()
	}
	return k.Type().String()
}

// IsScalarKind reports kinds copied verbatim.
func IsScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}
