package core

// Placeholder stands in for a value that was deliberately not copied.
type Placeholder string

const (
	// Inaccessible marks a value that could not be read (access panicked,
	// opaque runtime value, non-introspectable callable).
	Inaccessible Placeholder = "<Inaccessible>"
	// Deleted marks an object whose contents were omitted by policy while its
	// type and proto are still recorded.
	Deleted Placeholder = "<deleted>"
	// Cyclic marks a revisit of a value already on the traversal path.
	Cyclic Placeholder = "<cyclic>"
)

// Node type tags as they appear in plain snapshots.
const (
	TypeObject = "object"
	TypeArray  = "array"
	TypeString = "string"
	TypeBuffer = "Buffer"
)

// Object is the snapshot of a keyed structure (map or struct).
type Object struct {
	// Proto is the Go type name, nil for unnamed map types.
	Proto *string
	// Keys holds the cloned values; nil when Val is Deleted.
	Keys map[string]any
	// Len is the total key count, Included how many were copied.
	Len      int
	Included int
	// Val is Deleted when the contents were omitted.
	Val Placeholder
}

// Array is the snapshot of a sequence.
type Array struct {
	Len      int
	Included int
	Elements []any
}

// String is the snapshot of a string; Len and Included count characters.
type String struct {
	Len      int
	Included int
	Val      string
}

// Buffer is the snapshot of a byte sequence. Raw holds the first Included
// bytes until stringification replaces it with one string per encoding.
type Buffer struct {
	Len      int
	Included int
	Raw      []byte
	Strings  map[string]string
}

// Stringified reports whether the raw capture was rendered into encodings.
func (b *Buffer) Stringified() bool { return b.Strings != nil }

// ProtoName returns a pointer to name, or nil for the empty name.
func ProtoName(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

// WalkBuffers calls fn for every Buffer reachable from node.
func WalkBuffers(node any, fn func(b *Buffer)) {
	switch n := node.(type) {
	case *Buffer:
		fn(n)
	case *Array:
		for _, e := range n.Elements {
			WalkBuffers(e, fn)
		}
	case *Object:
		for _, v := range n.Keys {
			WalkBuffers(v, fn)
		}
	case []any:
		for _, e := range n {
			WalkBuffers(e, fn)
		}
	case map[string]any:
		for _, v := range n {
			WalkBuffers(v, fn)
		}
	}
}
