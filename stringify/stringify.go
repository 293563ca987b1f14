// Package stringify renders captured byte buffers as text.
//
// Raw buffer captures are byte sequences. Stringification replaces the
// bytes of every Buffer node reachable from an activity's processed
// resource with one rendering per requested encoding. Buffers already
// rendered are left alone, so running it twice is harmless.
package stringify

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/hupe1980/asynctrace/core"
)

// ErrUnknownEncoding is returned for encodings that are not registered.
var ErrUnknownEncoding = errors.New("unknown encoding")

// DefaultEncodings are used when no encoding is requested.
var DefaultEncodings = []string{"utf8", "hex"}

// Encoder renders raw bytes.
type Encoder func(raw []byte) (string, error)

// Stringifier holds the encodings it can render.
type Stringifier struct {
	encoders map[string]Encoder
}

// New returns a Stringifier with the built-in encodings: utf8, hex, base64,
// latin1, ascii and utf16le.
func New() *Stringifier {
	s := &Stringifier{encoders: make(map[string]Encoder)}
	s.Register("utf8", decodeWith(unicode.UTF8.NewDecoder().Bytes))
	s.Register("hex", func(raw []byte) (string, error) { return hex.EncodeToString(raw), nil })
	s.Register("base64", func(raw []byte) (string, error) { return base64.StdEncoding.EncodeToString(raw), nil })
	s.Register("latin1", decodeWith(charmap.ISO8859_1.NewDecoder().Bytes))
	s.Register("ascii", ascii)
	s.Register("utf16le", utf16le)
	return s
}

// Register adds or replaces an encoding.
func (s *Stringifier) Register(name string, enc Encoder) {
	s.encoders[name] = enc
}

// Encodings lists the registered encodings in sorted order.
func (s *Stringifier) Encodings() []string {
	names := make([]string, 0, len(s.encoders))
	for name := range s.encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Buffers stringifies every buffer of every processed resource in
// activities. All encodings are validated before anything is changed.
func (s *Stringifier) Buffers(activities *core.ActivityMap, encodings ...string) error {
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}
	for _, enc := range encodings {
		if _, ok := s.encoders[enc]; !ok {
			return fmt.Errorf("stringify: %w %q", ErrUnknownEncoding, enc)
		}
	}
	if activities == nil {
		return nil
	}

	activities.Range(func(a *core.Activity) bool {
		p := a.Processed
		if p == nil {
			return true
		}
		render := func(b *core.Buffer) { s.render(b, encodings) }
		core.WalkBuffers(p.Context, render)
		core.WalkBuffers(p.Args, render)
		for _, fn := range p.Functions {
			core.WalkBuffers(fn.Arguments, render)
		}
		return true
	})
	return nil
}

func (s *Stringifier) render(b *core.Buffer, encodings []string) {
	if b == nil || b.Stringified() {
		return
	}
	strs := make(map[string]string, len(encodings))
	for _, enc := range encodings {
		out, err := s.encoders[enc](b.Raw)
		if err != nil {
			out = string(core.Inaccessible)
		}
		strs[enc] = out
	}
	b.Strings = strs
	b.Raw = nil
}

var defaultStringifier = New()

// Buffers stringifies with the built-in encodings.
func Buffers(activities *core.ActivityMap, encodings ...string) error {
	return defaultStringifier.Buffers(activities, encodings...)
}

func decodeWith(decode func([]byte) ([]byte, error)) Encoder {
	return func(raw []byte) (string, error) {
		out, err := decode(raw)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func ascii(raw []byte) (string, error) {
	out := make([]byte, len(raw))
	for i, c := range raw {
		out[i] = c & 0x7f
	}
	return string(out), nil
}

// utf16le ignores a trailing odd byte.
func utf16le(raw []byte) (string, error) {
	raw = raw[:len(raw)&^1]
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
