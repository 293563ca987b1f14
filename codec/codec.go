// Package codec encodes plain snapshots as JSON or CBOR, optionally zstd
// compressed.
//
// Snapshots produced by core.PlainActivities contain only maps, slices and
// scalars, so both formats round-trip them without custom marshalers. CBOR
// output uses Core Deterministic Encoding: the same snapshot always encodes
// to the same bytes.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Format names an encoding.
type Format string

const (
	// JSON is encoding/json output. Encode's default.
	JSON Format = "json"
	// CBOR is deterministic RFC 8949 core encoding.
	CBOR Format = "cbor"
)

// ParseFormat returns the format for name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case JSON, CBOR:
		return f, nil
	default:
		return "", fmt.Errorf("codec: unknown format %q", name)
	}
}

// Options configures Encode.
type Options struct {
	Format Format
	// Indent pretty-prints JSON. Ignored for CBOR.
	Indent bool
	// Compress wraps the output in a zstd frame.
	Compress bool
}

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serializes v.
func Encode(v any, opts Options) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch opts.Format {
	case JSON, "":
		if opts.Indent {
			data, err = json.MarshalIndent(v, "", "  ")
		} else {
			data, err = json.Marshal(v)
		}
	case CBOR:
		data, err = encMode.Marshal(v)
	default:
		return nil, fmt.Errorf("codec: unknown format %q", opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: %s encode: %w", opts.Format, err)
	}
	if opts.Compress {
		data = zstdEncoder.EncodeAll(data, nil)
	}
	return data, nil
}

// Write encodes v to w and returns the number of bytes written.
func Write(w io.Writer, v any, opts Options) (int, error) {
	data, err := Encode(v, opts)
	if err != nil {
		return 0, err
	}
	return w.Write(data)
}

// Compressed reports whether data starts with a zstd frame.
func Compressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// Decode parses data produced by Encode into v. Compressed input is
// detected and inflated first.
func Decode(data []byte, format Format, v any) error {
	if Compressed(data) {
		raw, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("codec: zstd decompress: %w", err)
		}
		data = raw
	}
	switch format {
	case JSON, "":
		return json.Unmarshal(data, v)
	case CBOR:
		return decMode.Unmarshal(data, v)
	default:
		return fmt.Errorf("codec: unknown format %q", format)
	}
}

// Diagnose renders CBOR data in diagnostic notation (RFC 8949 §8).
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
