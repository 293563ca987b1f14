package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/asynctrace/core"
)

// Interface compliance (compile-time assertion)
var _ core.ResourceProcessor = (*Processor)(nil)

type tick struct{ args []any }

func (t tick) Args() []any { return t.args }

type request struct {
	ctx map[string]any
}

func (r *request) Context() any { return r.ctx }

type both struct{}

func (both) Args() []any  { return []any{"args"} }
func (both) Context() any { return "context" }

type exploding struct{}

func (exploding) Args() []any { panic("boom") }

func TestProcess_Context(t *testing.T) {
	onfinish := func() {}
	p := New(func(o *Options) {
		o.BufferLimit = 3
		o.StringLimit = 2
	})

	res, err := p.Process(&request{ctx: map[string]any{
		"fd":         7,
		"path":       "/tmp/file.txt",
		"buffer":     []byte("hello world"),
		"oncomplete": onfinish,
	}})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Args)

	ctx, ok := res.Context.(*core.Object)
	require.True(t, ok)
	assert.Equal(t, 3, ctx.Len)
	assert.Equal(t, 7, ctx.Keys["fd"])
	assert.Equal(t, &core.Buffer{Len: 11, Included: 3, Raw: []byte("hel")}, ctx.Keys["buffer"])
	assert.Equal(t, &core.String{Len: 13, Included: 2, Val: "/t"}, ctx.Keys["path"])

	require.Len(t, res.Functions, 1)
	fn := res.Functions[0]
	assert.Equal(t, []string{"context", "oncomplete"}, fn.Path)
	assert.Equal(t, "oncomplete", fn.Key)
	assert.Equal(t, 2, fn.Level)
	assert.Equal(t, "onfinish", fn.Info.InferredName)
	assert.Positive(t, fn.Info.Column)
	assert.Empty(t, fn.Source)
}

func TestProcess_ArgsCaptureStringsInFull(t *testing.T) {
	p := New()

	res, err := p.Process(tick{args: []any{"a fairly long argument", 42}})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Context)

	args := res.Args.(*core.Array)
	assert.Equal(t, 2, args.Len)
	assert.Equal(t, "a fairly long argument", args.Elements[0].(*core.String).Val)
	assert.Equal(t, 42, args.Elements[1])
	assert.Empty(t, res.Functions)
	assert.NotNil(t, res.Functions)
}

func TestProcess_PlainMaps(t *testing.T) {
	p := New()

	res, err := p.Process(map[string]any{"args": []any{1}})
	require.NoError(t, err)
	assert.NotNil(t, res.Args)

	res, err = p.Process(map[string]any{"context": map[string]any{"fd": 1}})
	require.NoError(t, err)
	assert.NotNil(t, res.Context)
}

func TestProcess_Unrecognized(t *testing.T) {
	p := New()
	for _, raw := range []any{nil, 42, "text", map[string]any{"other": 1}, struct{}{}} {
		res, err := p.Process(raw)
		assert.NoError(t, err)
		assert.Nil(t, res)
	}
}

func TestProcess_Recovers(t *testing.T) {
	res, err := New().Process(exploding{})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestClassify_ArgsBeforeContext(t *testing.T) {
	key, value, ok := Classify(both{})
	require.True(t, ok)
	assert.Equal(t, KeyArgs, key)
	assert.Equal(t, []any{"args"}, value)
}
