package asynctrace

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/asynctrace/codec"
	"github.com/hupe1980/asynctrace/collector"
	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/hostloop"
	"github.com/hupe1980/asynctrace/internal/testutil"
	"github.com/hupe1980/asynctrace/logging"
	"github.com/hupe1980/asynctrace/metrics"
)

func readFile(t *testing.T, optFns ...func(o *Options)) (*Tracker, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	loop := hostloop.New()
	tracker := New(loop, optFns...).Enable()

	loop.NextTick(func(...any) {})
	var data []byte
	loop.ReadFile(path, func(d []byte, err error) {
		require.NoError(t, err)
		data = d
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx))
	tracker.Disable()

	require.Equal(t, "hello world", string(data))
	return tracker, path
}

func TestTracker_FileSystemPreset(t *testing.T) {
	tracker, _ := readFile(t, func(o *Options) {
		o.Collector = func(co *collector.Options) { co.BufferCaptureLimit = 5 }
	}, FileSystem)

	activities, err := tracker.Activities()
	require.NoError(t, err)
	require.Equal(t, 4, activities.Len(), "open, fstat, read and close; the tick is pruned")
	assert.Equal(t, 5, tracker.Collector().Activities().Len(), "the collector keeps everything")

	for _, a := range activities.Values() {
		assert.Equal(t, hostloop.TypeFSReqWrap, a.Type)
		assert.True(t, a.Finalized())
		require.NotNil(t, a.InitStack)
		assert.True(t, a.InitStack.Symbolized())
		assert.Len(t, a.BeforeStacks, 1)
		assert.Len(t, a.AfterStacks, 1)
		assert.NotNil(t, a.DestroyStack)

		require.Len(t, a.Processed.Functions, 1)
		fn := a.Processed.Functions[0]
		assert.Equal(t, []string{"context", "oncomplete"}, fn.Path)
		assert.True(t, strings.HasSuffix(fn.Info.File, filepath.Join("hostloop", "fs.go")), fn.Info.File)
	}

	ids := activities.IDs()
	read, _ := activities.Get(ids[2])
	ctx := read.Processed.Context.(*core.Object)
	buf := ctx.Keys["buffer"].(*core.Buffer)
	assert.Equal(t, 11, buf.Len)
	assert.Equal(t, 5, buf.Included)
	assert.Equal(t, "hello", buf.Strings["utf8"])
	assert.Equal(t, "68656c6c6f", buf.Strings["hex"])
	_, hasCallback := ctx.Keys["oncomplete"]
	assert.False(t, hasCallback, "callables are not copied")
}

func TestTracker_DefaultsKeepEverything(t *testing.T) {
	tracker, _ := readFile(t)

	snapshot, err := tracker.Snapshot()
	require.NoError(t, err)
	require.Len(t, snapshot, 5)

	tick := snapshot[0].(map[string]any)
	assert.Equal(t, hostloop.TypeTickObject, tick["type"])
	assert.Equal(t, []any{}, tick["initStack"], "no stacks without a capture policy")
}

func TestTracker_Write(t *testing.T) {
	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	tracker, path := readFile(t, FileSystem, func(o *Options) {
		o.Output = codec.Options{Format: codec.CBOR, Compress: true}
		o.Logger = logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &logs})
		o.Recorder = metrics.New(reg)
	})

	var out bytes.Buffer
	n, err := tracker.Write(&out)
	require.NoError(t, err)
	assert.Equal(t, out.Len(), n)
	assert.True(t, codec.Compressed(out.Bytes()))

	var decoded []any
	require.NoError(t, codec.Decode(out.Bytes(), codec.CBOR, &decoded))
	require.Len(t, decoded, 4)
	open := decoded[0].(map[string]any)
	keys := open["resource"].(map[string]any)["context"].(map[string]any)["keys"].(map[string]any)
	assert.EqualValues(t, len(path), keys["path"].(map[string]any)["len"])

	assert.Contains(t, logs.String(), `"msg":"Snapshot written"`)
	assert.Contains(t, logs.String(), `"activities":4`)

	samples, err := metrics.Snapshot(reg)
	require.NoError(t, err)
	assert.NotEmpty(t, samples)
}

type gauge struct{ ctx map[string]any }

func (g *gauge) Context() any { return g.ctx }

func TestTracker_WriteNonFiniteFloat(t *testing.T) {
	source := testutil.NewFakeSource()
	tracker := New(source).Enable()

	source.Create(1, "Timeout", core.RootID, &gauge{ctx: map[string]any{"ratio": 0.5}})
	source.Lifecycle(1)
	source.Create(2, "Timeout", 1, &gauge{ctx: map[string]any{"ratio": math.Inf(1)}})
	source.Lifecycle(2)
	tracker.Disable()

	var out bytes.Buffer
	n, err := tracker.Write(&out)
	require.NoError(t, err)
	assert.Equal(t, out.Len(), n)

	var decoded []any
	require.NoError(t, codec.Decode(out.Bytes(), codec.JSON, &decoded))
	require.Len(t, decoded, 2)
	ratio := func(i int) any {
		resource := decoded[i].(map[string]any)["resource"].(map[string]any)
		return resource["context"].(map[string]any)["keys"].(map[string]any)["ratio"]
	}
	assert.Equal(t, 0.5, ratio(0))
	assert.Equal(t, "+Inf", ratio(1))
}

func TestTracker_FileSystemKeepsConfiguredTypes(t *testing.T) {
	tracker := New(hostloop.New(), func(o *Options) { o.KeepTypes = []string{hostloop.TypeTickObject} }, FileSystem)
	keep := tracker.Keep()
	require.NotNil(t, keep)
	assert.True(t, keep(core.NewActivity(1, hostloop.TypeTickObject, core.RootID, nil)))
	assert.False(t, keep(core.NewActivity(2, hostloop.TypeFSReqWrap, core.RootID, nil)))
}

func TestTracker_UnknownEncoding(t *testing.T) {
	tracker := New(hostloop.New(), func(o *Options) { o.Encodings = []string{"ebcdic"} })
	_, err := tracker.Snapshot()
	assert.Error(t, err)
}
