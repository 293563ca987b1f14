package collector

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/asynctrace/capture"
	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/internal/testutil"
	"github.com/hupe1980/asynctrace/logging"
	"github.com/hupe1980/asynctrace/prune"
)

type countingRecorder struct {
	mu        sync.Mutex
	events    map[core.Event]int
	anomalies map[string]int
	cleanups  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{events: map[core.Event]int{}, anomalies: map[string]int{}, cleanups: map[string]int{}}
}

func (r *countingRecorder) ObserveEvent(e core.Event, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e]++
}

func (r *countingRecorder) ObserveAnomaly(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anomalies[kind]++
}

func (r *countingRecorder) ObserveCleanup(_ string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups[outcome]++
}

type scriptedProcessor struct {
	calls int
}

func (p *scriptedProcessor) Process(raw any) (*core.ProcessedResource, error) {
	p.calls++
	switch raw {
	case "panic":
		panic("malformed resource")
	case "error":
		return nil, errors.New("unreadable")
	case nil:
		return nil, nil
	}
	return &core.ProcessedResource{Context: "ok"}, nil
}

func TestCollector_EndToEnd(t *testing.T) {
	src := testutil.NewFakeSource()
	c := New(src, time.Now()).Enable()

	payload := map[string]any{"context": map[string]any{"fd": nil}}
	src.Create(1, "OP", core.RootID, payload)
	src.Before(1)
	payload["context"].(map[string]any)["fd"] = 7
	src.After(1)
	src.Destroy(1)

	a, ok := c.Store().Get(1)
	require.True(t, ok)
	assert.Equal(t, core.RootID, a.TriggerID)
	assert.Len(t, a.Init, 1)
	assert.Len(t, a.Before, 1)
	assert.Len(t, a.After, 1)
	assert.Len(t, a.Destroy, 1)

	require.True(t, a.Finalized())
	assert.Nil(t, a.Resource, "raw payload is released")
	ctx, ok := a.Processed.Context.(*core.Object)
	require.True(t, ok)
	assert.Equal(t, 7, ctx.Keys["fd"])

	plain := core.PlainActivity(a)
	res := plain["resource"].(map[string]any)
	assert.Equal(t, 7, res["context"].(map[string]any)["keys"].(map[string]any)["fd"])
}

func TestCollector_InitOnlyStack(t *testing.T) {
	src := testutil.NewFakeSource()
	c := New(src, time.Now(), func(o *Options) {
		o.StackCapturer = capture.AllowList([]core.Event{core.EventInit}, []string{"OP"})
	}).Enable()

	src.Create(1, "OP", core.RootID, nil)
	src.Create(2, "OTHER", core.RootID, nil)
	src.Lifecycle(1)
	src.Lifecycle(2)
	c.ProcessStacks()

	a, _ := c.Store().Get(1)
	require.NotNil(t, a.InitStack)
	require.NotEmpty(t, a.InitStack.Frames)
	assert.Empty(t, a.BeforeStacks)
	assert.Empty(t, a.AfterStacks)
	assert.Nil(t, a.DestroyStack)

	found := false
	for _, f := range a.InitStack.Frames {
		assert.False(t, strings.Contains(f.Function, "(*Collector).observe"), "collector frames are skipped")
		if strings.HasSuffix(f.Function, "TestCollector_InitOnlyStack") {
			found = true
		}
	}
	assert.True(t, found, "stack leads back to the emitting code")

	other, _ := c.Store().Get(2)
	assert.Nil(t, other.InitStack)
}

func TestCollector_NoPolicyNoStacks(t *testing.T) {
	src := testutil.NewFakeSource()
	c := New(src, time.Now()).Enable()

	src.Create(1, "OP", core.RootID, nil)
	src.Lifecycle(1)

	a, _ := c.Store().Get(1)
	assert.Empty(t, a.Stacks())
}

func TestCollector_WithoutDestroyStaysUnprocessed(t *testing.T) {
	src := testutil.NewFakeSource()
	c := New(src, time.Now()).Enable()

	payload := map[string]any{"context": map[string]any{"fd": 3}}
	src.Create(1, "OP", core.RootID, payload)
	src.Before(1)
	src.After(1)

	a, _ := c.Store().Get(1)
	assert.Empty(t, a.Destroy)
	assert.False(t, a.Finalized())
	assert.Equal(t, payload, a.Resource)

	c.CleanAllResources()
	assert.True(t, a.Finalized())
	assert.Nil(t, a.Resource)
	assert.NotNil(t, a.Processed)
}

func TestCollector_CleanupOnDestroyDisabled(t *testing.T) {
	src := testutil.NewFakeSource()
	c := New(src, time.Now(), func(o *Options) { o.CleanupOnDestroy = false }).Enable()

	src.Create(1, "OP", core.RootID, map[string]any{"args": []any{1}})
	src.Lifecycle(1)

	a, _ := c.Store().Get(1)
	assert.False(t, a.Finalized())
	require.NoError(t, c.CleanupResource(1))
	assert.True(t, a.Finalized())
}

func TestCollector_EnableDisableIdempotent(t *testing.T) {
	src := testutil.NewFakeSource()
	c := New(src, time.Now())
	assert.False(t, c.Enabled())

	c.Enable().Enable()
	assert.Equal(t, 1, src.Subscribers())
	src.Create(1, "OP", core.RootID, nil)

	c.Disable().Disable()
	assert.Equal(t, 0, src.Subscribers())
	assert.False(t, c.Enabled())
	src.Create(2, "OP", core.RootID, nil)
	src.Before(1)

	c.Enable()
	src.Create(3, "OP", core.RootID, nil)

	assert.Equal(t, []core.ID{1, 3}, c.Activities().IDs(), "missed events are not replayed")
	a, _ := c.Store().Get(1)
	assert.Empty(t, a.Before)
}

func TestCollector_Anomalies(t *testing.T) {
	src := testutil.NewFakeSource()
	rec := newCountingRecorder()
	c := New(src, time.Now(), func(o *Options) { o.Recorder = rec }).Enable()

	src.Create(1, "OP", core.RootID, "first")
	src.Create(1, "OTHER", 5, "second")
	src.Before(99)
	src.Destroy(98)

	assert.Equal(t, 1, c.Store().Len())
	a, _ := c.Store().Get(1)
	assert.Equal(t, "OP", a.Type)
	assert.Equal(t, "first", a.Resource)
	assert.Equal(t, 1, rec.anomalies[AnomalyDuplicateID])
	assert.Equal(t, 2, rec.anomalies[AnomalyUnknownID])
	assert.Equal(t, 1, rec.events[core.EventInit])
}

func TestCollector_CleanupIsolation(t *testing.T) {
	src := testutil.NewFakeSource()
	proc := &scriptedProcessor{}
	rec := newCountingRecorder()
	c := New(src, time.Now(), func(o *Options) {
		o.Processor = proc
		o.Recorder = rec
		o.CleanupOnDestroy = false
	}).Enable()

	src.Create(1, "OP", core.RootID, "panic")
	src.Create(2, "OP", core.RootID, "error")
	src.Create(3, "OP", core.RootID, "fine")
	src.Create(4, "OP", core.RootID, nil)

	c.CleanAllResources()
	c.CleanAllResources()

	assert.Equal(t, 4, proc.calls, "each resource is processed once")
	for _, a := range c.Store().Values() {
		assert.True(t, a.Finalized())
		assert.Nil(t, a.Resource)
	}
	a3, _ := c.Store().Get(3)
	assert.Equal(t, "ok", a3.Processed.Context)
	a1, _ := c.Store().Get(1)
	assert.Nil(t, a1.Processed)

	assert.Equal(t, 2, rec.cleanups[OutcomeError])
	assert.Equal(t, 1, rec.cleanups[OutcomeOK])
	assert.Equal(t, 1, rec.cleanups[OutcomeEmpty])

	err := c.CleanupResource(42)
	assert.True(t, errors.Is(err, core.ErrUnknownID))
	assert.Equal(t, "activity 42: unknown activity id", err.Error())
}

func TestCollector_PruneAndStringify(t *testing.T) {
	src := testutil.NewFakeSource()
	c := New(src, time.Now(), func(o *Options) { o.BufferCaptureLimit = 5 }).Enable()

	src.Create(1, "FSREQWRAP", core.RootID, map[string]any{"context": map[string]any{"buffer": []byte("hello world")}})
	src.Create(2, "Timeout", 1, nil)
	src.Create(3, "FSREQWRAP", 2, map[string]any{"context": map[string]any{}})
	for _, id := range []core.ID{1, 2, 3} {
		src.Lifecycle(id)
	}

	kept := c.Prune(prune.Types("FSREQWRAP"))
	assert.Equal(t, []core.ID{1, 3}, kept.IDs())
	assert.Equal(t, 3, c.Store().Len())

	require.NoError(t, c.StringifyBuffers("utf8"))
	a, _ := kept.Get(1)
	buf := a.Processed.Context.(*core.Object).Keys["buffer"].(*core.Buffer)
	assert.Equal(t, 11, buf.Len)
	assert.Equal(t, 5, buf.Included)
	assert.Equal(t, "hello", buf.Strings["utf8"])

	assert.Error(t, c.StringifyBuffers("nope"))
}

func TestCollector_CallbackDetails(t *testing.T) {
	src := testutil.NewFakeSource()
	c := New(src, time.Now(), func(o *Options) {
		o.CaptureCallbackSource = true
		o.CaptureCallbackArguments = true
	}).Enable()

	oncomplete := func(err error) {}
	src.Create(1, "FSREQWRAP", core.RootID, map[string]any{"context": map[string]any{"oncomplete": oncomplete}})
	src.Destroy(1)

	a, _ := c.Store().Get(1)
	require.Len(t, a.Processed.Functions, 1)
	fn := a.Processed.Functions[0]
	assert.Equal(t, []string{"context", "oncomplete"}, fn.Path)
	assert.Equal(t, "oncomplete", fn.Info.InferredName)
	assert.Equal(t, "func(err error) {}", fn.Source)
	assert.Equal(t, core.Inaccessible, fn.Arguments)
}

func TestCollector_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})
	src := testutil.NewFakeSource()
	New(src, time.Now(), func(o *Options) { o.Logger = logger }).Enable()

	src.Create(1, "OP", core.RootID, nil)
	src.Create(1, "OP", core.RootID, nil)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Lifecycle event"`)
	assert.Contains(t, out, `"anomaly":"duplicate_id"`)
	assert.Contains(t, out, `"component":"collector"`)
}
