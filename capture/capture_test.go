package capture

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/asynctrace/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.StackCapturer = (*Filter)(nil)
	_ core.StackCapturer = Predicate(nil)
)

func TestAllowList(t *testing.T) {
	f := AllowList([]core.Event{core.EventInit}, []string{"FSREQWRAP"})
	a := core.NewActivity(1, "FSREQWRAP", core.RootID, nil)

	assert.True(t, f.ShouldCapture(core.EventInit, "FSREQWRAP", a))
	assert.False(t, f.ShouldCapture(core.EventBefore, "FSREQWRAP", a))
	assert.False(t, f.ShouldCapture(core.EventInit, "Timeout", a))
}

func TestAllowList_NilMeansAny(t *testing.T) {
	assert.True(t, AllowList(nil, []string{"X"}).ShouldCapture(core.EventDestroy, "X", nil))
	assert.True(t, AllowList([]core.Event{core.EventAfter}, nil).ShouldCapture(core.EventAfter, "Y", nil))
	assert.False(t, AllowList([]core.Event{}, nil).ShouldCapture(core.EventAfter, "Y", nil))
}

func TestComposition(t *testing.T) {
	fs := AllowList(nil, []string{"FSREQWRAP"})
	initOnly := AllowList([]core.Event{core.EventInit}, nil)

	assert.True(t, All(fs, initOnly).ShouldCapture(core.EventInit, "FSREQWRAP", nil))
	assert.False(t, All(fs, initOnly).ShouldCapture(core.EventAfter, "FSREQWRAP", nil))
	assert.True(t, Any(fs, initOnly).ShouldCapture(core.EventInit, "Timeout", nil))
	assert.False(t, Any(fs, initOnly).ShouldCapture(core.EventAfter, "Timeout", nil))
	assert.True(t, All().ShouldCapture(core.EventInit, "", nil))
	assert.False(t, Any().ShouldCapture(core.EventInit, "", nil))

	assert.False(t, Never.ShouldCapture(core.EventInit, "FSREQWRAP", nil))
	assert.True(t, Always.ShouldCapture(core.EventInit, "FSREQWRAP", nil))
}

func TestFirstOnly(t *testing.T) {
	c := FirstOnly(Always)
	a := core.NewActivity(1, "Timeout", core.RootID, nil)

	assert.True(t, c.ShouldCapture(core.EventBefore, "Timeout", a))
	a.AttachStack(core.EventBefore, &core.Stack{})
	assert.False(t, c.ShouldCapture(core.EventBefore, "Timeout", a))
	assert.True(t, c.ShouldCapture(core.EventAfter, "Timeout", a))
}

func TestPolicyDoesNotMutateActivity(t *testing.T) {
	a := core.NewActivity(3, "FSREQWRAP", core.RootID, "payload")
	_ = FirstOnly(AllowList(nil, nil)).ShouldCapture(core.EventBefore, "FSREQWRAP", a)

	assert.Empty(t, a.BeforeStacks)
	assert.Equal(t, "payload", a.Resource)
}

func recordHere() *core.Stack { return Record(0, 8) }

func TestRecordAndSymbolize(t *testing.T) {
	s := recordHere()
	require.NotEmpty(t, s.PCs)
	assert.False(t, s.Symbolized())
	assert.LessOrEqual(t, len(s.PCs), 8)

	Symbolize(s)
	require.True(t, s.Symbolized())
	assert.True(t, strings.HasSuffix(s.Frames[0].Function, "capture.recordHere"), s.Frames[0].Function)
	assert.Contains(t, s.Frames[0].File, "capture_test.go")

	before := s.Frames
	Symbolize(s)
	assert.Equal(t, before, s.Frames)
}

func TestSymbolizeActivity(t *testing.T) {
	a := core.NewActivity(1, "FSREQWRAP", core.RootID, nil)
	a.AttachStack(core.EventInit, Record(0, 4))
	a.AttachStack(core.EventBefore, Record(0, 4))

	assert.Equal(t, 2, SymbolizeActivity(a))
	assert.Equal(t, 0, SymbolizeActivity(a))
	for _, s := range a.Stacks() {
		assert.True(t, s.Symbolized())
	}
}
