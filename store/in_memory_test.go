package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/asynctrace/core"
)

type fakeClock struct{ times []time.Time }

func (c *fakeClock) now() time.Time {
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

func withClock(c *fakeClock) func(o *Options) {
	return func(o *Options) { o.Now = c.now }
}

func TestStore_SizeEqualsDistinctCreations(t *testing.T) {
	s := New(time.Now())
	for _, id := range []core.ID{1, 2, 3, 2, 1} {
		_, _ = s.OnCreate(id, "OP", core.RootID, nil)
	}
	_, _ = s.OnBefore(2)
	_, _ = s.OnDestroy(3)

	assert.Equal(t, 3, s.Len())
	ids := make([]core.ID, 0, 3)
	for _, a := range s.Values() {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []core.ID{1, 2, 3}, ids)
}

func TestStore_DuplicateCreate(t *testing.T) {
	s := New(time.Now())
	first, err := s.OnCreate(5, "FSREQWRAP", 1, "original")
	require.NoError(t, err)

	existing, err := s.OnCreate(5, "Timeout", 2, "other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDuplicateID))

	var dup *core.DuplicateIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, core.ID(5), dup.ID)

	assert.Same(t, first, existing)
	assert.Equal(t, "FSREQWRAP", existing.Type)
	assert.Equal(t, core.ID(1), existing.TriggerID)
	assert.Equal(t, "original", existing.Resource)
	assert.Len(t, existing.Init, 1)
}

func TestStore_UnknownID(t *testing.T) {
	s := New(time.Now())

	for _, fn := range []func(core.ID) (*core.Activity, error){s.OnBefore, s.OnAfter, s.OnDestroy} {
		a, err := fn(42)
		assert.Nil(t, a)
		assert.True(t, errors.Is(err, core.ErrUnknownID))
	}
	assert.Equal(t, 0, s.Len())
	assert.True(t, errors.Is(s.AttachStack(42, core.EventInit, &core.Stack{}), core.ErrUnknownID))
}

func TestStore_TimestampsRelativeAndClamped(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{
		start.Add(10 * time.Millisecond), // init
		start.Add(20 * time.Millisecond), // before
		start.Add(15 * time.Millisecond), // before, clock stepped back
		start.Add(30 * time.Millisecond), // after
	}}
	s := New(start, withClock(clock))

	_, err := s.OnCreate(1, "OP", core.RootID, nil)
	require.NoError(t, err)
	_, _ = s.OnBefore(1)
	_, _ = s.OnBefore(1)
	a, err := s.OnAfter(1)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{10 * time.Millisecond}, a.Init)
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 20 * time.Millisecond}, a.Before)
	assert.Equal(t, []time.Duration{30 * time.Millisecond}, a.After)
	assert.Empty(t, a.Destroy)
}

func TestStore_AttachStackAndRemove(t *testing.T) {
	s := New(time.Now())
	_, _ = s.OnCreate(1, "OP", core.RootID, nil)
	_, _ = s.OnCreate(2, "OP", 1, nil)

	require.NoError(t, s.AttachStack(1, core.EventInit, &core.Stack{}))
	a, ok := s.Get(1)
	require.True(t, ok)
	assert.NotNil(t, a.InitStack)

	assert.True(t, s.Remove(1))
	assert.False(t, s.Remove(1))
	assert.Equal(t, []core.ID{2}, s.Activities().IDs())
}
