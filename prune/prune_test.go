package prune

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/asynctrace/core"
)

func activities(types ...string) *core.ActivityMap {
	m := core.NewActivityMap()
	for i, typ := range types {
		m.Add(core.NewActivity(core.ID(i+1), typ, core.RootID, nil))
	}
	return m
}

func TestPrune_KeepsTypesInOrder(t *testing.T) {
	src := activities("A", "B", "A")

	out := Prune(src, Types("A"))

	assert.Equal(t, []core.ID{1, 3}, out.IDs())
	assert.Equal(t, 3, src.Len(), "source is untouched")
	assert.Equal(t, []core.ID{1, 2, 3}, src.IDs())
}

func TestPrune_SharesRecords(t *testing.T) {
	src := activities("A")
	out := Prune(src, Types("A"))

	a, _ := src.Get(1)
	b, _ := out.Get(1)
	assert.Same(t, a, b)
}

func TestPrune_Combinators(t *testing.T) {
	src := activities("A", "B", "C")
	b, _ := src.Get(2)
	b.Append(core.EventDestroy, time.Millisecond)

	assert.Equal(t, []core.ID{1, 2}, Prune(src, Any(Types("A"), Destroyed)).IDs())
	assert.Equal(t, []core.ID{3}, Prune(src, Not(Any(Types("A"), Destroyed))).IDs())
	assert.Equal(t, []core.ID{1, 2, 3}, Prune(src, nil).IDs())
	assert.Equal(t, 0, Prune(nil, Types("A")).Len())
	assert.Equal(t, 0, Prune(src, Types()).Len())
}
