package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/asynctrace/core"
)

// Interface compliance (compile-time assertion)
var _ core.Recorder = (*Recorder)(nil)

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveEvent(core.EventInit, "FSREQWRAP")
	r.ObserveEvent(core.EventInit, "FSREQWRAP")
	r.ObserveEvent(core.EventDestroy, "Timeout")
	r.ObserveAnomaly("duplicate_id")
	r.ObserveCleanup("FSREQWRAP", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.events.WithLabelValues("init", "FSREQWRAP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.anomalies.WithLabelValues("duplicate_id")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.events))
}

func TestSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.ObserveEvent(core.EventBefore, "Timeout")
	r.ObserveCleanup("FSREQWRAP", "panic")

	samples, err := Snapshot(reg)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, `asynctrace_cleanups_total{outcome="panic",type="FSREQWRAP"}`, samples[0].String())
	assert.Equal(t, 1.0, samples[0].Value)
	assert.Equal(t, `asynctrace_events_total{event="before",type="Timeout"}`, samples[1].String())
}

func TestNew_Unregistered(t *testing.T) {
	r := New(nil)
	r.ObserveAnomaly("unknown_id")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.anomalies.WithLabelValues("unknown_id")))
}
