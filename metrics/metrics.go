// Package metrics counts collector notifications with Prometheus.
package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/hupe1980/asynctrace/core"
)

// Namespace prefixes every metric name.
const Namespace = "asynctrace"

// Recorder implements core.Recorder on Prometheus counters.
type Recorder struct {
	events    *prometheus.CounterVec
	anomalies *prometheus.CounterVec
	cleanups  *prometheus.CounterVec
}

// New creates a Recorder registered with reg. A nil reg leaves the metrics
// unregistered.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "events_total",
				Help:      "Lifecycle notifications recorded, by event and activity type",
			},
			[]string{"event", "type"},
		),
		anomalies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "anomalies_total",
				Help:      "Notifications that did not match the store (duplicate or unknown ids)",
			},
			[]string{"kind"},
		),
		cleanups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cleanups_total",
				Help:      "Resource cleanups, by activity type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}
}

// ObserveEvent implements core.Recorder.
func (r *Recorder) ObserveEvent(event core.Event, typ string) {
	r.events.WithLabelValues(string(event), typ).Inc()
}

// ObserveAnomaly implements core.Recorder.
func (r *Recorder) ObserveAnomaly(kind string) {
	r.anomalies.WithLabelValues(kind).Inc()
}

// ObserveCleanup implements core.Recorder.
func (r *Recorder) ObserveCleanup(typ string, outcome string) {
	r.cleanups.WithLabelValues(typ, outcome).Inc()
}

// Sample is one counter value.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// String renders the sample in exposition style, e.g.
// asynctrace_events_total{event="init",type="FSREQWRAP"}.
func (s Sample) String() string {
	if len(s.Labels) == 0 {
		return s.Name
	}
	keys := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(s.Labels[k])
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// Snapshot gathers the counters and gauges of g whose names start with
// Namespace, sorted by their rendering.
func Snapshot(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), Namespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			out = append(out, Sample{Name: mf.GetName(), Labels: labels(m), Value: value(mf.GetType(), m)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func labels(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func value(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return 0
	}
}
