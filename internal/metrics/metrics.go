// Package metrics records kernel tick events as Prometheus metrics.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/kernel"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

const namespace = "teasim"

// Recorder implements kernel.Observer with Prometheus collectors.
type Recorder struct {
	ticks    prometheus.Counter
	updates  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

var _ kernel.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder and registers its collectors on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed simulation ticks.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_updates_total",
			Help:      "Entity updates applied, by entity kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_failures_total",
			Help:      "Aborted ticks, by error code.",
		}, []string{"code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock time spent per completed tick.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 7),
		}),
	}

	for _, c := range []prometheus.Collector{r.ticks, r.updates, r.failures, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return r, nil
}

func (r *Recorder) EntityUpdated(kind entity.Kind) {
	r.updates.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) TickCompleted(_ int64, _ int, took time.Duration) {
	r.ticks.Inc()
	r.duration.Observe(took.Seconds())
}

func (r *Recorder) TickFailed(_ int64, code simerr.Code) {
	label := string(code)
	if label == "" {
		label = "UNKNOWN"
	}
	r.failures.WithLabelValues(label).Inc()
}

// Sample is one counter value from Summarize.
type Sample struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// Summarize gathers the teasim counters from g as "name{label=value}"
// samples, sorted by name. Histograms are reported by their sample count.
func Summarize(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var out []Sample
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}

			switch {
			case m.GetCounter() != nil:
				out = append(out, Sample{Name: name, Value: m.GetCounter().GetValue()})
			case m.GetHistogram() != nil:
				out = append(out, Sample{Name: name + "_count", Value: float64(m.GetHistogram().GetSampleCount())})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
