// Package metrics instruments one pipeline run with prometheus counters and
// histograms, adapted from brawer-wikidata-qrank's use of
// prometheus/client_golang (cmd/qrank-webserver registers a GaugeFunc and
// serves it over HTTP via promhttp). There is no long-lived server here, so
// this package registers against its own throwaway prometheus.Registry
// instead of the default one and exposes Gather() for a one-shot dump
// rather than an HTTP exporter.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Collector holds the metrics for one run. It is safe to pass nil
// throughout the pipeline package (every call site nil-checks), so
// instrumentation can be skipped entirely for one-off CLI invocations.
type Collector struct {
	registry    *prometheus.Registry
	TilesFed    prometheus.Counter
	StageLatency *prometheus.HistogramVec
}

// New creates a Collector registered against a fresh registry (not the
// global default, so repeated test runs in one process never collide on
// duplicate registration).
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		TilesFed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orthoblend",
			Name:      "tiles_fed_total",
			Help:      "Number of tiles successfully fed into the blender.",
		}),
		StageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orthoblend",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(c.TilesFed, c.StageLatency)
	return c
}

// StartStage returns a function that records the elapsed time against
// stage when called; callers defer or explicitly invoke it.
func (c *Collector) StartStage(stage string) func() {
	start := time.Now()
	return func() {
		c.StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Gather returns the registry's metric families, for a caller that wants
// to dump them (the blend command's --debug stage summary) without
// standing up an HTTP exporter — this is a batch tool, not a long-running
// service.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	return c.registry.Gather()
}
