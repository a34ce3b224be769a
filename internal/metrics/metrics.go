// Package metrics exposes prometheus collectors for a parser instance.
// Each Collector owns a private registry, scoped to one parser rather
// than one global process, so many parsers can coexist in the same
// process (notably in tests) without tripping prometheus's
// duplicate-registration panic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const service = "mp4frag"

var defaultSizeBuckets = []float64{1024, 4096, 16384, 65536, 262144, 1048576, 4194304}

// Collector holds the counters and histograms for one parser instance.
type Collector struct {
	registry *prometheus.Registry

	segmentsTotal   prometheus.Counter
	segmentBytes    prometheus.Histogram
	parseErrors     *prometheus.CounterVec
	hlsRingLength   prometheus.Gauge
	bufferRingLen   prometheus.Gauge
	segmentDuration prometheus.Histogram
}

// New builds a Collector with its own private registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		segmentsTotal: newCounter(reg, "segments_total",
			"Number of media segments published."),
		segmentBytes: newHistogram(reg, "segment_bytes",
			"Size in bytes of published media segments.", defaultSizeBuckets),
		parseErrors: newCounterVec(reg, "parse_errors_total",
			"Number of fatal parse errors, partitioned by kind.", []string{"kind"}),
		hlsRingLength: newGauge(reg, "hls_ring_length",
			"Current number of entries in the HLS ring."),
		bufferRingLen: newGauge(reg, "buffer_ring_length",
			"Current number of entries in the buffer ring."),
		segmentDuration: newHistogram(reg, "segment_duration_seconds",
			"Measured wall-clock duration of published segments.",
			[]float64{0.5, 1, 2, 4, 6, 10, 20}),
	}
	return c
}

// Registry returns the private prometheus.Registry backing this
// Collector, for mounting under an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveSegment records one published segment's size and duration.
func (c *Collector) ObserveSegment(size int, duration time.Duration) {
	c.segmentsTotal.Inc()
	c.segmentBytes.Observe(float64(size))
	c.segmentDuration.Observe(duration.Seconds())
}

// ObserveParseError records one fatal parse error by kind name.
func (c *Collector) ObserveParseError(kind string) {
	c.parseErrors.WithLabelValues(kind).Inc()
}

// SetRingLengths updates the current HLS and buffer ring gauges.
func (c *Collector) SetRingLengths(hlsLen, bufferLen int) {
	c.hlsRingLength.Set(float64(hlsLen))
	c.bufferRingLen.Set(float64(bufferLen))
}

func newCounter(reg *prometheus.Registry, name, help string) prometheus.Counter {
	ctr := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": service},
	})
	reg.MustRegister(ctr)
	return ctr
}

func newCounterVec(reg *prometheus.Registry, name, help string, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": service},
	}, labels)
	reg.MustRegister(cv)
	return cv
}

func newGauge(reg *prometheus.Registry, name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": service},
	})
	reg.MustRegister(g)
	return g
}

func newHistogram(reg *prometheus.Registry, name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": service},
		Buckets:     buckets,
	})
	reg.MustRegister(h)
	return h
}
