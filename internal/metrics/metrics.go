// Package metrics exposes Prometheus counters and histograms for the decode
// pipeline: packets processed and rejected, bytes decoded, ring-buffer
// compactions, and per-job duration.
package metrics

import (
	"github.com/jmylchreest/dvrtsdecode/internal/decodeerrors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors registered for one process.
type Metrics struct {
	PacketsProcessed prometheus.Counter
	PacketsRejected  *prometheus.CounterVec
	BytesDecoded     prometheus.Counter
	Compactions      prometheus.Counter
	JobDuration      prometheus.Histogram
}

// New creates and registers all collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dvrtsdecode",
			Name:      "packets_processed_total",
			Help:      "Total transport-stream packets successfully processed.",
		}),
		PacketsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dvrtsdecode",
			Name:      "packets_rejected_total",
			Help:      "Total packet groups rejected, by failure kind.",
		}, []string{"kind"}),
		BytesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dvrtsdecode",
			Name:      "bytes_decoded_total",
			Help:      "Total cleartext bytes written to sinks.",
		}),
		Compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dvrtsdecode",
			Name:      "ringbuffer_compactions_total",
			Help:      "Total ring buffer compaction events.",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dvrtsdecode",
			Name:      "job_duration_seconds",
			Help:      "Decode job wall-clock duration.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.PacketsProcessed, m.PacketsRejected, m.BytesDecoded, m.Compactions, m.JobDuration)
	return m
}

// RecordRejection increments the rejected-packets counter for kind.
func (m *Metrics) RecordRejection(kind decodeerrors.Kind) {
	m.PacketsRejected.WithLabelValues(kind.String()).Inc()
}
