// Package metrics exposes the Prometheus instruments of the viewer core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "geoviz"

// Metrics groups every instrument. Build one per registry with New.
type Metrics struct {
	rebuilds        *prometheus.CounterVec
	rebuildsSkipped *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
	filteredPoints  prometheus.Gauge
	paintUpdates    *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	persistWrites   *prometheus.CounterVec
	regenerations   *prometheus.CounterVec
}

// New registers the instruments on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		// Labels: mode
		rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rebuilds_total",
			Help:      "Completed layer rebuilds",
		}, []string{"mode"}),
		// Labels: reason (not_ready, empty, unknown_mode)
		rebuildsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rebuilds_skipped_total",
			Help:      "Rebuilds that added no layers",
		}, []string{"reason"}),
		rebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rebuild_duration_seconds",
			Help:      "Time spent in a layer rebuild",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		filteredPoints: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "filtered_points",
			Help:      "Features in the last rebuilt source",
		}),
		// Labels: layer
		paintUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "paint_updates_total",
			Help:      "Paint-only property updates",
		}, []string{"layer"}),
		// Labels: path
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "rejected_writes_total",
			Help:      "Writes refused by validation",
		}, []string{"path"}),
		// Labels: status (success, error)
		persistWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "writes_total",
			Help:      "Snapshot persistence attempts",
		}, []string{"status"}),
		// Labels: distribution
		regenerations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "regenerations_total",
			Help:      "Generated datasets",
		}, []string{"distribution"}),
	}
}

// RecordRebuild records a completed rebuild of mode with n features.
func (m *Metrics) RecordRebuild(mode string, n int, seconds float64) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues(mode).Inc()
	m.rebuildDuration.Observe(seconds)
	m.filteredPoints.Set(float64(n))
}

// RecordSkip records a rebuild that added nothing.
func (m *Metrics) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.rebuildsSkipped.WithLabelValues(reason).Inc()
	if reason == "empty" {
		m.filteredPoints.Set(0)
	}
}

func (m *Metrics) RecordPaint(layer string) {
	if m == nil {
		return
	}
	m.paintUpdates.WithLabelValues(layer).Inc()
}

func (m *Metrics) RecordRejection(path string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(path).Inc()
}

// RecordPersist records one snapshot write.
func (m *Metrics) RecordPersist(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.persistWrites.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordRegenerate(distribution string) {
	if m == nil {
		return
	}
	m.regenerations.WithLabelValues(distribution).Inc()
}
