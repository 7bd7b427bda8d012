// Package metrics exposes training progress as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "lazylinear"
	subsystem = "training"
)

// Training holds the metrics of one model. A nil *Training is valid and
// records nothing.
type Training struct {
	instances   prometheus.Counter
	truncations prometheus.Counter
	merges      prometheus.Counter
	epoch       prometheus.Gauge
	coordinates prometheus.Gauge
	loss        prometheus.Histogram
	duration    prometheus.Histogram
}

// NewTraining registers the training metrics of the named model on reg.
// Registering the same model name twice on one registry panics.
func NewTraining(reg prometheus.Registerer, model string) *Training {
	f := promauto.With(reg)
	labels := prometheus.Labels{"model": model}

	return &Training{
		instances: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "instances_total",
			Help:        "Total number of training instances applied",
			ConstLabels: labels,
		}),
		truncations: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "truncations_total",
			Help:        "Total number of truncation passes",
			ConstLabels: labels,
		}),
		merges: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "merges_total",
			Help:        "Total number of models merged into this one",
			ConstLabels: labels,
		}),
		epoch: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "epoch",
			Help:        "Number of instances the model has seen",
			ConstLabels: labels,
		}),
		coordinates: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "stored_coordinates",
			Help:        "Number of stored parameter coordinates",
			ConstLabels: labels,
		}),
		loss: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "loss",
			Help:        "Loss of each instance before its update",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "update_duration_seconds",
			Help:        "Duration of single instance updates in seconds",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
}

// ObserveUpdate records one applied instance.
func (t *Training) ObserveUpdate(loss float64, took time.Duration, epoch int64, coordinates int) {
	if t == nil {
		return
	}
	t.instances.Inc()
	t.loss.Observe(loss)
	t.duration.Observe(took.Seconds())
	t.epoch.Set(float64(epoch))
	t.coordinates.Set(float64(coordinates))
}

// ObserveTruncation records one truncation pass.
func (t *Training) ObserveTruncation() {
	if t == nil {
		return
	}
	t.truncations.Inc()
}

// ObserveMerge records a merge and the resulting model size.
func (t *Training) ObserveMerge(epoch int64, coordinates int) {
	if t == nil {
		return
	}
	t.merges.Inc()
	t.epoch.Set(float64(epoch))
	t.coordinates.Set(float64(coordinates))
}

// SetCoordinates updates the stored coordinate gauge.
func (t *Training) SetCoordinates(n int) {
	if t == nil {
		return
	}
	t.coordinates.Set(float64(n))
}
