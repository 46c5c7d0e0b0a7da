// Package metrics exposes service counters to Prometheus.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "simplefiles"

// Collector records upload and classification metrics. It implements
// simplefiles.MetricsRecorder.
type Collector struct {
	registry *prometheus.Registry

	uploadsAccepted prometheus.Counter
	uploadBytes     prometheus.Histogram
	uploadsRejected *prometheus.CounterVec
	classified      *prometheus.CounterVec
	skipped         *prometheus.CounterVec
}

// New creates a collector on a fresh registry that also carries the Go
// runtime and process collectors.
func New(namespace string) (*Collector, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		uploadsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_accepted_total",
			Help:      "Uploads stored and recorded.",
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of accepted uploads.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		uploadsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Uploads rejected, by reason.",
		}, []string{"reason"}),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_classified_total",
			Help:      "Stored objects classified, by file type and category.",
		}, []string{"file_type", "category"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_skipped_total",
			Help:      "Object-stored events not classified, by reason.",
		}, []string{"reason"}),
	}

	for _, col := range []prometheus.Collector{
		c.uploadsAccepted, c.uploadBytes, c.uploadsRejected, c.classified, c.skipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *Collector) UploadAccepted(size int64) {
	c.uploadsAccepted.Inc()
	c.uploadBytes.Observe(float64(size))
}

func (c *Collector) UploadRejected(reason string) {
	c.uploadsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) ObjectClassified(fileType, category string) {
	c.classified.WithLabelValues(fileType, category).Inc()
}

func (c *Collector) ClassificationSkipped(reason string) {
	c.skipped.WithLabelValues(reason).Inc()
}
