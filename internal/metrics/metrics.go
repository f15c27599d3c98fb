// Package metrics provides Prometheus collectors for uploads, the detection
// store and the query engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes used as the status label of uploads_total.
const (
	UploadRecorded = "recorded"
	UploadRejected = "rejected"
	UploadDetector = "detector_error"
	UploadStorage  = "storage_error"
)

// Metrics holds all collectors of the service.
type Metrics struct {
	registry *prometheus.Registry

	UploadsTotal          *prometheus.CounterVec
	DetectionsRecorded    prometheus.Counter
	DetectorDuration      prometheus.Histogram
	RecordDuration        prometheus.Histogram
	QueryDuration         *prometheus.HistogramVec
	QueryResultSize       *prometheus.HistogramVec
	DetailCacheOperations *prometheus.CounterVec
	FeedClients           prometheus.Gauge
}

// New creates collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "visionqa_uploads_total",
				Help: "Total number of uploads by outcome",
			},
			[]string{"status"},
		),
		DetectionsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "visionqa_detections_recorded_total",
			Help: "Total number of detection rows written",
		}),
		DetectorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "visionqa_detector_duration_seconds",
			Help:    "Time spent in the detection adapter per upload",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
		RecordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "visionqa_store_record_duration_seconds",
			Help:    "Duration of the image+detections write transaction",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "visionqa_query_duration_seconds",
				Help:    "Duration of query engine operations",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"operation"},
		),
		QueryResultSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "visionqa_query_result_size",
				Help:    "Number of images returned by list queries",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 500},
			},
			[]string{"filter"},
		),
		DetailCacheOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "visionqa_detail_cache_operations_total",
				Help: "Image detail cache lookups by result",
			},
			[]string{"result"},
		),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "visionqa_feed_clients",
			Help: "Connected live feed viewers",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.UploadsTotal,
		m.DetectionsRecorded,
		m.DetectorDuration,
		m.RecordDuration,
		m.QueryDuration,
		m.QueryResultSize,
		m.DetailCacheOperations,
		m.FeedClients,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQuery records the duration of a query operation started at start.
func (m *Metrics) ObserveQuery(operation string, start time.Time) {
	m.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
