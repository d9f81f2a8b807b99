package instrument

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the portal's Prometheus collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	uploads  *prometheus.CounterVec
	reorders *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qa_portal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests broken down by route and result.",
		}, []string{"method", "route", "result"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qa_portal",
			Subsystem: "http",
			Name:      "latency_seconds",
			Help:      "Latency distribution for HTTP requests.",
			Buckets: []float64{
				0.001, 0.005, 0.01,
				0.05, 0.1, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"method", "route"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qa_portal",
			Subsystem: "storage",
			Name:      "uploads_total",
			Help:      "Uploaded files by document type and result.",
		}, []string{"doc_type", "result"}),
		reorders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qa_portal",
			Subsystem: "hierarchy",
			Name:      "reorders_total",
			Help:      "Reorder requests by sibling kind and result.",
		}, []string{"kind", "result"}),
	}
}

// ObserveUpload counts one stored file. Nil-safe.
func (m *Metrics) ObserveUpload(docType, result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(docType, result).Inc()
}

// ObserveReorder counts one reorder request. Nil-safe.
func (m *Metrics) ObserveReorder(kind, result string) {
	if m == nil {
		return
	}
	m.reorders.WithLabelValues(kind, result).Inc()
}

func resultLabel(status int) string {
	switch {
	case status >= 500:
		return "error"
	case status >= 400:
		return "client_error"
	}
	return "success"
}
