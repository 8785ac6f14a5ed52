// Package metrics exports Prometheus metrics for the citation pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citecheck_documents_processed_total",
		Help: "Total documents run through the citation pipeline",
	})

	citationsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citecheck_citations_extracted_total",
		Help: "Total citations extracted from documents",
	})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citecheck_verifications_total",
		Help: "Verification outcomes by verdict",
	}, []string{"verdict"})

	lookupRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citecheck_lookup_requests_total",
		Help: "Requests to the citation lookup service by status",
	}, []string{"status"})

	lookupLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "citecheck_lookup_latency_seconds",
		Help:    "Latency of citation lookup requests",
		Buckets: prometheus.DefBuckets,
	})

	corrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citecheck_corrections_total",
		Help: "Correction suggestions served by type",
	}, []string{"type"})
)

func RecordDocument()             { documentsProcessed.Inc() }
func RecordExtracted(n int)       { citationsExtracted.Add(float64(n)) }
func RecordVerification(v string) { verifications.WithLabelValues(v).Inc() }
func RecordCorrection(t string)   { corrections.WithLabelValues(t).Inc() }

func RecordLookup(status string, elapsed time.Duration) {
	lookupRequests.WithLabelValues(status).Inc()
	lookupLatency.Observe(elapsed.Seconds())
}
