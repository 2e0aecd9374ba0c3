package receipt

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombor/expense-tracker/internal/extraction"
)

const metricsNamespace = "expense_tracker"

// Metrics records receipt processing counters. A nil *Metrics records nothing.
type Metrics struct {
	receiptsProcessed *prometheus.CounterVec
	ocrRequests       *prometheus.CounterVec
	confidence        prometheus.Histogram
	extractedCategory *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		receiptsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "receipts_processed_total",
			Help:      "Receipt uploads processed, by outcome.",
		}, []string{"outcome"}),
		ocrRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ocr_requests_total",
			Help:      "Text recognition requests, by result.",
		}, []string{"result"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "extraction_confidence",
			Help:      "Category confidence of recognized receipts.",
			Buckets:   prometheus.LinearBuckets(0, 0.125, 9),
		}),
		extractedCategory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "extracted_category_total",
			Help:      "Suggested categories of recognized receipts.",
		}, []string{"category"}),
	}
	reg.MustRegister(m.receiptsProcessed, m.ocrRequests, m.confidence, m.extractedCategory)
	return m
}

func (m *Metrics) receiptProcessed(outcome string) {
	if m == nil {
		return
	}
	m.receiptsProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ocrRequest(result string) {
	if m == nil {
		return
	}
	m.ocrRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) extracted(result extraction.Result) {
	if m == nil {
		return
	}
	m.confidence.Observe(result.Confidence)
	m.extractedCategory.WithLabelValues(result.SuggestedCategory).Inc()
}
