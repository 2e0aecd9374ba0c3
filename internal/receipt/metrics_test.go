package receipt

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zombor/expense-tracker/internal/extraction"
)

var _ = Describe("Metrics", func() {
	var (
		reg     *prometheus.Registry
		metrics *Metrics
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		metrics = NewMetrics(reg)
	})

	It("registers every collector", func() {
		metrics.receiptProcessed("success")
		metrics.ocrRequest("success")
		metrics.extracted(extraction.Extract(mcdonaldsText))

		count, err := testutil.GatherAndCount(reg)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(4))
	})

	It("counts outcomes by label", func() {
		metrics.receiptProcessed("success")
		metrics.receiptProcessed("success")
		metrics.receiptProcessed("error")

		expected := `
# HELP expense_tracker_receipts_processed_total Receipt uploads processed, by outcome.
# TYPE expense_tracker_receipts_processed_total counter
expense_tracker_receipts_processed_total{outcome="error"} 1
expense_tracker_receipts_processed_total{outcome="success"} 2
`
		Expect(testutil.GatherAndCompare(reg, strings.NewReader(expected), "expense_tracker_receipts_processed_total")).To(Succeed())
	})

	It("observes confidence of recognized receipts", func() {
		metrics.extracted(extraction.Extract(mcdonaldsText))
		Expect(testutil.CollectAndCount(metrics.confidence)).To(Equal(1))
		Expect(testutil.ToFloat64(metrics.extractedCategory.WithLabelValues(extraction.CategoryMeals))).To(Equal(1.0))
	})

	It("does nothing when nil", func() {
		var m *Metrics
		Expect(func() {
			m.receiptProcessed("success")
			m.ocrRequest("error")
			m.extracted(extraction.Empty())
		}).NotTo(Panic())
	})
})
