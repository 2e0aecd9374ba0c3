package receipt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zombor/expense-tracker/internal/extraction"
	"github.com/zombor/expense-tracker/internal/receipt"
	"github.com/zombor/expense-tracker/internal/scanning"
)

const transcript = "```\nSHELL\n2 Unleaded fuel    45.00\nTotal: $45.00\n15/03/2024\n```"

func receiptPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		img.Set(x, x, color.Black)
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Integration", func() {
	var (
		tempDir     string
		storagePath string
		db          *receipt.BoltDB
		ollama      *ghttp.Server
		ghServer    *ghttp.Server
		server      *receipt.Server
		reg         *prometheus.Registry
	)

	// request sends one request through the tracker
	request := func(method, path string, body io.Reader, contentType string) *http.Response {
		ghServer.AppendHandlers(server.ServeHTTP)
		req, err := http.NewRequest(method, ghServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "expense-tracker-test-*")
		Expect(err).NotTo(HaveOccurred())
		storagePath = filepath.Join(tempDir, "receipts")

		db, err = receipt.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		store, err := receipt.NewLocalStorage(storagePath)
		Expect(err).NotTo(HaveOccurred())

		// the first call fails so the retry wrapper is exercised
		ollama = ghttp.NewServer()
		ollama.AppendHandlers(
			ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.RespondWith(http.StatusServiceUnavailable, "model loading"),
			),
			ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"message": map[string]string{"role": "assistant", "content": transcript},
					"done":    true,
				}),
			),
		)
		recognizer, err := scanning.NewOllama(ollama.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())

		reg = prometheus.NewRegistry()
		service := receipt.NewService(db, scanning.NewRetrying(recognizer, 2, 0), store).WithMetrics(receipt.NewMetrics(reg))
		server = receipt.NewServer(service, receipt.Auth{})
		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		ghServer.Close()
		ollama.Close()
		Expect(db.Close()).To(Succeed())
		os.RemoveAll(tempDir)
	})

	It("takes a receipt from upload to an approved report", func() {
		By("uploading a receipt image")
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "shell receipt.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(receiptPNG())
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp := request(http.MethodPost, "/api/receipts", body, writer.FormDataContentType())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var uploaded receipt.Receipt
		decode(resp, &uploaded)

		Expect(ollama.ReceivedRequests()).To(HaveLen(2))
		Expect(uploaded.UserID).To(Equal(receipt.LocalUser))
		Expect(uploaded.Vendor).To(Equal("SHELL"))
		Expect(uploaded.Amount).To(Equal(4500))
		Expect(uploaded.Date.Format("2006-01-02")).To(Equal("2024-03-15"))
		Expect(uploaded.Category).To(Equal(extraction.CategoryTransportation))
		Expect(uploaded.Extraction.Items).To(HaveLen(1))
		Expect(uploaded.Extraction.Items[0].Description).To(Equal("Unleaded fuel"))
		Expect(*uploaded.Extraction.Items[0].Quantity).To(Equal(2))
		Expect(uploaded.Status).To(Equal(receipt.StatusPending))

		_, err = os.Stat(filepath.Join(storagePath, uploaded.Filename))
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.HasPrefix(uploaded.Filename, receipt.LocalUser+"/")).To(BeTrue())

		By("approving it")
		resp = request(http.MethodPost, "/api/receipts/"+uploaded.ID+"/review", strings.NewReader(`{"action":"approve"}`), "application/json")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()

		By("grouping it into a report")
		resp = request(http.MethodPost, "/api/reports", strings.NewReader(`{"title":"March fuel","receipt_ids":["`+uploaded.ID+`"]}`), "application/json")
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var report receipt.ExpenseReport
		decode(resp, &report)
		Expect(report.TotalAmount).To(Equal(4500))

		for _, status := range []string{"submitted", "approved"} {
			resp = request(http.MethodPost, "/api/reports/"+report.ID+"/status", strings.NewReader(`{"status":"`+status+`"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decode(resp, &report)
		}
		Expect(report.Status).To(Equal(receipt.ReportApproved))

		By("reading it back from the database")
		stored, err := db.GetReceipt(uploaded.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ReportID).To(Equal(report.ID))
		Expect(stored.Status).To(Equal(receipt.StatusApproved))

		resp = request(http.MethodDelete, "/api/receipts/"+uploaded.ID, nil, "")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))

		By("summarizing it on the dashboard")
		resp = request(http.MethodGet, "/api/dashboard/stats", nil, "")
		var stats receipt.Stats
		decode(resp, &stats)
		Expect(stats.TotalReceiptsCount).To(Equal(1))
		Expect(stats.CategoryTotals).To(HaveKeyWithValue(extraction.CategoryTransportation, 4500))
		Expect(stats.TotalReportsCount).To(Equal(1))
		Expect(stats.PendingReports).To(BeZero())


		expected := `
# HELP expense_tracker_ocr_requests_total Text recognition requests, by result.
# TYPE expense_tracker_ocr_requests_total counter
expense_tracker_ocr_requests_total{result="success"} 1
`
		Expect(testutil.GatherAndCompare(reg, strings.NewReader(expected), "expense_tracker_ocr_requests_total")).To(Succeed())
	})

	It("scans without storing anything", func() {
		result := receipt.NewService(db, scanning.NewRetrying(mustOllama(ollama.URL()), 2, 0), nil).
			Scan(context.Background(), receiptPNG(), "image/png")
		Expect(result.Recognized).To(BeTrue())
		Expect(result.Extraction.Vendor).To(Equal("SHELL"))

		receipts, err := db.ListReceipts()
		Expect(err).NotTo(HaveOccurred())
		Expect(receipts).To(BeEmpty())
	})
})

func mustOllama(url string) *scanning.Ollama {
	recognizer, err := scanning.NewOllama(url, "")
	Expect(err).NotTo(HaveOccurred())
	return recognizer
}
