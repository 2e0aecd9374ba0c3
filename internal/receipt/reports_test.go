package receipt

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/expense-tracker/internal/extraction"
)

var _ = Describe("Reports", func() {
	var (
		db      *mockDB
		timeSrc *mockTimeSource
		service *Service
	)

	BeforeEach(func() {
		db = newMockDB()
		timeSrc = &mockTimeSource{now: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)}
		service = NewServiceWithDeps(db, &mockRecognizer{}, newMockStorage(), &mockIDGenerator{}, timeSrc)

		db.receipts["r1"] = &Receipt{ID: "r1", UserID: "alice", Amount: 1250, Status: StatusApproved}
		db.receipts["r2"] = &Receipt{ID: "r2", UserID: "alice", Amount: 499, Status: StatusPending}
		db.receipts["r3"] = &Receipt{ID: "r3", UserID: "bob", Amount: 100}
	})

	Describe("CreateReport", func() {
		It("creates a draft with the receipt total", func() {
			report, err := service.CreateReport("alice", "March travel", "client visit", []string{"r1", "r2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.ID).To(Equal("test-id-1"))
			Expect(report.Status).To(Equal(ReportDraft))
			Expect(report.TotalAmount).To(Equal(1749))
			Expect(report.ReceiptIDs).To(Equal([]string{"r1", "r2"}))
			Expect(db.reports).To(HaveKey("test-id-1"))
		})

		It("links the receipts to the report", func() {
			_, err := service.CreateReport("alice", "March travel", "", []string{"r1", "r2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.receipts["r1"].ReportID).To(Equal("test-id-1"))
			Expect(db.receipts["r2"].ReportID).To(Equal("test-id-1"))
		})

		It("requires a title", func() {
			_, err := service.CreateReport("alice", "", "", []string{"r1"})
			Expect(err).To(MatchError(ErrInvalidInput))
		})

		It("requires receipts", func() {
			_, err := service.CreateReport("alice", "Empty", "", nil)
			Expect(err).To(MatchError(ErrInvalidInput))
		})

		It("refuses duplicate receipts", func() {
			_, err := service.CreateReport("alice", "Twice", "", []string{"r1", "r1"})
			Expect(err).To(MatchError(ErrInvalidInput))
		})

		It("refuses receipts of other users", func() {
			_, err := service.CreateReport("alice", "Mixed", "", []string{"r1", "r3"})
			Expect(err).To(MatchError(ErrForbidden))
			Expect(db.reports).To(BeEmpty())
		})

		It("refuses receipts already in a report", func() {
			_, err := service.CreateReport("alice", "First", "", []string{"r1"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreateReport("alice", "Second", "", []string{"r1"})
			Expect(err).To(MatchError(ErrInvalidStatus))
		})

		It("reports missing receipts", func() {
			_, err := service.CreateReport("alice", "Ghost", "", []string{"nope"})
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("refuses archived receipts", func() {
			archivedAt := timeSrc.now
			db.receipts["r2"].ArchivedAt = &archivedAt
			_, err := service.CreateReport("alice", "Old stuff", "", []string{"r1", "r2"})
			Expect(err).To(MatchError(ErrInvalidStatus))
			Expect(db.reports).To(BeEmpty())
		})

		It("removes the report when a receipt cannot be linked", func() {
			db.failSaveID = "r2"
			_, err := service.CreateReport("alice", "March travel", "", []string{"r1", "r2"})
			Expect(err).To(MatchError(ContainSubstring("updating receipt r2: disk full")))
			Expect(db.reports).To(BeEmpty())
			Expect(db.receipts["r1"].ReportID).To(BeEmpty())
			Expect(db.receipts["r2"].ReportID).To(BeEmpty())
		})

		It("removes the report when no receipt can be linked", func() {
			db.saveErr = errors.New("disk full")
			_, err := service.CreateReport("alice", "T", "", []string{"r1"})
			Expect(err).To(MatchError("updating receipt r1: disk full"))
			Expect(db.reports).To(BeEmpty())

			db.saveErr = nil
			report, err := service.CreateReport("alice", "T", "", []string{"r1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.receipts["r1"].ReportID).To(Equal(report.ID))
		})
	})

	Describe("UpdateReportStatus", func() {
		BeforeEach(func() {
			db.reports["rep"] = &ExpenseReport{ID: "rep", UserID: "alice", Status: ReportDraft}
		})

		It("lets the owner submit a draft", func() {
			report, err := service.UpdateReportStatus(alice, "rep", ReportSubmitted, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Status).To(Equal(ReportSubmitted))
			Expect(*report.SubmittedAt).To(Equal(timeSrc.now))
		})

		It("lets an admin approve a submitted report", func() {
			db.reports["rep"].Status = ReportSubmitted
			report, err := service.UpdateReportStatus(admin, "rep", ReportApproved, "looks good")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Status).To(Equal(ReportApproved))
			Expect(report.ReviewedBy).To(Equal("root"))
			Expect(report.ReviewerComments).To(Equal("looks good"))
		})

		It("keeps owners from approving their own reports", func() {
			db.reports["rep"].Status = ReportSubmitted
			_, err := service.UpdateReportStatus(alice, "rep", ReportApproved, "")
			Expect(err).To(MatchError(ErrForbidden))
			Expect(db.reports["rep"].Status).To(Equal(ReportSubmitted))
		})

		DescribeTable("refuses transitions that skip a step",
			func(from, to ReportStatus) {
				db.reports["rep"].Status = from
				_, err := service.UpdateReportStatus(admin, "rep", to, "")
				Expect(err).To(MatchError(ErrInvalidStatus))
			},
			Entry("draft to approved", ReportDraft, ReportApproved),
			Entry("submitted to draft", ReportSubmitted, ReportDraft),
			Entry("approved to rejected", ReportApproved, ReportRejected),
			Entry("rejected to submitted", ReportRejected, ReportSubmitted),
		)

		It("refuses unknown statuses", func() {
			_, err := service.UpdateReportStatus(alice, "rep", "paid", "")
			Expect(err).To(MatchError(ErrInvalidInput))
		})

		It("forbids other users", func() {
			_, err := service.UpdateReportStatus(bob, "rep", ReportSubmitted, "")
			Expect(err).To(MatchError(ErrForbidden))
		})
	})

	Describe("listing", func() {
		BeforeEach(func() {
			db.reports["a"] = &ExpenseReport{ID: "a", UserID: "alice", Status: ReportDraft, CreatedAt: timeSrc.now.Add(-time.Hour), ReceiptIDs: []string{"r2", "r1"}}
			db.reports["b"] = &ExpenseReport{ID: "b", UserID: "alice", Status: ReportSubmitted, CreatedAt: timeSrc.now}
			db.reports["c"] = &ExpenseReport{ID: "c", UserID: "bob", Status: ReportDraft, CreatedAt: timeSrc.now}
		})

		It("lists the user's reports newest first", func() {
			reports, err := service.ListReports("alice", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(2))
			Expect(reports[0].ID).To(Equal("b"))
			Expect(reports[1].ID).To(Equal("a"))
		})

		It("filters by status", func() {
			reports, err := service.ListReports("alice", ReportDraft)
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(1))
			Expect(reports[0].ID).To(Equal("a"))
		})

		It("returns a report with its receipts in report order", func() {
			report, receipts, err := service.GetReportWithReceipts(alice, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.ID).To(Equal("a"))
			Expect(receipts).To(HaveLen(2))
			Expect(receipts[0].ID).To(Equal("r2"))
			Expect(receipts[1].ID).To(Equal("r1"))
		})

		It("forbids reading another user's report", func() {
			_, _, err := service.GetReportWithReceipts(alice, "c")
			Expect(err).To(MatchError(ErrForbidden))
		})
	})

	Describe("Stats", func() {
		BeforeEach(func() {
			lastMonth := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
			thisMonth := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
			db.receipts = map[string]*Receipt{
				"a": {ID: "a", UserID: "alice", Amount: 1000, Status: StatusApproved, Category: extraction.CategoryMeals, CreatedAt: thisMonth},
				"b": {ID: "b", UserID: "alice", Amount: 2500, Status: StatusApproved, Category: extraction.CategoryLodging, CreatedAt: lastMonth},
				"c": {ID: "c", UserID: "alice", Amount: 700, Status: StatusApproved, Category: extraction.CategoryMeals, CreatedAt: thisMonth},
				"d": {ID: "d", UserID: "alice", Amount: 300, Status: StatusPending, Category: extraction.CategoryMeals, CreatedAt: thisMonth},
				"e": {ID: "e", UserID: "alice", Amount: 900, Status: StatusRejected, CreatedAt: thisMonth},
				"f": {ID: "f", UserID: "bob", Amount: 5000, Status: StatusApproved, CreatedAt: thisMonth},
			}
			db.reports["draft"] = &ExpenseReport{ID: "draft", UserID: "alice", Status: ReportDraft}
			db.reports["submitted"] = &ExpenseReport{ID: "submitted", UserID: "alice", Status: ReportSubmitted}
			db.reports["approved"] = &ExpenseReport{ID: "approved", UserID: "alice", Status: ReportApproved}
			db.reports["bobs"] = &ExpenseReport{ID: "bobs", UserID: "bob", Status: ReportDraft}
		})

		It("summarizes the user's receipts and reports", func() {
			stats, err := service.Stats("alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalMonthlyExpenses).To(Equal(1700))
			Expect(stats.MonthlyReceiptsCount).To(Equal(2))
			Expect(stats.TotalReceiptsCount).To(Equal(3))
			Expect(stats.PendingReceiptsCount).To(Equal(1))
			Expect(stats.ReceiptStatusBreakdown).To(Equal(map[Status]int{
				StatusApproved: 3,
				StatusPending:  1,
				StatusRejected: 1,
			}))
			Expect(stats.CategoryTotals).To(Equal(map[string]int{
				extraction.CategoryMeals:   1700,
				extraction.CategoryLodging: 2500,
			}))
			Expect(stats.TotalReportsCount).To(Equal(3))
			Expect(stats.PendingReports).To(Equal(2))
		})

		It("returns zeroes for a new user", func() {
			stats, err := service.Stats("carol")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalReceiptsCount).To(BeZero())
			Expect(stats.CategoryTotals).To(BeEmpty())
		})
	})
})
