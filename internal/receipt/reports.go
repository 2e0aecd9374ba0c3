package receipt

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// reportTransitions lists the statuses each report status may move to
var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportDraft:     {ReportSubmitted},
	ReportSubmitted: {ReportApproved, ReportRejected},
}

// CreateReport groups the user's receipts into a draft expense report.
// Receipts must belong to the user and must not already be in a report.
func (s *Service) CreateReport(userID, title, description string, receiptIDs []string) (*ExpenseReport, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if len(receiptIDs) == 0 {
		return nil, fmt.Errorf("at least one receipt is required: %w", ErrInvalidInput)
	}

	receipts := make([]*Receipt, 0, len(receiptIDs))
	seen := make(map[string]bool, len(receiptIDs))
	var totalAmount int
	for _, receiptID := range receiptIDs {
		if seen[receiptID] {
			return nil, fmt.Errorf("receipt %s listed twice: %w", receiptID, ErrInvalidInput)
		}
		seen[receiptID] = true

		receipt, err := s.db.GetReceipt(receiptID)
		if err != nil {
			return nil, fmt.Errorf("getting receipt %s: %w", receiptID, err)
		}
		if receipt.UserID != userID {
			return nil, fmt.Errorf("receipt %s: %w", receiptID, ErrForbidden)
		}
		if receipt.ReportID != "" {
			return nil, fmt.Errorf("receipt %s is already in report %s: %w", receiptID, receipt.ReportID, ErrInvalidStatus)
		}
		if receipt.Archived() {
			return nil, fmt.Errorf("receipt %s is archived: %w", receiptID, ErrInvalidStatus)
		}
		totalAmount += receipt.Amount
		receipts = append(receipts, receipt)
	}

	now := s.timeSource.Now()
	report := &ExpenseReport{
		ID:          s.idGenerator.Generate(),
		UserID:      userID,
		Title:       title,
		Description: description,
		ReceiptIDs:  receiptIDs,
		TotalAmount: totalAmount,
		Status:      ReportDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.SaveReport(report); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}

	for i, receipt := range receipts {
		receipt.ReportID = report.ID
		receipt.UpdatedAt = now
		if err := s.db.SaveReceipt(receipt); err != nil {
			s.rollbackReport(report, receipts[:i+1])
			return nil, fmt.Errorf("updating receipt %s: %w", receipt.ID, err)
		}
	}

	slog.Info("Report created", "id", report.ID, "user", userID, "receipts", len(receipts), "total", totalAmount)
	return report, nil
}

// rollbackReport unlinks receipts from a report that could not be completed
// and deletes the report. Failures are logged.
func (s *Service) rollbackReport(report *ExpenseReport, linked []*Receipt) {
	for _, receipt := range linked {
		receipt.ReportID = ""
		if err := s.db.SaveReceipt(receipt); err != nil {
			slog.Error("Failed to unlink receipt from report", "receipt", receipt.ID, "report", report.ID, "error", err)
		}
	}
	if err := s.db.DeleteReport(report.ID); err != nil {
		slog.Error("Failed to delete incomplete report", "id", report.ID, "error", err)
	}
}

// UpdateReportStatus moves a report through draft, submitted and approved or
// rejected. Only admins may approve or reject.
func (s *Service) UpdateReportStatus(actor Actor, id string, status ReportStatus, comments string) (*ExpenseReport, error) {
	switch status {
	case ReportDraft, ReportSubmitted, ReportApproved, ReportRejected:
	default:
		return nil, fmt.Errorf("unknown report status %q: %w", status, ErrInvalidInput)
	}

	report, err := s.getReport(actor, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(reportTransitions[report.Status], status) {
		return nil, fmt.Errorf("report %s from %s to %s: %w", id, report.Status, status, ErrInvalidStatus)
	}

	now := s.timeSource.Now()
	switch status {
	case ReportSubmitted:
		report.SubmittedAt = &now
	case ReportApproved, ReportRejected:
		if !actor.Admin {
			return nil, fmt.Errorf("reviewing reports: %w", ErrForbidden)
		}
		report.ReviewedBy = actor.ID
		report.ReviewedAt = &now
		report.ReviewerComments = comments
	}
	report.Status = status
	report.UpdatedAt = now

	if err := s.db.SaveReport(report); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}
	return report, nil
}

func (s *Service) getReport(actor Actor, id string) (*ExpenseReport, error) {
	report, err := s.db.GetReport(id)
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	if !actor.canAccess(report.UserID) {
		return nil, fmt.Errorf("report %s: %w", id, ErrForbidden)
	}
	return report, nil
}

// ListReports returns the user's reports, optionally filtered by status, newest first
func (s *Service) ListReports(userID string, status ReportStatus) ([]*ExpenseReport, error) {
	all, err := s.db.ListReports()
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	reports := make([]*ExpenseReport, 0, len(all))
	for _, r := range all {
		if r.UserID == userID && (status == "" || r.Status == status) {
			reports = append(reports, r)
		}
	}
	sortNewestFirst(reports, func(r *ExpenseReport) time.Time { return r.CreatedAt })
	return reports, nil
}

// GetReportWithReceipts retrieves a report with its receipts in report order
func (s *Service) GetReportWithReceipts(actor Actor, id string) (*ExpenseReport, []*Receipt, error) {
	report, err := s.getReport(actor, id)
	if err != nil {
		return nil, nil, err
	}

	receipts := make([]*Receipt, 0, len(report.ReceiptIDs))
	for _, receiptID := range report.ReceiptIDs {
		receipt, err := s.db.GetReceipt(receiptID)
		if err != nil {
			return nil, nil, fmt.Errorf("getting receipt %s: %w", receiptID, err)
		}
		receipts = append(receipts, receipt)
	}

	return report, receipts, nil
}

// Stats is the dashboard summary for one user. Amounts are in cents.
type Stats struct {
	TotalMonthlyExpenses   int            `json:"total_monthly_expenses"`
	MonthlyReceiptsCount   int            `json:"monthly_receipts_count"`
	TotalReceiptsCount     int            `json:"total_receipts_count"`
	PendingReceiptsCount   int            `json:"pending_receipts_count"`
	PendingReports         int            `json:"pending_reports"`
	TotalReportsCount      int            `json:"total_reports_count"`
	ReceiptStatusBreakdown map[Status]int `json:"receipt_status_breakdown"`
	CategoryTotals         map[string]int `json:"category_totals"`
}

// Stats summarizes the user's receipts and reports. Monthly figures count
// approved receipts uploaded in the current calendar month; receipt and
// category totals count approved receipts only.
func (s *Service) Stats(userID string) (*Stats, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	reports, err := s.db.ListReports()
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	now := s.timeSource.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	stats := &Stats{
		ReceiptStatusBreakdown: make(map[Status]int),
		CategoryTotals:         make(map[string]int),
	}
	for _, r := range receipts {
		if r.UserID != userID {
			continue
		}
		stats.ReceiptStatusBreakdown[r.Status]++
		switch r.Status {
		case StatusPending:
			stats.PendingReceiptsCount++
		case StatusApproved:
			stats.TotalReceiptsCount++
			stats.CategoryTotals[r.Category] += r.Amount
			if !r.CreatedAt.Before(monthStart) && r.CreatedAt.Before(monthEnd) {
				stats.MonthlyReceiptsCount++
				stats.TotalMonthlyExpenses += r.Amount
			}
		}
	}

	for _, r := range reports {
		if r.UserID != userID {
			continue
		}
		stats.TotalReportsCount++
		if r.Status == ReportDraft || r.Status == ReportSubmitted {
			stats.PendingReports++
		}
	}

	return stats, nil
}
