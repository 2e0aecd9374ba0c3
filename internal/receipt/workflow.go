package receipt

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Review actions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// ArchiveRetention is how long archived receipts are kept before cleanup
const ArchiveRetention = 30 * 24 * time.Hour

// sortNewestFirst orders records by descending timestamp
func sortNewestFirst[T any](records []T, at func(T) time.Time) {
	slices.SortStableFunc(records, func(a, b T) int {
		return at(b).Compare(at(a))
	})
}

// ReviewReceipt approves or rejects a receipt. Rejection requires a reason.
func (s *Service) ReviewReceipt(actor Actor, id, action, reason string) (*Receipt, error) {
	if !actor.Admin {
		return nil, fmt.Errorf("reviewing receipts: %w", ErrForbidden)
	}

	var status Status
	switch action {
	case ActionApprove:
		status = StatusApproved
	case ActionReject:
		if reason == "" {
			return nil, fmt.Errorf("rejection reason is required: %w", ErrInvalidInput)
		}
		status = StatusRejected
	default:
		return nil, fmt.Errorf("unknown review action %q: %w", action, ErrInvalidInput)
	}

	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	now := s.timeSource.Now()
	receipt.Status = status
	receipt.ReviewedBy = actor.ID
	receipt.ReviewedAt = &now
	receipt.RejectionReason = ""
	if status == StatusRejected {
		receipt.RejectionReason = reason
	}
	receipt.UpdatedAt = now

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	slog.Info("Receipt reviewed", "id", id, "status", status, "reviewer", actor.ID)
	return receipt, nil
}

// ArchiveReceipt hides a receipt from the active list
func (s *Service) ArchiveReceipt(actor Actor, id string) (*Receipt, error) {
	receipt, err := s.GetReceipt(actor, id)
	if err != nil {
		return nil, err
	}
	if receipt.Archived() {
		return nil, fmt.Errorf("receipt %s is already archived: %w", id, ErrInvalidStatus)
	}
	if receipt.ReportID != "" {
		return nil, fmt.Errorf("receipt %s is part of report %s: %w", id, receipt.ReportID, ErrInvalidStatus)
	}

	now := s.timeSource.Now()
	receipt.ArchivedAt = &now
	receipt.UpdatedAt = now
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return receipt, nil
}

// RestoreReceipt moves an archived receipt back to the active list. Receipts
// archived longer than ArchiveRetention ago are due for cleanup and stay archived.
func (s *Service) RestoreReceipt(actor Actor, id string) (*Receipt, error) {
	receipt, err := s.GetReceipt(actor, id)
	if err != nil {
		return nil, err
	}
	if !receipt.Archived() {
		return nil, fmt.Errorf("receipt %s is not archived: %w", id, ErrInvalidStatus)
	}
	now := s.timeSource.Now()
	if receipt.ArchivedAt.Before(now.Add(-ArchiveRetention)) {
		return nil, fmt.Errorf("receipt %s was archived beyond the %d-day restore window: %w", id, int(ArchiveRetention.Hours()/24), ErrInvalidStatus)
	}

	receipt.ArchivedAt = nil
	receipt.UpdatedAt = now
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return receipt, nil
}

// CleanupResult summarizes a cleanup run
type CleanupResult struct {
	TotalFound     int      `json:"total_found"`
	DeletedRecords int      `json:"deleted_records"`
	DeletedFiles   int      `json:"deleted_files"`
	Errors         []string `json:"errors,omitempty"`
}

// CleanupPreview describes what a cleanup run with the same cutoff would delete
type CleanupPreview struct {
	CutoffDate       time.Time `json:"cutoff_date"`
	ReceiptsToDelete int       `json:"receipts_to_delete"`
}

// archivedBefore lists receipts archived before the cutoff
func (s *Service) archivedBefore(actor Actor, before time.Time) ([]*Receipt, error) {
	if !actor.Admin {
		return nil, fmt.Errorf("cleaning up receipts: %w", ErrForbidden)
	}

	all, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	var receipts []*Receipt
	for _, receipt := range all {
		if receipt.Archived() && receipt.ArchivedAt.Before(before) {
			receipts = append(receipts, receipt)
		}
	}
	return receipts, nil
}

// PreviewCleanup counts the receipts CleanupArchived would delete without
// deleting anything. Receipts linked to a report are not counted.
func (s *Service) PreviewCleanup(actor Actor, before time.Time) (*CleanupPreview, error) {
	receipts, err := s.archivedBefore(actor, before)
	if err != nil {
		return nil, err
	}

	preview := &CleanupPreview{CutoffDate: before}
	for _, receipt := range receipts {
		if receipt.ReportID == "" {
			preview.ReceiptsToDelete++
		}
	}
	return preview, nil
}

// CleanupArchived permanently deletes receipts archived before the cutoff.
// Receipts linked to a report are kept. Failures are collected per receipt
// and do not stop the run.
func (s *Service) CleanupArchived(actor Actor, before time.Time) (*CleanupResult, error) {
	receipts, err := s.archivedBefore(actor, before)
	if err != nil {
		return nil, err
	}

	result := &CleanupResult{TotalFound: len(receipts)}
	for _, receipt := range receipts {
		if receipt.ReportID != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s is part of report %s", receipt.ID, receipt.ReportID))
			continue
		}

		if err := s.storage.Delete(receipt.Filename); err != nil {
			slog.Warn("Failed to delete file during cleanup", "id", receipt.ID, "filename", receipt.Filename, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("file deletion failed for receipt %s: %v", receipt.ID, err))
		} else {
			result.DeletedFiles++
		}

		if err := s.db.DeleteReceipt(receipt.ID); err != nil {
			slog.Error("Failed to delete receipt during cleanup", "id", receipt.ID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("database deletion failed for receipt %s: %v", receipt.ID, err))
			continue
		}
		result.DeletedRecords++
	}

	slog.Info("Cleanup completed", "before", before, "found", result.TotalFound, "deleted", result.DeletedRecords)
	return result, nil
}
