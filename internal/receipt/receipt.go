package receipt

import (
	"time"

	"github.com/zombor/expense-tracker/internal/extraction"
)

// Status is the approval state of a receipt
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ReportStatus is the workflow state of an expense report
type ReportStatus string

const (
	ReportDraft     ReportStatus = "draft"
	ReportSubmitted ReportStatus = "submitted"
	ReportApproved  ReportStatus = "approved"
	ReportRejected  ReportStatus = "rejected"
)

// Receipt represents an uploaded receipt with metadata
type Receipt struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id"`
	Filename         string             `json:"filename"` // storage path
	OriginalFilename string             `json:"original_filename"`
	ContentType      string             `json:"content_type"`
	Vendor           string             `json:"vendor"`
	Amount           int                `json:"amount"` // Amount in cents
	Date             time.Time          `json:"date"`
	Category         string             `json:"category"`
	Description      string             `json:"description,omitempty"`
	Extraction       *extraction.Result `json:"extraction,omitempty"` // nil when the image could not be read
	Status           Status             `json:"status"`
	ReviewedBy       string             `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time         `json:"reviewed_at,omitempty"`
	RejectionReason  string             `json:"rejection_reason,omitempty"`
	ArchivedAt       *time.Time         `json:"archived_at,omitempty"`
	ReportID         string             `json:"report_id,omitempty"` // ID of the expense report this receipt belongs to
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Archived reports whether the receipt has been archived
func (r *Receipt) Archived() bool {
	return r.ArchivedAt != nil
}

// ExpenseReport groups receipts submitted together for reimbursement
type ExpenseReport struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	ReceiptIDs       []string     `json:"receipt_ids"`
	TotalAmount      int          `json:"total_amount"` // Total amount in cents
	Status           ReportStatus `json:"status"`
	SubmittedAt      *time.Time   `json:"submitted_at,omitempty"`
	ReviewedBy       string       `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time   `json:"reviewed_at,omitempty"`
	ReviewerComments string       `json:"reviewer_comments,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	ID    string
	Admin bool
}

// canAccess reports whether the actor may read or change a record owned by userID
func (a Actor) canAccess(userID string) bool {
	return a.Admin || a.ID == userID
}
