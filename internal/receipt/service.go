package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/expense-tracker/internal/extraction"
	"github.com/zombor/expense-tracker/internal/scanning"
)

var (
	// ErrForbidden is returned when the actor may not touch the record
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidStatus is returned for a workflow transition that is not allowed
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrInvalidInput is returned when caller supplied values fail validation
	ErrInvalidInput = errors.New("invalid input")
)

// UnreadableMessage is shown when no text could be read from an image
const UnreadableMessage = "Could not read this receipt; please enter details manually."

// IDGenerator generates unique IDs for receipts and reports
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations
type Service struct {
	db           DB
	recognizer   scanning.Recognizer
	storage      Storage
	idGenerator  IDGenerator
	timeSource   TimeSource
	metrics      *Metrics
	batchWorkers int
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, recognizer scanning.Recognizer, storage Storage) *Service {
	return NewServiceWithDeps(db, recognizer, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer scanning.Recognizer, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:           db,
		recognizer:   recognizer,
		storage:      storage,
		idGenerator:  idGen,
		timeSource:   timeSrc,
		batchWorkers: 4,
	}
}

// WithMetrics records processing metrics on m
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// WithBatchWorkers bounds how many uploads of a batch are processed at once
func (s *Service) WithBatchWorkers(n int) *Service {
	if n > 0 {
		s.batchWorkers = n
	}
	return s
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
	unsafePathChars     = regexp.MustCompile(`[^a-zA-Z0-9\-_.@]`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))

	// phone cameras produce very long names
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// userDir turns a user ID into a single safe path segment
func userDir(userID string) string {
	dir := unsafePathChars.ReplaceAllString(userID, "_")
	if dir == "" || strings.Trim(dir, ".") == "" {
		return "_"
	}
	return dir
}

// toCents converts an extracted dollar amount to cents
func toCents(amount float64) int {
	return int(decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart())
}

// parseAmount reads a user supplied amount such as "12.50" or "$1,250" into cents
func parseAmount(s string) (int, error) {
	clean := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", "")
	d, err := decimal.NewFromString(clean)
	if err != nil || d.IsNegative() {
		return 0, fmt.Errorf("amount %q: %w", s, ErrInvalidInput)
	}
	return int(d.Shift(2).Round(0).IntPart()), nil
}

// ScanResult is the outcome of reading a receipt image
type ScanResult struct {
	Recognized bool              `json:"recognized"`
	Text       string            `json:"text,omitempty"`
	Message    string            `json:"message,omitempty"`
	Extraction extraction.Result `json:"extraction"`
}

// Scan recognizes the text of an image and interprets it. It never fails:
// when no text can be read the result is marked as not recognized.
func (s *Service) Scan(ctx context.Context, data []byte, contentType string) *ScanResult {
	text, err := s.recognizer.RecognizeText(ctx, data, contentType)
	if err != nil {
		if errors.Is(err, scanning.ErrNoText) {
			slog.Warn("No text found in receipt", "content_type", contentType, "file_size", len(data))
			s.metrics.ocrRequest("no_text")
		} else {
			slog.Error("Failed to recognize receipt text",
				"content_type", contentType,
				"file_size", len(data),
				"error", err,
			)
			s.metrics.ocrRequest("error")
		}
		return &ScanResult{
			Recognized: false,
			Message:    UnreadableMessage,
			Extraction: extraction.Empty(),
		}
	}

	s.metrics.ocrRequest("success")
	result := extraction.Extract(text)
	s.metrics.extracted(result)

	return &ScanResult{
		Recognized: true,
		Text:       text,
		Extraction: result,
	}
}

// Upload is one receipt file plus optional values entered by the user.
// Entered values take precedence over extracted ones.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	Vendor      string
	Amount      string
	Date        string // YYYY-MM-DD
	Category    string
	Description string
}

func (u Upload) validate() error {
	if len(u.Data) == 0 {
		return fmt.Errorf("empty file: %w", ErrInvalidInput)
	}
	if !strings.HasPrefix(u.ContentType, "image/") && u.ContentType != "application/pdf" {
		return fmt.Errorf("only image and PDF files are allowed: %w", ErrInvalidInput)
	}
	return nil
}

// ProcessReceipt stores an upload, scans it and saves a pending receipt
func (s *Service) ProcessReceipt(ctx context.Context, userID string, upload Upload) (*Receipt, error) {
	receipt, err := s.processReceipt(ctx, userID, upload)
	if err != nil {
		s.metrics.receiptProcessed("error")
		return nil, err
	}
	s.metrics.receiptProcessed("success")
	return receipt, nil
}

func (s *Service) processReceipt(ctx context.Context, userID string, upload Upload) (*Receipt, error) {
	if err := upload.validate(); err != nil {
		return nil, err
	}

	var (
		userAmount int
		userDate   time.Time
		err        error
	)
	if upload.Amount != "" {
		if userAmount, err = parseAmount(upload.Amount); err != nil {
			return nil, err
		}
	}
	if upload.Date != "" {
		if userDate, err = time.Parse("2006-01-02", upload.Date); err != nil {
			return nil, fmt.Errorf("date %q: %w", upload.Date, ErrInvalidInput)
		}
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s/%s_%s", userDir(userID), id, sanitizeFilename(upload.Filename)), upload.Data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	scan := s.Scan(ctx, upload.Data, upload.ContentType)
	extracted := scan.Extraction

	receipt := &Receipt{
		ID:               id,
		UserID:           userID,
		Filename:         savedPath,
		OriginalFilename: upload.Filename,
		ContentType:      upload.ContentType,
		Vendor:           upload.Vendor,
		Amount:           userAmount,
		Date:             userDate,
		Category:         upload.Category,
		Description:      upload.Description,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if scan.Recognized {
		receipt.Extraction = &extracted
	}

	if receipt.Vendor == "" {
		receipt.Vendor = extracted.Vendor
	}
	if upload.Amount == "" && extracted.Amount != nil {
		receipt.Amount = toCents(*extracted.Amount)
	}
	if receipt.Date.IsZero() {
		receipt.Date = now
		if d, err := time.Parse("2006-01-02", extracted.Date); err == nil {
			receipt.Date = d
		}
	}
	if receipt.Category == "" {
		receipt.Category = extracted.SuggestedCategory
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		if delErr := s.storage.Delete(savedPath); delErr != nil {
			slog.Warn("Failed to clean up file", "filename", savedPath, "error", delErr)
		}
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Receipt processed",
		"id", receipt.ID,
		"user", userID,
		"recognized", scan.Recognized,
		"category", receipt.Category,
	)
	return receipt, nil
}

// GetReceipt retrieves a receipt the actor may access
func (s *Service) GetReceipt(actor Actor, id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if !actor.canAccess(receipt.UserID) {
		return nil, fmt.Errorf("receipt %s: %w", id, ErrForbidden)
	}
	return receipt, nil
}

// ReceiptUpdate carries the fields to change on a receipt. Nil fields are kept.
type ReceiptUpdate struct {
	Vendor      *string
	Amount      *string
	Date        *string // YYYY-MM-DD
	Category    *string
	Description *string
}

// UpdateReceipt corrects the entered details of a receipt. Receipts in a
// report are locked so the report total stays correct.
func (s *Service) UpdateReceipt(actor Actor, id string, update ReceiptUpdate) (*Receipt, error) {
	receipt, err := s.GetReceipt(actor, id)
	if err != nil {
		return nil, err
	}
	if receipt.ReportID != "" {
		return nil, fmt.Errorf("receipt %s is part of report %s: %w", id, receipt.ReportID, ErrInvalidStatus)
	}

	amount := receipt.Amount
	if update.Amount != nil {
		if amount, err = parseAmount(*update.Amount); err != nil {
			return nil, err
		}
	}
	date := receipt.Date
	if update.Date != nil {
		if date, err = time.Parse("2006-01-02", *update.Date); err != nil {
			return nil, fmt.Errorf("date %q: %w", *update.Date, ErrInvalidInput)
		}
	}

	receipt.Amount = amount
	receipt.Date = date
	if update.Vendor != nil {
		receipt.Vendor = *update.Vendor
	}
	if update.Category != nil {
		receipt.Category = *update.Category
	}
	if update.Description != nil {
		receipt.Description = *update.Description
	}
	receipt.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return receipt, nil
}

// ReceiptFilter narrows ListReceipts
type ReceiptFilter struct {
	Status   Status // empty matches any status
	Archived bool   // list archived receipts instead of active ones
	AllUsers bool   // admins only
}

// ListReceipts returns the actor's receipts matching filter, newest first
func (s *Service) ListReceipts(actor Actor, filter ReceiptFilter) ([]*Receipt, error) {
	if filter.AllUsers && !actor.Admin {
		return nil, fmt.Errorf("listing all receipts: %w", ErrForbidden)
	}

	all, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	receipts := make([]*Receipt, 0, len(all))
	for _, r := range all {
		if !filter.AllUsers && r.UserID != actor.ID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if r.Archived() != filter.Archived {
			continue
		}
		receipts = append(receipts, r)
	}
	sortNewestFirst(receipts, func(r *Receipt) time.Time { return r.CreatedAt })
	return receipts, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(actor Actor, id string) error {
	receipt, err := s.GetReceipt(actor, id)
	if err != nil {
		return err
	}
	if receipt.ReportID != "" {
		return fmt.Errorf("receipt %s is part of report %s: %w", id, receipt.ReportID, ErrInvalidStatus)
	}
	return s.removeReceipt(receipt)
}

// removeReceipt deletes the file, then the record. A missing file is logged
// and does not stop the record from being deleted.
func (s *Service) removeReceipt(receipt *Receipt) error {
	if err := s.storage.Delete(receipt.Filename); err != nil {
		slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
	}
	if err := s.db.DeleteReceipt(receipt.ID); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the file data for a receipt
func (s *Service) GetReceiptFile(actor Actor, id string) ([]byte, string, error) {
	receipt, err := s.GetReceipt(actor, id)
	if err != nil {
		return nil, "", err
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}
