package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// maxUploadSize bounds multipart bodies; phone photos can be large
const maxUploadSize = int64(50 << 20)

const fileTooLarge = "File is too large. Maximum size is 50MB. Please compress or resize your image."

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeServiceError maps service errors to status codes. Unexpected errors
// are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidStatus):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Error "+action, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a request body into v, writing a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// parseForm parses a multipart upload, writing a 400 on failure
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, fileTooLarge)
		} else {
			writeError(w, http.StatusBadRequest, "Error parsing form")
		}
		return false
	}
	return true
}

// detectContentType uses the part header, falling back to the file extension
func detectContentType(header *multipart.FileHeader) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// readFormFile reads a named file part into an Upload
func readFormFile(r *http.Request, field string) (Upload, error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		return Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Upload{}, fmt.Errorf("reading %s: %w", header.Filename, err)
	}

	return Upload{
		Filename:    header.Filename,
		ContentType: detectContentType(header),
		Data:        data,
	}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOCR reads a receipt without storing it
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	upload, err := readFormFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	if err := upload.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.service.Scan(r.Context(), upload.Data, upload.ContentType))
}

// handleUploadReceipt handles a single receipt upload with optional entered values
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	upload, err := readFormFile(r, "file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
		return
	}
	upload.Vendor = r.FormValue("vendor")
	upload.Amount = r.FormValue("amount")
	upload.Date = r.FormValue("date")
	upload.Category = r.FormValue("category")
	upload.Description = r.FormValue("description")

	receipt, err := s.service.ProcessReceipt(r.Context(), actorFrom(r).ID, upload)
	if err != nil {
		writeServiceError(w, "processing receipt", err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// batchEntry carries the entered values for file_<index>
type batchEntry struct {
	Vendor      string          `json:"vendor"`
	Amount      json.RawMessage `json:"amount"` // number or string
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

// amount returns the entered amount as text, or "" when absent
func (e batchEntry) amount() string {
	if text := amountText(e.Amount); text != nil {
		return *text
	}
	return ""
}

// amountText reads a JSON number or string amount, nil when absent
func amountText(amount json.RawMessage) *string {
	raw := strings.TrimSpace(string(amount))
	if raw == "" || raw == "null" {
		return nil
	}
	var text string
	if err := json.Unmarshal(amount, &text); err == nil {
		return &text
	}
	return &raw
}

// handleUploadBatch expects a batchData JSON array and files named file_0, file_1, ...
func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	batchData := r.FormValue("batchData")
	if batchData == "" {
		writeError(w, http.StatusBadRequest, "No batch data provided")
		return
	}
	var entries []batchEntry
	if err := json.Unmarshal([]byte(batchData), &entries); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid batch data format")
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusBadRequest, "Batch data must be a non-empty array")
		return
	}

	uploads := make([]Upload, len(entries))
	for i, entry := range entries {
		upload, err := readFormFile(r, fmt.Sprintf("file_%d", i))
		if err != nil {
			// an empty upload is reported as a failure for this index
			slog.Warn("Missing batch file", "index", i, "error", err)
		}
		upload.Vendor = entry.Vendor
		upload.Amount = entry.amount()
		upload.Date = entry.Date
		upload.Category = entry.Category
		upload.Description = entry.Description
		uploads[i] = upload
	}

	result, err := s.service.ProcessBatch(r.Context(), actorFrom(r).ID, uploads)
	if err != nil {
		writeServiceError(w, "processing batch", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListReceipts lists receipts; ?status=, ?archived=true and ?all=true (admins) filter
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ReceiptFilter{
		Status:   Status(query.Get("status")),
		Archived: query.Get("archived") == "true",
		AllUsers: query.Get("all") == "true",
	}

	receipts, err := s.service.ListReceipts(actorFrom(r), filter)
	if err != nil {
		writeServiceError(w, "listing receipts", err)
		return
	}

	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "getting receipt", err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleUpdateReceipt changes the entered details of a receipt; omitted fields are kept
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vendor      *string         `json:"vendor"`
		Amount      json.RawMessage `json:"amount"` // number or string
		Date        *string         `json:"date"`
		Category    *string         `json:"category"`
		Description *string         `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	receipt, err := s.service.UpdateReceipt(actorFrom(r), r.PathValue("id"), ReceiptUpdate{
		Vendor:      req.Vendor,
		Amount:      amountText(req.Amount),
		Date:        req.Date,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, "updating receipt", err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the uploaded file of a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "getting receipt file", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(actorFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, "deleting receipt", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleReviewReceipt approves or rejects a receipt
func (s *Server) handleReviewReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action          string `json:"action"`
		RejectionReason string `json:"rejection_reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	receipt, err := s.service.ReviewReceipt(actorFrom(r), r.PathValue("id"), req.Action, req.RejectionReason)
	if err != nil {
		writeServiceError(w, "reviewing receipt", err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleArchiveReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.ArchiveReceipt(actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "archiving receipt", err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleRestoreReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.RestoreReceipt(actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "restoring receipt", err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// cleanupCutoff reads ?days= (default 30) into the archive cutoff, writing a 400 on failure
func (s *Server) cleanupCutoff(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	retention := ArchiveRetention
	if days := r.URL.Query().Get("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return time.Time{}, false
		}
		retention = time.Duration(n) * 24 * time.Hour
	}
	return s.service.timeSource.Now().Add(-retention), true
}

// handleCleanupPreview reports how many receipts a cleanup would delete
func (s *Server) handleCleanupPreview(w http.ResponseWriter, r *http.Request) {
	cutoff, ok := s.cleanupCutoff(w, r)
	if !ok {
		return
	}

	preview, err := s.service.PreviewCleanup(actorFrom(r), cutoff)
	if err != nil {
		writeServiceError(w, "previewing cleanup", err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// handleCleanup deletes receipts archived longer than ?days= (default 30)
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	cutoff, ok := s.cleanupCutoff(w, r)
	if !ok {
		return
	}

	result, err := s.service.CleanupArchived(actorFrom(r), cutoff)
	if err != nil {
		writeServiceError(w, "cleaning up receipts", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListReports lists the caller's reports, optionally filtered by ?status=
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.service.ListReports(actorFrom(r).ID, ReportStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceError(w, "listing reports", err)
		return
	}

	writeJSON(w, http.StatusOK, reports)
}

// handleCreateReport creates a draft report from receipts
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		ReceiptIDs  []string `json:"receipt_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := s.service.CreateReport(actorFrom(r).ID, req.Title, req.Description, req.ReceiptIDs)
	if err != nil {
		writeServiceError(w, "creating report", err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// handleGetReport returns a report with its receipts
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, receipts, err := s.service.GetReportWithReceipts(actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "getting report", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report":   report,
		"receipts": receipts,
	})
}

// handleUpdateReportStatus submits, approves or rejects a report
func (s *Server) handleUpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status   ReportStatus `json:"status"`
		Comments string       `json:"comments"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := s.service.UpdateReportStatus(actorFrom(r), r.PathValue("id"), req.Status, req.Comments)
	if err != nil {
		writeServiceError(w, "updating report", err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleStats returns the caller's dashboard summary
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(actorFrom(r).ID)
	if err != nil {
		writeServiceError(w, "getting stats", err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
