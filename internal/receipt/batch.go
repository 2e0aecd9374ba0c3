package receipt

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// BatchItem is a receipt created from the upload at Index
type BatchItem struct {
	Index   int      `json:"index"`
	Receipt *Receipt `json:"receipt"`
}

// BatchError is the failure of the upload at Index
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchSummary counts the outcome of a batch
type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchResult reports every upload of a batch in index order
type BatchResult struct {
	Results []BatchItem  `json:"results"`
	Errors  []BatchError `json:"errors"`
	Summary BatchSummary `json:"summary"`
}

// ProcessBatch processes uploads independently and in parallel. A failed
// upload is reported in Errors and does not affect the others.
func (s *Service) ProcessBatch(ctx context.Context, userID string, uploads []Upload) (*BatchResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("batch must contain at least one receipt: %w", ErrInvalidInput)
	}

	receipts := make([]*Receipt, len(uploads))
	failures := make([]error, len(uploads))

	var g errgroup.Group
	g.SetLimit(s.batchWorkers)
	for i, upload := range uploads {
		g.Go(func() error {
			receipts[i], failures[i] = s.ProcessReceipt(ctx, userID, upload)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{
		Results: make([]BatchItem, 0, len(uploads)),
		Errors:  make([]BatchError, 0),
	}
	for i := range uploads {
		if failures[i] != nil {
			slog.Error("Error processing batch receipt", "index", i, "filename", uploads[i].Filename, "error", failures[i])
			result.Errors = append(result.Errors, BatchError{Index: i, Error: failures[i].Error()})
			continue
		}
		result.Results = append(result.Results, BatchItem{Index: i, Receipt: receipts[i]})
	}
	result.Summary = BatchSummary{
		Total:      len(uploads),
		Successful: len(result.Results),
		Failed:     len(result.Errors),
	}

	slog.Info("Batch processed", "user", userID, "total", result.Summary.Total, "failed", result.Summary.Failed)
	return result, nil
}
