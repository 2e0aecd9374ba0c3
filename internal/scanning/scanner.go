package scanning

import (
	"context"
	"errors"
)

// ErrNoText is returned when the provider answered but found no readable text.
var ErrNoText = errors.New("no text found in image")

// Recognizer turns a receipt image into raw OCR text.
type Recognizer interface {
	// RecognizeText returns the text read from an image or PDF
	RecognizeText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close releases any client resources
	Close() error
}
