package extraction

import (
	"regexp"
	"strings"
)

// CategoryOther is returned when no keyword matched anywhere in the receipt.
const CategoryOther = "Other"

// MaxItems caps the number of line items returned for one receipt.
const MaxItems = 15

// LineItem is one purchased item read from a receipt.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *int     `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unitPrice,omitempty"`
	TotalPrice  *float64 `json:"totalPrice,omitempty"`
}

// Result is the structured interpretation of one receipt's OCR text.
type Result struct {
	Vendor            string     `json:"vendor"`
	Amount            *float64   `json:"amount"`
	Date              string     `json:"date"` // YYYY-MM-DD, the raw match when it could not be normalized, or empty
	Items             []LineItem `json:"items"`
	SuggestedCategory string     `json:"suggestedCategory"`
	Confidence        float64    `json:"confidence"`
}

// Empty returns the result used when no text was recognized.
func Empty() Result {
	return Result{
		Items:             []LineItem{},
		SuggestedCategory: CategoryOther,
	}
}

var blankLines = regexp.MustCompile(`\n+`)

// SplitLines collapses blank lines and drops lines that are only whitespace.
// The returned lines are not trimmed.
func SplitLines(text string) []string {
	clean := strings.TrimSpace(blankLines.ReplaceAllString(text, "\n"))
	var lines []string
	for _, line := range strings.Split(clean, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Extract interprets raw OCR text. It never fails: every extractor degrades
// to its empty value and an empty text yields Empty().
func Extract(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Empty()
	}

	lines := SplitLines(text)
	vendor := ExtractVendor(lines)
	items := ExtractLineItems(lines)
	category, confidence := Classify(vendor, items, text)

	return Result{
		Vendor:            vendor,
		Amount:            ExtractAmount(text),
		Date:              ExtractDate(text),
		Items:             items,
		SuggestedCategory: category,
		Confidence:        confidence,
	}
}
