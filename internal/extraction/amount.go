package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// maxAmount rejects OCR noise such as phone numbers and card digits.
	maxAmount = 50000
	// maxLineAmount bounds trailing numbers picked up by the line fallback and item prices.
	maxLineAmount = 1000
	// minTotal is the smallest amount preferred as a total over unit-price fragments.
	minTotal = 2.0
)

// amountTiers are tried in order; the first tier with at least one valid
// match supplies every candidate.
var amountTiers = []*regexp.Regexp{
	// "IN Total (incl VAT) 12.50"
	regexp.MustCompile(`(?i)in\s+total\s*\(incl\s+vat\)\s*[€$]?(\d{1,4}(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)in\s+total[:\s]*[€$]?(\d{1,4}(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?:total|grand total|amount due)[:\s]*[€$]?(\d{1,4}(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)[€$]?(\d{1,4}(?:,\d{3})*(?:\.\d{2})?)\s*(?:total|grand total)`),
	regexp.MustCompile(`(?i)(?:subtotal|sub total)[:\s]*[€$]?(\d{1,4}(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?:balance|amount due|due)[:\s]*[€$]?(\d{1,4}(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(?m)\s+(\d{1,3}\.?\d{0,2})\s*$`),
	regexp.MustCompile(`[€$](\d{1,4}(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(\d{1,4}(?:,\d{3})*(?:\.\d{2})?)\s*[€$]`),
}

var trailingNumber = regexp.MustCompile(`(\d{1,3}\.?\d{0,2})\s*$`)

// parseNumber reads a receipt number, dropping thousands separators and a
// dangling decimal point ("12." reads as 12).
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSuffix(strings.ReplaceAll(s, ",", ""), ".")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseBounded returns the number when 0 < n < limit.
func parseBounded(s string, limit int64) (float64, bool) {
	d, ok := parseNumber(s)
	if !ok || !d.IsPositive() || d.GreaterThanOrEqual(decimal.NewFromInt(limit)) {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// amountCandidates returns the valid amounts of the first tier that yields any.
func amountCandidates(text string) []float64 {
	for _, tier := range amountTiers {
		var found []float64
		for _, m := range tier.FindAllStringSubmatch(text, -1) {
			if amount, ok := parseBounded(m[1], maxAmount); ok {
				found = append(found, amount)
			}
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

// lineAmountCandidates scans lines bottom-up for trailing numbers.
func lineAmountCandidates(lines []string) []float64 {
	var found []float64
	for i := len(lines) - 1; i >= 0; i-- {
		m := trailingNumber.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		if amount, ok := parseBounded(m[1], maxLineAmount); ok {
			found = append(found, amount)
		}
	}
	return found
}

// pickTotal prefers the largest amount of at least minTotal, else the largest overall.
func pickTotal(amounts []float64) *float64 {
	if len(amounts) == 0 {
		return nil
	}
	best, significant := amounts[0], false
	for _, a := range amounts {
		switch {
		case a >= minTotal && (!significant || a > best):
			best, significant = a, true
		case !significant && a > best:
			best = a
		}
	}
	return &best
}

// ExtractAmount finds the most likely transaction total, or nil.
func ExtractAmount(text string) *float64 {
	amounts := amountCandidates(text)
	if len(amounts) == 0 {
		amounts = lineAmountCandidates(SplitLines(text))
	}
	return pickTotal(amounts)
}
