package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// vendorStrategy inspects the leading lines of a receipt and returns a
// business name, or "" when it has no opinion.
type vendorStrategy func(lines []string) string

// vendorStrategies run in priority order; the first non-empty answer wins.
var vendorStrategies = []vendorStrategy{
	vendorByKeyword,
	vendorByShape,
	vendorByFirstPlausibleLine,
	vendorByLongestLine,
}

var (
	businessShapes = []*regexp.Regexp{
		regexp.MustCompile(`^[A-Z][A-Z\s&'.-]{2,35}$`),
		regexp.MustCompile(`^[A-Z][a-z]+(?:\s[A-Z][a-z]*)*(?:\s(?:Inc|LLC|Corp|Ltd|Co|Restaurant|Cafe|Store|Market|Shop)\.?)?$`),
		regexp.MustCompile(`(?i)^[A-Za-z][A-Za-z\s&'.-]*(?:Restaurant|Cafe|Store|Market|Shop|Inc|LLC|Corp|Ltd|Co)$`),
		// "7-Eleven", "24 Hour Fitness"
		regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\s&'.-]{2,35}$`),
	}

	metadataLine  = regexp.MustCompile(`(?i)^(RECEIPT|INVOICE|BILL|TOTAL|SUBTOTAL|TAX|DATE|TIME|CUSTOMER|COPY|MERCHANT|TERMINAL|STORE|LOCATION|ADDRESS|\d+|THANK YOU|VISIT|AGAIN)$`)
	numericLine   = regexp.MustCompile(`^[\d\s\-/.()]+$`)
	separatorLine = regexp.MustCompile(`^[*\-=_\s]+$`)
	hasLetter     = regexp.MustCompile(`[a-zA-Z]`)
	digitsOnly    = regexp.MustCompile(`^\d+$`)
	dateOnlyLine  = regexp.MustCompile(`^\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}$`)
	streetAddress = regexp.MustCompile(`(?i)^\d+\s+\w+\s+(st|street|ave|avenue|rd|road|blvd|boulevard|dr|drive|ln|lane)$`)
	numberSymbols = regexp.MustCompile(`^[\d\s\-/.]+$`)
)

func head(lines []string, n int) []string {
	if len(lines) < n {
		return lines
	}
	return lines[:n]
}

func lengthBetween(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}

// vendorByKeyword returns the first of the top five lines naming a known vendor.
func vendorByKeyword(lines []string) string {
	for _, line := range head(lines, 5) {
		line = strings.TrimSpace(line)
		if !lengthBetween(line, 2, 50) {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range vendorKeywords {
			if strings.Contains(lower, kw.keyword) {
				return line
			}
		}
	}
	return ""
}

// vendorByShape looks for a line in the top eight shaped like a business name.
func vendorByShape(lines []string) string {
	for _, line := range head(lines, 8) {
		line = strings.TrimSpace(line)
		if !lengthBetween(line, 3, 40) {
			continue
		}
		if metadataLine.MatchString(line) || numericLine.MatchString(line) || separatorLine.MatchString(line) {
			continue
		}
		for _, shape := range businessShapes {
			if shape.MatchString(line) {
				return line
			}
		}
	}
	return ""
}

// vendorByFirstPlausibleLine takes the first of the top six lines that is not
// metadata, a number, a date or a street address.
func vendorByFirstPlausibleLine(lines []string) string {
	for _, line := range head(lines, 6) {
		line = strings.TrimSpace(line)
		if !lengthBetween(line, 3, 40) || !hasLetter.MatchString(line) {
			continue
		}
		if metadataLine.MatchString(line) || digitsOnly.MatchString(line) ||
			dateOnlyLine.MatchString(line) || streetAddress.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

// vendorByLongestLine returns the longest lettered line among the top four.
func vendorByLongestLine(lines []string) string {
	best := ""
	for _, line := range head(lines, 4) {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= utf8.RuneCountInString(best) || !lengthBetween(line, 3, 40) {
			continue
		}
		if hasLetter.MatchString(line) && !numberSymbols.MatchString(line) {
			best = line
		}
	}
	return best
}

// ExtractVendor guesses the business name from the split lines of a receipt.
func ExtractVendor(lines []string) string {
	for _, strategy := range vendorStrategies {
		if vendor := strategy(lines); vendor != "" {
			return vendor
		}
	}
	return ""
}
