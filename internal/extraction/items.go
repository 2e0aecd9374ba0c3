package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxQuantity = 100
	// fallbackLines bounds the unstructured pass used when no rule matched.
	fallbackLines = 10
)

// totalTolerance is the allowed gap between unit*qty and the printed total.
var totalTolerance = decimal.RequireFromString("0.02")

// skipLines reject lines that are never purchased items.
var skipLines = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(total|subtotal|tax|discount|tip|change|cash|credit|debit|visa|mastercard|amex|discover)`),
	regexp.MustCompile(`(?i)^(receipt|invoice|bill|date|time|cashier|server|table|order|transaction|reference)`),
	regexp.MustCompile(`^[\d\s\-/.#]+$`),
	regexp.MustCompile(`^[*\-=_\s]+$`),
	regexp.MustCompile(`^.{0,2}$`),
	regexp.MustCompile(`^.{60,}$`),
	regexp.MustCompile(`^\d{1,2}/\d{1,2}(?:/\d{2,4})?`),
	regexp.MustCompile(`(?i)^\d{1,2}:\d{2}(?::\d{2})?(?:\s*[AP]M)?`),
	regexp.MustCompile(`(?i)^(thank you|visit us|store|location|address|phone|email|website|manager|employee)`),
	regexp.MustCompile(`(?i)^(card|account|approval|auth|ref|terminal|merchant)`),
	regexp.MustCompile(`(?i)^(save|earn|points|rewards|member|loyalty)`),
	// Dutch opening hours and contact lines
	regexp.MustCompile(`(?i)^(open|geopend|vrijdag|zaterdag|zondag|maandag|dinsdag|woensdag|donderdag|tel|e-mail|damrak)`),
	regexp.MustCompile(`(?i)^(in total|incl vat|vat|btw)`),
}

var (
	numericDescription = regexp.MustCompile(`^[\d\s\-/.#]+$`)
	symbolDescription  = regexp.MustCompile(`^[*\-=_\s]+$`)
	trailingPrice      = regexp.MustCompile(`[€$]?(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*$`)
)

// itemRule pairs a line shape with the handler that turns its submatches into
// an item. A nil item means the line matched but failed validation.
type itemRule struct {
	pattern *regexp.Regexp
	build   func(m []string) *LineItem
}

// itemRules are tried in order.
var itemRules = []itemRule{
	// "1 McB ChiliChicken                2.50"
	{regexp.MustCompile(`^(\d{1,2})\s+([A-Za-z][A-Za-z\s&'.-]{2,40}?)\s{2,}(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*$`), countedItem},
	// "1 McB ChiliChicken                €2.50"
	{regexp.MustCompile(`^(\d{1,2})\s+([A-Za-z][A-Za-z\s&'.-]{2,40}?)\s{2,}[€$]?(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*$`), countedItem},
	// "1 McB Cola Zero"
	{regexp.MustCompile(`^(\d{1,2})\s+([A-Za-z][A-Za-z\s&'.-]{2,40}?)\s*$`), countedItem},
	// "Item Name                    $12.99"
	{regexp.MustCompile(`^(.{3,45}?)\s{2,}[€$]?(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*$`), pricedItem},
	// "2x Item Name    $12.99"
	{regexp.MustCompile(`^(\d{1,2})\s*x?\s+(.{3,35}?)\s{2,}[€$]?(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*$`), leadingQuantityItem},
	// "Item Name  Qty: 2  $12.99"
	{regexp.MustCompile(`(?i)^(.{3,35}?)\s+(?:qty|quantity)[:.]?\s*(\d{1,2})\s+[€$]?(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*$`), labeledQuantityItem},
	// "Item Name @ $5.99"
	{regexp.MustCompile(`^(.{3,35}?)\s+@\s+[€$]?(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*$`), unitPricedItem},
	// "Item  $5.00 x 2 = $10.00"
	{regexp.MustCompile(`(?i)^(.{3,35}?)\s+[€$]?(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*x\s*(\d{1,2})\s*=?\s*[€$]?(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*$`), multipliedItem},
	// "Coffee        4.99"
	{regexp.MustCompile(`^([a-zA-Z][a-zA-Z\s&'.-]{2,30})\s{2,}(\d{1,3}\.?\d{0,2})\s*$`), pricedItem},
	// "Large Coffee                 $4.99"
	{regexp.MustCompile(`(?i)^((?:small|medium|large|extra|regular)?\s*[a-zA-Z][a-zA-Z\s&'.-]{2,30})\s{2,}[€$]?(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*$`), pricedItem},
}

func parseQuantity(s string) (int, bool) {
	q, err := strconv.Atoi(s)
	if err != nil || q <= 0 || q >= maxQuantity {
		return 0, false
	}
	return q, true
}

func parsePrice(s string) (float64, bool) {
	return parseBounded(s, maxLineAmount)
}

// countedItem handles a leading quantity with an optional trailing price. An
// out-of-range price is dropped rather than rejecting the item.
func countedItem(m []string) *LineItem {
	qty, ok := parseQuantity(m[1])
	description := strings.TrimSpace(m[2])
	if !ok || len(description) < 2 {
		return nil
	}
	item := &LineItem{Description: description, Quantity: &qty}
	if len(m) > 3 {
		if price, ok := parsePrice(m[3]); ok {
			item.TotalPrice = &price
		}
	}
	return item
}

func pricedItem(m []string) *LineItem {
	price, ok := parsePrice(m[2])
	if !ok {
		return nil
	}
	return &LineItem{Description: strings.TrimSpace(m[1]), TotalPrice: &price}
}

func quantityPriced(description, quantity, price string) *LineItem {
	qty, okQty := parseQuantity(quantity)
	total, okPrice := parsePrice(price)
	if !okQty || !okPrice {
		return nil
	}
	return &LineItem{Description: strings.TrimSpace(description), Quantity: &qty, TotalPrice: &total}
}

func leadingQuantityItem(m []string) *LineItem {
	return quantityPriced(m[2], m[1], m[3])
}

func labeledQuantityItem(m []string) *LineItem {
	return quantityPriced(m[1], m[2], m[3])
}

// unitPricedItem handles "@ price" lines; with no count the line total is the unit price.
func unitPricedItem(m []string) *LineItem {
	price, ok := parsePrice(m[2])
	if !ok {
		return nil
	}
	unit := price
	return &LineItem{Description: strings.TrimSpace(m[1]), UnitPrice: &unit, TotalPrice: &price}
}

// multipliedItem accepts "unit x qty = total" only when the arithmetic holds.
func multipliedItem(m []string) *LineItem {
	qty, okQty := parseQuantity(m[3])
	unit, okUnit := parsePrice(m[2])
	total, okTotal := parsePrice(m[4])
	if !okQty || !okUnit || !okTotal {
		return nil
	}
	unitDec, _ := parseNumber(m[2])
	totalDec, _ := parseNumber(m[4])
	if unitDec.Mul(decimal.NewFromInt(int64(qty))).Sub(totalDec).Abs().GreaterThan(totalTolerance) {
		return nil
	}
	return &LineItem{Description: strings.TrimSpace(m[1]), Quantity: &qty, UnitPrice: &unit, TotalPrice: &total}
}

func skipLine(line string) bool {
	for _, pattern := range skipLines {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

func validDescription(description string) bool {
	return lengthBetween(description, 2, 50) &&
		!numericDescription.MatchString(description) &&
		!symbolDescription.MatchString(description)
}

// matchItem runs the rules over one trimmed line. The first rule that matches
// owns the line, so a rejected match yields nil without trying later rules.
func matchItem(line string) *LineItem {
	for _, rule := range itemRules {
		m := rule.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := rule.build(m)
		if item == nil || !validDescription(item.Description) {
			return nil
		}
		return item
	}
	return nil
}

// fallbackItems reads up to ten unstructured lines as items, splitting off a
// trailing price when one is present and valid.
func fallbackItems(lines []string) []LineItem {
	var items []LineItem
	for _, line := range lines {
		if len(items) == fallbackLines {
			break
		}
		line = strings.TrimSpace(line)
		if !lengthBetween(line, 3, 50) || skipLine(line) || !hasLetter.MatchString(line) ||
			numericDescription.MatchString(line) || symbolDescription.MatchString(line) {
			continue
		}

		if loc := trailingPrice.FindStringSubmatchIndex(line); loc != nil {
			price, ok := parsePrice(line[loc[2]:loc[3]])
			description := strings.TrimSpace(line[:loc[0]])
			if ok && validDescription(description) {
				items = append(items, LineItem{Description: description, TotalPrice: &price})
				continue
			}
		}
		items = append(items, LineItem{Description: line})
	}
	return items
}

// ExtractLineItems builds the itemized purchase list in order of appearance,
// capped at MaxItems.
func ExtractLineItems(lines []string) []LineItem {
	items := []LineItem{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if skipLine(line) {
			continue
		}
		if item := matchItem(line); item != nil {
			items = append(items, *item)
		}
	}

	if len(items) == 0 {
		items = append(items, fallbackItems(lines)...)
	}
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	return items
}
