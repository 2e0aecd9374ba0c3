package extraction

import (
	"math"
	"strings"
)

// Expense categories. Extend by editing the keyword tables below.
const (
	CategoryMeals          = "Meals & Entertainment"
	CategoryTransportation = "Transportation"
	CategoryLodging        = "Lodging"
	CategoryOfficeSupplies = "Office Supplies"
	CategoryTechnology     = "Technology"
	CategoryHealthcare     = "Healthcare"
	CategoryTraining       = "Training & Education"
)

// Categories lists the closed taxonomy in display order.
var Categories = []string{
	CategoryMeals,
	CategoryTransportation,
	CategoryLodging,
	CategoryOfficeSupplies,
	CategoryTechnology,
	CategoryHealthcare,
	CategoryTraining,
	CategoryOther,
}

const (
	vendorWeight = 5
	itemWeight   = 2
	textWeight   = 1
	// fullConfidence is the score at which confidence saturates at 1.
	fullConfidence = 8
)

type keywordCategory struct {
	keyword  string
	category string
}

// vendorKeywords is ordered; iteration order decides score ties.
var vendorKeywords = []keywordCategory{
	{"mcdonalds", CategoryMeals},
	{"mcdonald", CategoryMeals},
	{"starbucks", CategoryMeals},
	{"subway", CategoryMeals},
	{"pizza", CategoryMeals},
	{"restaurant", CategoryMeals},
	{"cafe", CategoryMeals},
	{"kfc", CategoryMeals},
	{"burger king", CategoryMeals},
	{"taco bell", CategoryMeals},
	{"dominos", CategoryMeals},
	{"chipotle", CategoryMeals},
	{"panera", CategoryMeals},
	{"dunkin", CategoryMeals},
	{"uber", CategoryTransportation},
	{"lyft", CategoryTransportation},
	{"taxi", CategoryTransportation},
	{"gas", CategoryTransportation},
	{"shell", CategoryTransportation},
	{"exxon", CategoryTransportation},
	{"mobil", CategoryTransportation},
	{"chevron", CategoryTransportation},
	{"bp", CategoryTransportation},
	{"citgo", CategoryTransportation},
	{"hotel", CategoryLodging},
	{"marriott", CategoryLodging},
	{"hilton", CategoryLodging},
	{"holiday inn", CategoryLodging},
	{"hyatt", CategoryLodging},
	{"airbnb", CategoryLodging},
	{"motel", CategoryLodging},
	{"staples", CategoryOfficeSupplies},
	{"office depot", CategoryOfficeSupplies},
	{"best buy", CategoryTechnology},
	{"apple", CategoryTechnology},
	{"microsoft", CategoryTechnology},
	{"amazon", CategoryOfficeSupplies},
	{"walmart", CategoryOfficeSupplies},
	{"target", CategoryOfficeSupplies},
	{"costco", CategoryOfficeSupplies},
	{"pharmacy", CategoryHealthcare},
	{"cvs", CategoryHealthcare},
	{"walgreens", CategoryHealthcare},
	{"rite aid", CategoryHealthcare},
}

// itemKeywords is matched against item descriptions and the full text.
var itemKeywords = []keywordCategory{
	{"coffee", CategoryMeals},
	{"lunch", CategoryMeals},
	{"dinner", CategoryMeals},
	{"breakfast", CategoryMeals},
	{"meal", CategoryMeals},
	{"food", CategoryMeals},
	{"drink", CategoryMeals},
	{"beverage", CategoryMeals},
	{"sandwich", CategoryMeals},
	{"burger", CategoryMeals},
	{"pizza", CategoryMeals},
	{"salad", CategoryMeals},
	{"gas", CategoryTransportation},
	{"gasoline", CategoryTransportation},
	{"fuel", CategoryTransportation},
	{"parking", CategoryTransportation},
	{"toll", CategoryTransportation},
	{"taxi", CategoryTransportation},
	{"uber", CategoryTransportation},
	{"flight", CategoryTransportation},
	{"airline", CategoryTransportation},
	{"hotel", CategoryLodging},
	{"room", CategoryLodging},
	{"accommodation", CategoryLodging},
	{"pen", CategoryOfficeSupplies},
	{"paper", CategoryOfficeSupplies},
	{"notebook", CategoryOfficeSupplies},
	{"printer", CategoryOfficeSupplies},
	{"ink", CategoryOfficeSupplies},
	{"supplies", CategoryOfficeSupplies},
	{"computer", CategoryTechnology},
	{"laptop", CategoryTechnology},
	{"phone", CategoryTechnology},
	{"software", CategoryTechnology},
	{"electronics", CategoryTechnology},
	{"medicine", CategoryHealthcare},
	{"prescription", CategoryHealthcare},
	{"medical", CategoryHealthcare},
	{"pharmacy", CategoryHealthcare},
	{"conference", CategoryTraining},
	{"training", CategoryTraining},
	{"seminar", CategoryTraining},
	{"course", CategoryTraining},
	{"workshop", CategoryTraining},
}

// scoreboard accumulates category weights and remembers first-seen order.
type scoreboard struct {
	scores map[string]int
	order  []string
}

func (s *scoreboard) add(category string, weight int) {
	if _, ok := s.scores[category]; !ok {
		s.order = append(s.order, category)
	}
	s.scores[category] += weight
}

// top returns the highest scoring category; ties go to the one seen first.
func (s *scoreboard) top() (string, int) {
	best, bestScore := "", 0
	for _, category := range s.order {
		if score := s.scores[category]; best == "" || score > bestScore {
			best, bestScore = category, score
		}
	}
	return best, bestScore
}

// Classify suggests an expense category from the vendor, the line items and
// the full receipt text. Confidence is rounded to two decimals.
func Classify(vendor string, items []LineItem, fullText string) (string, float64) {
	board := &scoreboard{scores: make(map[string]int)}

	vendor = strings.ToLower(vendor)
	for _, kw := range vendorKeywords {
		if strings.Contains(vendor, kw.keyword) {
			board.add(kw.category, vendorWeight)
		}
	}

	for _, item := range items {
		description := strings.ToLower(item.Description)
		for _, kw := range itemKeywords {
			if strings.Contains(description, kw.keyword) {
				board.add(kw.category, itemWeight)
			}
		}
	}

	text := strings.ToLower(fullText)
	for _, kw := range itemKeywords {
		if strings.Contains(text, kw.keyword) {
			board.add(kw.category, textWeight)
		}
	}

	category, score := board.top()
	if category == "" {
		return CategoryOther, 0
	}
	confidence := math.Min(float64(score)/fullConfidence, 1)
	return category, math.Round(confidence*100) / 100
}
