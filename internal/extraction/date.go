package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// datePatterns are tried in order and the first match of the first matching
// pattern is used. A pattern with a capture group yields the group. The generic
// numeric form must not start right after a digit so "2024-03-15" is not read
// as "24-03-15".
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}:\d{2}`),
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
	regexp.MustCompile(`(?:^|\D)(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})\b`),
	regexp.MustCompile(`\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2}`),
	regexp.MustCompile(`\w{3,9}\s+\d{1,2},?\s+\d{4}`),
	regexp.MustCompile(`\d{1,2}\s+\w{3,9}\s+\d{4}`),
	regexp.MustCompile(`\w{3,9}\s+\d{1,2}\s+\d{4}`),
	regexp.MustCompile(`\d{1,2}[-/]\w{3}[-/]\d{4}`),
}

var dayFirstDate = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}`)

// dateLayouts are the generic forms accepted when a match is not day/month/year
// with a slash. Month-first wins over day-first for ambiguous numeric dates.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"1-2-2006",
	"1.2.2006",
	"2-1-2006",
	"2.1.2006",
	"1/2/06",
	"1-2-06",
	"1.2.06",
	"2/1/06",
	"2-1-06",
	"2.1.06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"2/Jan/2006",
}

// ExtractDate returns the first date found in text as YYYY-MM-DD. A match that
// is not a valid calendar date is returned as matched; no match returns "".
func ExtractDate(text string) string {
	for _, pattern := range datePatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return normalizeDate(m[len(m)-1])
	}
	return ""
}

func normalizeDate(raw string) string {
	if dayFirstDate.MatchString(raw) {
		if d, ok := parseDayFirst(strings.Fields(raw)[0]); ok {
			return d.Format(isoDate)
		}
		return raw
	}

	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.Format(isoDate)
		}
	}
	return raw
}

// parseDayFirst reads DD/MM/YYYY and rejects dates that do not exist, such as 31/02.
func parseDayFirst(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month || d.Year() != year {
		return time.Time{}, false
	}
	return d, true
}
