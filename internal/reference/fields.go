package reference

import (
	"strconv"
	"strings"
	"time"
)

var months = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// ParseMonth maps a month name, abbreviation, or number (1-12) to its number.
// Unrecognized input yields 0.
func ParseMonth(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if m, ok := months[s]; ok {
		return m
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return n
	}
	return 0
}

// MonthAbbr returns "Jan".."Dec", or "" for 0.
func MonthAbbr(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return time.Month(m).String()[:3]
}

// MonthName returns "January".."December", or "" for 0.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return time.Month(m).String()
}

// keywordSeparators folds the accepted keyword separators into commas.
var keywordSeparators = strings.NewReplacer(
	";", ",",
	", and ", ", ",
	",and ", ", ",
	" and ", ", ",
)

// NormalizeKeywords lowercases a keyword list and joins it with ", ".
func NormalizeKeywords(s string) string {
	var out []string
	for _, k := range strings.Split(keywordSeparators.Replace(s), ",") {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return strings.Join(out, ", ")
}
