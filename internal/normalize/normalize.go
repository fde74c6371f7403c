// Package normalize turns raw extracted strings into typed product fields.
// Every function is total: malformed input degrades to the field's
// documented default instead of failing.
package normalize

import (
	"strconv"
	"strings"

	"github.com/user/product-crawler/internal/domain"
)

// HardSpace is U+00A0 NO-BREAK SPACE.
const HardSpace = "\u00a0"

// StripHardSpaces removes every U+00A0 from each value.
func StripHardSpaces(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ReplaceAll(v, HardSpace, "")
	}
	return out
}

// Title returns the first non-empty value with invalid UTF-8 replaced by
// U+FFFD. An empty result means the record has no dedup key and must be
// dropped.
func Title(values []string) string {
	for _, v := range StripHardSpaces(values) {
		if strings.TrimSpace(v) != "" {
			return strings.ToValidUTF8(v, "\uFFFD")
		}
	}
	return ""
}

// Price joins price fragments, e.g. a currency node and an amount node.
func Price(values []string) string {
	return strings.Join(StripHardSpaces(values), "")
}

// CategoryList drops the site root and the product's own leaf from a
// breadcrumb trail.
func CategoryList(values []string) []string {
	values = StripHardSpaces(values)
	if len(values) <= 2 {
		return []string{}
	}
	return values[1 : len(values)-1]
}

// Rating reads the first captured star-bar width, a percentage of five
// stars. No capture or a zero width means the product is unrated.
func Rating(values []string) domain.Rating {
	if len(values) == 0 {
		return domain.Unrated
	}
	pct, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	if err != nil || pct <= 0 {
		return domain.Unrated
	}
	stars := min(pct/20, 5)
	// Round to the one decimal the value is reported with.
	stars, _ = strconv.ParseFloat(strconv.FormatFloat(stars, 'f', 1, 64), 64)
	return domain.Rating{Stars: stars, Rated: true}
}

// RatingsCount reads a counter such as "(1,234)". Absent or unreadable
// counters are zero.
func RatingsCount(values []string) int {
	if len(values) == 0 {
		return 0
	}
	s := strings.TrimSpace(strings.ReplaceAll(values[0], HardSpace, ""))
	s = strings.TrimSpace(strings.Trim(s, "()"))
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Features keeps every feature line in page order.
func Features(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	return StripHardSpaces(values)
}
