// Package fiscal converts source-native period labels into canonical
// fiscal-quarter labels and applies the requested quarter/year selection.
//
// The fiscal year begins in April: Apr-Jun is Q1 of the fiscal year ending
// the following March, and Jan-Mar is Q4 of the fiscal year matching the
// calendar year.
package fiscal

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	nativeRe    = regexp.MustCompile(`(?i)^([A-Za-z]{3,9})[^0-9]*(\d{2,4})$`)
	canonicalRe = regexp.MustCompile(`^Q([1-4])'(\d{2})$`)
)

// ToCanonicalPeriod converts a native period label such as "Sep '25" or
// "December 2024" into the canonical form "Q{1-4}'{YY}". Labels that are
// already canonical are returned as-is; unparseable labels pass through
// unchanged.
func ToCanonicalPeriod(native string) string {
	label := strings.TrimSpace(native)
	if canonicalRe.MatchString(label) {
		return label
	}

	m := nativeRe.FindStringSubmatch(label)
	if m == nil {
		return native
	}
	month, ok := parseMonth(m[1])
	if !ok {
		return native
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return native
	}
	if year < 100 {
		year += 2000
	}

	quarter, fiscalYear := quarterOf(month, year)
	return fmt.Sprintf("Q%d'%02d", quarter, fiscalYear%100)
}

// quarterOf returns the fiscal quarter and fiscal year for a calendar
// month/year. Apr-Jun opens Q1 of the next fiscal year; Jan-Mar closes Q4
// of the fiscal year matching the calendar year.
func quarterOf(month time.Month, year int) (int, int) {
	switch {
	case month >= time.April && month <= time.June:
		return 1, year + 1
	case month >= time.July && month <= time.September:
		return 2, year + 1
	case month >= time.October:
		return 3, year + 1
	default: // Jan-Mar
		return 4, year
	}
}

// ParseCanonical splits a canonical label into quarter number and two-digit
// fiscal year.
func ParseCanonical(canonical string) (quarter, year int, ok bool) {
	m := canonicalRe.FindStringSubmatch(strings.TrimSpace(canonical))
	if m == nil {
		return 0, 0, false
	}
	quarter, _ = strconv.Atoi(m[1])
	year, _ = strconv.Atoi(m[2])
	return quarter, year, true
}

// IsSelected reports whether a canonical period is inside the requested
// quarter-number and fiscal-year selection. Both criteria are exact
// membership tests; a period matching neither list is excluded, and a label
// that does not parse can never match.
func IsSelected(canonical string, quarters []int, fiscalYears []int) bool {
	q, y, ok := ParseCanonical(canonical)
	if !ok {
		return false
	}
	return containsQuarter(quarters, q) && containsYear(fiscalYears, y)
}

func containsQuarter(quarters []int, q int) bool {
	for _, want := range quarters {
		if want == q {
			return true
		}
	}
	return false
}

// containsYear accepts both two-digit ("26") and four-digit ("2026")
// requested fiscal years.
func containsYear(years []int, yy int) bool {
	for _, want := range years {
		if want%100 == yy {
			return true
		}
	}
	return false
}

// RequestedPeriods expands a quarter-number and fiscal-year selection into
// the canonical labels it covers, newest first.
func RequestedPeriods(quarters []int, fiscalYears []int) []string {
	ys := append([]int(nil), fiscalYears...)
	qs := append([]int(nil), quarters...)
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))
	sort.Sort(sort.Reverse(sort.IntSlice(qs)))

	var periods []string
	seen := map[string]bool{}
	for _, y := range ys {
		for _, q := range qs {
			if q < 1 || q > 4 {
				continue
			}
			label := fmt.Sprintf("Q%d'%02d", q, y%100)
			if !seen[label] {
				seen[label] = true
				periods = append(periods, label)
			}
		}
	}
	return periods
}

func parseMonth(token string) (time.Month, bool) {
	prefix := strings.ToLower(token)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	for m := time.January; m <= time.December; m++ {
		if strings.ToLower(m.String()[:3]) == prefix {
			return m, true
		}
	}
	return 0, false
}
