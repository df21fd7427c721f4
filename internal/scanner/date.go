package scanner

import (
	"strconv"
	"time"

	"github.com/karupanerura/series-formula/internal/types"
)

// centuryWindow is how far into the future a two-digit year may land before
// it is attributed to the previous century.
const centuryWindow = 20

var monthAbbreviations = [...]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// lookupMonth accepts a three letter abbreviation, or a two letter prefix
// when it names exactly one month.
func lookupMonth(s string, allowPrefix bool) (time.Month, bool) {
	switch {
	case len(s) == 3:
		for i, abbr := range monthAbbreviations {
			if equalFold(s, abbr) {
				return time.Month(i + 1), true
			}
		}
	case len(s) == 2 && allowPrefix:
		found := time.Month(0)
		for i, abbr := range monthAbbreviations {
			if equalFold(s, abbr[:2]) {
				if found != 0 {
					return 0, false // ambiguous: ma, ju
				}
				found = time.Month(i + 1)
			}
		}
		return found, found != 0
	}
	return 0, false
}

// resolveYear expands two-digit years with the rolling-century rule.
func resolveYear(digits string, month time.Month, now time.Time) (int, bool) {
	if len(digits) != 2 && len(digits) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if len(digits) == 4 {
		return year, true
	}

	year += 2000
	limit := now.AddDate(centuryWindow, 0, 0)
	if time.Date(year, month, 1, 0, 0, 0, 0, now.Location()).After(limit) {
		year -= 100
	}
	return year, true
}

// splitMonthYear splits "feb20" into "feb" and "20".
func splitMonthYear(s string) (string, string) {
	i := 0
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return len(s) != 0
}

// resolveDate handles the D@MONyy form. dayText are the leading digits and
// rest is everything after '@'.
func (s *Scanner) resolveDate(offset int, dayText, rest string) (types.Date, *types.Error) {
	monthText, yearText := splitMonthYear(rest)
	month, ok := lookupMonth(monthText, true)
	if !ok {
		return types.Date{}, types.NewError(types.LexicalErrorTag, offset, "invalid month %q in date literal", monthText)
	}
	if !allDigits(yearText) {
		return types.Date{}, types.NewError(types.LexicalErrorTag, offset, "invalid year %q in date literal", yearText)
	}
	year, ok := resolveYear(yearText, month, s.now())
	if !ok {
		return types.Date{}, types.NewError(types.LexicalErrorTag, offset, "invalid year %q in date literal", yearText)
	}

	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > types.DaysIn(year, month) {
		return types.Date{}, types.NewError(types.LexicalErrorTag, offset, "invalid day %s for %s %d", dayText, month, year)
	}

	// the day is an offset from the first of the month
	first := types.Date{Year: year, Month: month, Day: 1}
	return first.AddDays(day - 1), nil
}

// resolveBareDate recognises MONyy and MONyyyy. Anything else is not a date.
func (s *Scanner) resolveBareDate(word string) (types.Date, bool) {
	if len(word) != 5 && len(word) != 7 {
		return types.Date{}, false
	}
	month, ok := lookupMonth(word[:3], false)
	if !ok || !allDigits(word[3:]) {
		return types.Date{}, false
	}
	year, ok := resolveYear(word[3:], month, s.now())
	if !ok {
		return types.Date{}, false
	}
	return types.Date{Year: year, Month: month, Day: 1}, true
}
