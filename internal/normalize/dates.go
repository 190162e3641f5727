package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

// relativeDays is checked in order; longer phrases come first so that
// "dopodomani" is not read as "domani" under substring matching.
var relativeDays = []struct {
	phrase string
	offset int
}{
	{"day before yesterday", -2},
	{"day after tomorrow", 2},
	{"l'altro ieri", -2},
	{"ieri l'altro", -2},
	{"altro ieri", -2},
	{"avantieri", -2},
	{"dopodomani", 2},
	{"yesterday", -1},
	{"tomorrow", 1},
	{"today", 0},
	{"ieri", -1},
	{"domani", 1},
	{"stamattina", 0},
	{"stamani", 0},
	{"stasera", 0},
	{"oggi", 0},
}

var monthNames = map[string]time.Month{
	"gennaio": time.January, "gen": time.January, "january": time.January, "jan": time.January,
	"febbraio": time.February, "feb": time.February, "february": time.February,
	"marzo": time.March, "mar": time.March, "march": time.March,
	"aprile": time.April, "apr": time.April, "april": time.April,
	"maggio": time.May, "mag": time.May, "may": time.May,
	"giugno": time.June, "giu": time.June, "june": time.June, "jun": time.June,
	"luglio": time.July, "lug": time.July, "july": time.July, "jul": time.July,
	"agosto": time.August, "ago": time.August, "august": time.August, "aug": time.August,
	"settembre": time.September, "set": time.September, "september": time.September, "sep": time.September, "sept": time.September,
	"ottobre": time.October, "ott": time.October, "october": time.October, "oct": time.October,
	"novembre": time.November, "nov": time.November, "november": time.November,
	"dicembre": time.December, "dic": time.December, "december": time.December, "dec": time.December,
}

var (
	strictDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	// "7 luglio", "7 of july", "il 12 di giugno 2024", "1st may".
	dayMonthRegex = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+|di\s+|del\s+|de\s+)?([a-z]+)\.?(?:\s+(\d{4}))?\b`)
	// "july 7", "july 7th, 2024".
	monthDayRegex = regexp.MustCompile(`\b([a-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	// "12/06", "12-06-2024", "12.06.24".
	numericDateRegex = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})(?:[/.\-](\d{4}|\d{2}))?\b`)
)

// IsStrictDate reports whether s is a real calendar date in YYYY-MM-DD form.
func IsStrictDate(s string) bool {
	if !strictDateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}

// DateResolver turns natural date expressions into strict dates.
type DateResolver struct {
	matcher Matcher
}

// NewDateResolver returns a resolver using the given keyword matcher.
func NewDateResolver(matcher Matcher) DateResolver {
	return DateResolver{matcher: matcher}
}

// ResolveDate resolves token against anchor with word-boundary keyword matching.
func ResolveDate(token string, anchor time.Time) string {
	return NewDateResolver(NewMatcher(KeywordMatchWord)).Resolve(token, anchor)
}

// Resolve returns the strict date that token denotes relative to anchor, or
// token unchanged when it cannot be resolved. It never fails.
func (r DateResolver) Resolve(token string, anchor time.Time) string {
	text := NewText(token)
	folded := text.String()
	if folded == "" {
		return token
	}

	for _, rel := range relativeDays {
		if r.matcher.Contains(text, rel.phrase) {
			return anchor.AddDate(0, 0, rel.offset).Format(models.DateLayout)
		}
	}

	if date, ok := resolveMonthName(folded, anchor.Year()); ok {
		return date
	}

	if IsStrictDate(folded) {
		return folded
	}
	// Timestamps such as "2024-06-12T10:00:00Z" keep their date part.
	if len(folded) > 10 && (folded[10] == 't' || folded[10] == ' ') && IsStrictDate(folded[:10]) {
		return folded[:10]
	}

	if date, ok := resolveNumeric(folded, anchor.Year()); ok {
		return date
	}

	return token
}

func resolveMonthName(s string, anchorYear int) (string, bool) {
	for _, m := range dayMonthRegex.FindAllStringSubmatch(s, -1) {
		if date, ok := buildDate(m[1], monthNames[m[2]], m[3], anchorYear); ok {
			return date, true
		}
	}
	for _, m := range monthDayRegex.FindAllStringSubmatch(s, -1) {
		if date, ok := buildDate(m[2], monthNames[m[1]], m[3], anchorYear); ok {
			return date, true
		}
	}
	return "", false
}

func resolveNumeric(s string, anchorYear int) (string, bool) {
	m := numericDateRegex.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	year := m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	return buildDate(m[1], time.Month(month), year, anchorYear)
}

// buildDate validates the parts and rejects overflow such as 31 February.
func buildDate(dayStr string, month time.Month, yearStr string, anchorYear int) (string, bool) {
	if month == 0 {
		return "", false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	year := anchorYear
	if yearStr = strings.TrimSpace(yearStr); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			return "", false
		}
		year = y
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return "", false
	}
	return t.Format(models.DateLayout), true
}
