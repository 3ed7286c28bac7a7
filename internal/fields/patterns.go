package fields

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mskarstad/dokutolk/internal/normalize"
)

// amountPat matches locale-formatted monetary values: thousands groups
// separated by space, dot, or NBSP, with comma or dot decimals. The
// grouped form comes first so it wins over a bare digit-run prefix.
const amountPat = `\d{1,3}(?:[ .\x{00a0}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`

// strictAmountPat additionally requires a decimal part. Used where bare
// integer runs would pick up reference numbers instead of money.
const strictAmountPat = `\d{1,3}(?:[ .\x{00a0}]\d{3})+[.,]\d{2}|\d+[.,]\d{2}`

// the three date shapes the rule extractors recognise
const (
	isoDatePat     = `\d{4}-\d{2}-\d{2}`
	dottedDatePat  = `\d{2}\.\d{2}\.\d{4}`
	writtenDatePat = `\d{1,2}\.?\s+(?:januar|februar|mars|april|mai|juni|juli|august|september|oktober|november|desember|january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4}`
)

var (
	reISODate     = regexp.MustCompile(isoDatePat)
	reDottedDate  = regexp.MustCompile(dottedDatePat)
	reWrittenDate = regexp.MustCompile(`(?i)` + writtenDatePat)
	reAmount      = regexp.MustCompile(strictAmountPat)

	reCurrencyToken = regexp.MustCompile(`(?i)\b(NOK|EUR|USD|GBP|SEK|DKK|kroner|kr)\b|[€$£]`)
)

var monthNames = map[string]time.Month{
	"januar": time.January, "january": time.January,
	"februar": time.February, "february": time.February,
	"mars": time.March, "march": time.March,
	"april": time.April,
	"mai":  time.May, "may": time.May,
	"juni": time.June, "june": time.June,
	"juli": time.July, "july": time.July,
	"august":    time.August,
	"september": time.September,
	"oktober":   time.October, "october": time.October,
	"november": time.November,
	"desember": time.December, "december": time.December,
}

// parseWrittenDate parses "15. mars 2024" / "15 March 2024" shapes.
func parseWrittenDate(raw string) (time.Time, bool) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day := strings.TrimSuffix(parts[0], ".")
	month, ok := monthNames[parts[1]]
	if !ok {
		return time.Time{}, false
	}
	d, err1 := strconv.Atoi(day)
	y, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, month, d, 0, 0, 0, 0, time.UTC), true
}

// parseAnyDate tries the three recognised shapes against a matched fragment.
func parseAnyDate(raw string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", s); err == nil && normalize.WithinDateWindow(t, now) {
		return t, true
	}
	if t, err := time.Parse("02.01.2006", s); err == nil && normalize.WithinDateWindow(t, now) {
		return t, true
	}
	if t, ok := parseWrittenDate(s); ok && normalize.WithinDateWindow(t, now) {
		return t, true
	}
	return time.Time{}, false
}

// detectCurrency scans text for the first currency symbol or keyword.
// No token means the locale default.
func detectCurrency(text string) string {
	if m := reCurrencyToken.FindString(text); m != "" {
		return normalize.Currency(m)
	}
	return normalize.DefaultCurrency
}

