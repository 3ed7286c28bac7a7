// Package normalize turns locale-formatted amount, date, and currency strings
// into typed values. Norwegian formats are the primary locale; common European
// and US shapes are accepted as fallbacks.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mskarstad/dokutolk/internal/common"
)

// DefaultCurrency is applied when no currency token is recognised.
// Explicit policy for this domain rather than an omitted field.
const DefaultCurrency = "NOK"

// DateWindowPast / DateWindowFuture bound plausible document dates.
const (
	DateWindowPast   = 20 // years back
	DateWindowFuture = 1  // years forward
)

var currencyTokens = []struct {
	token string
	code  string
}{
	{"€", "EUR"},
	{"EUR", "EUR"},
	{"$", "USD"},
	{"USD", "USD"},
	{"£", "GBP"},
	{"GBP", "GBP"},
	{"NOK", "NOK"},
	{"KRONER", "NOK"},
	{"KR.", "NOK"},
	{"KR", "NOK"},
	{"SEK", "SEK"},
	{"DKK", "DKK"},
}

var reNonAmount = regexp.MustCompile(`[^\d,.\-()]`)

// Amount parses a locale-formatted monetary string into a signed float64.
// Currency tokens and all whitespace are stripped first. When both ',' and '.'
// appear, whichever occurs last is the decimal separator and the other is a
// thousands separator. A single ',' is always decimal. A leading '-' or
// enclosing parentheses denote a negative value.
func Amount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, common.NewAppError("PARSE_ERROR", "empty amount", common.ErrInvalidInput)
	}
	upper := strings.ToUpper(s)
	for _, ct := range currencyTokens {
		upper = strings.ReplaceAll(upper, ct.token, "")
	}
	// strip whitespace including NBSP thousands separators
	upper = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, upper)
	upper = reNonAmount.ReplaceAllString(upper, "")

	negative := false
	if strings.HasPrefix(upper, "(") && strings.HasSuffix(upper, ")") {
		negative = true
		upper = strings.TrimSuffix(strings.TrimPrefix(upper, "("), ")")
	}
	upper = strings.ReplaceAll(upper, "(", "")
	upper = strings.ReplaceAll(upper, ")", "")
	if strings.HasPrefix(upper, "-") {
		negative = true
		upper = strings.TrimPrefix(upper, "-")
	}
	upper = strings.ReplaceAll(upper, "-", "")
	if upper == "" {
		return 0, common.NewAppError("PARSE_ERROR", fmt.Sprintf("no digits in amount %q", raw), common.ErrInvalidInput)
	}

	lastComma := strings.LastIndex(upper, ",")
	lastDot := strings.LastIndex(upper, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// whichever separator occurs last is the decimal one
		if lastComma > lastDot {
			upper = strings.ReplaceAll(upper, ".", "")
			upper = strings.Replace(upper, ",", ".", 1)
		} else {
			upper = strings.ReplaceAll(upper, ",", "")
		}
	case lastComma >= 0:
		// a single comma is always decimal
		upper = strings.ReplaceAll(upper, ",", ".")
	}

	v, err := strconv.ParseFloat(upper, 64)
	if err != nil {
		return 0, common.NewAppError("PARSE_ERROR", fmt.Sprintf("unparseable amount %q", raw), err)
	}
	if negative {
		v = -v
	}
	return v, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"02.01.06",
	"02/01/06",
	"2 January 2006",
	"2. January 2006",
}

// Date tries an ordered list of layouts and accepts the first parse that lands
// within the plausible document window. An unparseable date is not fatal to a
// job; callers treat the field as absent.
func Date(raw string) (time.Time, error) {
	return dateAt(raw, time.Now())
}

func dateAt(raw string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, common.NewAppError("PARSE_ERROR", "empty date", common.ErrInvalidInput)
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if WithinDateWindow(t, now) {
			return t, nil
		}
	}
	return time.Time{}, common.NewAppError("PARSE_ERROR", fmt.Sprintf("no plausible date in %q", raw), common.ErrInvalidInput)
}

// WithinDateWindow reports whether t falls inside [-20y, +1y] of now.
func WithinDateWindow(t, now time.Time) bool {
	return t.After(now.AddDate(-DateWindowPast, 0, 0)) && t.Before(now.AddDate(DateWindowFuture, 0, 0))
}

// Currency maps a symbol or keyword to an ISO 4217 code. Unmatched input
// falls back to DefaultCurrency instead of failing.
func Currency(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return DefaultCurrency
	}
	for _, ct := range currencyTokens {
		if strings.Contains(s, ct.token) {
			return ct.code
		}
	}
	return DefaultCurrency
}
