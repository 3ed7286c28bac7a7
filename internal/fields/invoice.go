package fields

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/normalize"
)

// labeled amount contexts tried in order; the first label with any match wins.
// Among a label's matches the LARGEST value is kept: totals are usually the
// largest number on an invoice.
var invoiceAmountLabels = []*regexp.Regexp{
	regexp.MustCompile(`(?im)(?:totalt?|total|sum|å betale|to pay|amount due)[^\d\n-]{0,24}(` + amountPat + `)`),
	regexp.MustCompile(`(?im)(?:beløp|amount)[^\d\n-]{0,24}(` + amountPat + `)`),
	regexp.MustCompile(`(?im)(?:balance|saldo)[^\d\n-]{0,24}(` + amountPat + `)`),
}

var (
	reInvoiceDateLabel = regexp.MustCompile(`(?im)(?:fakturadato|forfallsdato|invoice date|due date|dato|date)[^\d\n]{0,16}(` + isoDatePat + `|` + dottedDatePat + `|` + writtenDatePat + `)`)
	reSenderLabel      = regexp.MustCompile(`(?im)^(?:fra|from|utstedt av|issued by)[:\s]+(.{3,80})$`)
	reDescLabel        = regexp.MustCompile(`(?im)^(?:beskrivelse|description|gjelder|tjenester?|services?)[:\s]+(.{3,120})$`)
	reInvoiceNumber    = regexp.MustCompile(`(?i)(?:fakturan(?:ummer|r)\.?|invoice\s*(?:no\.?|number|#)?)[:\s#]*([A-Z0-9][A-Z0-9/-]{2,})`)

	// keywords that disqualify a line as a sender name
	senderStopWords = []string{"faktura", "invoice", "bill", "receipt", "kvittering", "kontoutskrift", "statement"}
)

// FallbackDescription is stored when neither a description line nor an
// invoice number is found.
const FallbackDescription = "Invoice"

// HeuristicInvoice is the rule-based invoice extractor.
type HeuristicInvoice struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewHeuristicInvoice(logger *slog.Logger) *HeuristicInvoice {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeuristicInvoice{logger: logger, now: time.Now}
}

func (h *HeuristicInvoice) Name() string { return "HeuristicInvoiceExtractor" }

func (h *HeuristicInvoice) ExtractInvoice(_ context.Context, text *entity.InterpretedText, _ string) (*entity.InvoiceFields, error) {
	out := &entity.InvoiceFields{
		Currency: detectCurrency(text.RawText),
	}

	if amount, ok := h.extractAmount(text.RawText); ok {
		out.Amount = amount
	}
	if date, ok := h.extractDate(text.RawText); ok {
		out.Date = &date
	}
	out.Sender = h.extractSender(text.Lines)
	out.Description = h.extractDescription(text.RawText)

	h.logger.Debug("heuristic invoice fields",
		"amount", out.Amount, "currency", out.Currency,
		"has_date", out.Date != nil, "sender", out.Sender,
	)
	return out, nil
}

func (h *HeuristicInvoice) extractAmount(text string) (float64, bool) {
	for _, re := range invoiceAmountLabels {
		if amount, ok := largestAmount(re.FindAllStringSubmatch(text, -1)); ok {
			return amount, true
		}
	}
	// no labeled amount anywhere; fall back to the largest plain number
	var generic [][]string
	for _, m := range reAmount.FindAllString(text, -1) {
		generic = append(generic, []string{m, m})
	}
	return largestAmount(generic)
}

func largestAmount(matches [][]string) (float64, bool) {
	best := 0.0
	found := false
	for _, m := range matches {
		v, err := normalize.Amount(m[1])
		if err != nil || v <= 0 {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

func (h *HeuristicInvoice) extractDate(text string) (time.Time, bool) {
	now := h.now()
	for _, m := range reInvoiceDateLabel.FindAllStringSubmatch(text, -1) {
		if t, ok := parseAnyDate(m[1], now); ok {
			return t, true
		}
	}
	// generic fallback when no label is present
	for _, re := range []*regexp.Regexp{reISODate, reDottedDate, reWrittenDate} {
		for _, m := range re.FindAllString(text, -1) {
			if t, ok := parseAnyDate(m, now); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (h *HeuristicInvoice) extractSender(lines []string) string {
	for _, ln := range lines {
		if m := reSenderLabel.FindStringSubmatch(ln); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	// first plausible capitalized line near the top that isn't a letterhead keyword
	limit := len(lines)
	if limit > 8 {
		limit = 8
	}
	for _, ln := range lines[:limit] {
		if plausibleSender(ln) {
			return ln
		}
	}
	return ""
}

func plausibleSender(line string) bool {
	if len(line) < 3 || len(line) > 60 {
		return false
	}
	lower := strings.ToLower(line)
	for _, stop := range senderStopWords {
		if strings.Contains(lower, stop) {
			return false
		}
	}
	runes := []rune(line)
	if !isUpperLetter(runes[0]) {
		return false
	}
	letters := 0
	for _, r := range runes {
		if isLetter(r) {
			letters++
		}
	}
	return letters*2 >= len(runes)
}

func (h *HeuristicInvoice) extractDescription(text string) string {
	if m := reDescLabel.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := reInvoiceNumber.FindStringSubmatch(text); m != nil {
		return "Invoice " + m[1]
	}
	return FallbackDescription
}

func isUpperLetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || r == 'Æ' || r == 'Ø' || r == 'Å'
}

func isLetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
		strings.ContainsRune("æøåÆØÅäöüÄÖÜß", r)
}
