// Package classify assigns a document type from a caller hint or from text
// signals. An explicit hint always wins over inference.
package classify

import (
	"log/slog"
	"strings"

	"github.com/mskarstad/dokutolk/constants"
)

// keyword groups scored against the lowercased text. Norwegian and English
// terms carry the same weight.
var (
	invoiceKeywords = []string{
		"faktura", "invoice", "fakturanummer", "invoice number", "kid",
		"forfallsdato", "due date", "å betale", "amount due", "org.nr",
	}
	statementKeywords = []string{
		"kontoutskrift", "account statement", "saldo", "balance forward",
		"inngående saldo", "utgående saldo", "kontonummer", "transaksjoner",
		"withdrawal", "deposit",
	}
	receiptKeywords = []string{
		"kvittering", "receipt", "mva", "vat", "change", "vekslepenger",
		"egenandel", "kasse", "terminal",
	}
)

// Classifier scores keyword groups over interpreted text.
type Classifier struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{logger: logger}
}

// Classify resolves the document type. The hinted type, when valid, is
// returned untouched: caller intent overrides inference. With no hint and no
// text signal the fallback is INVOICE.
func (c *Classifier) Classify(text string, hinted constants.DocumentType) constants.DocumentType {
	if hinted != "" && hinted != constants.DocumentTypeUnknown {
		return hinted
	}

	lower := strings.ToLower(text)
	scores := map[constants.DocumentType]int{
		constants.DocumentTypeInvoice:   score(lower, invoiceKeywords),
		constants.DocumentTypeStatement: score(lower, statementKeywords),
		constants.DocumentTypeReceipt:   score(lower, receiptKeywords),
	}

	best := constants.DocumentTypeUnknown
	bestScore := 0
	// fixed order so ties resolve deterministically
	for _, dt := range []constants.DocumentType{constants.DocumentTypeInvoice, constants.DocumentTypeStatement, constants.DocumentTypeReceipt} {
		if scores[dt] > bestScore {
			best = dt
			bestScore = scores[dt]
		}
	}

	if best == constants.DocumentTypeUnknown {
		c.logger.Warn("no type signal in text, defaulting to INVOICE")
		return constants.DocumentTypeInvoice
	}

	c.logger.Debug("classified document",
		"type", best,
		"invoice_score", scores[constants.DocumentTypeInvoice],
		"statement_score", scores[constants.DocumentTypeStatement],
		"receipt_score", scores[constants.DocumentTypeReceipt],
	)
	return best
}

func score(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		n += strings.Count(lower, kw)
	}
	return n
}
