package fields

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/normalize"
)

// ReceiptAmountCeiling bounds what counts as a plausible fee on a small
// receipt. Parking and taxi slips list card numbers, reference numbers and
// terminal ids that dwarf the actual charge.
const ReceiptAmountCeiling = 2000.0

var (
	// amounts embedded in the filename, e.g. "parkering_150.pdf" or "taxi-249,50.jpg"
	reFilenameAmount = regexp.MustCompile(`(\d{1,4}(?:[.,]\d{2})?)`)
	reReceiptLabel   = regexp.MustCompile(`(?im)(?:egenandel|totalt?|total|sum|å betale)[^\d\n-]{0,24}(` + amountPat + `)`)
)

// SmallReceipt specializes the invoice rules for small receipts. Amount
// resolution is biased the opposite way: small receipts carry one small fee
// among many larger reference numbers, so the SMALLEST plausible amount under
// a fixed ceiling wins. Everything else follows the invoice rules.
type SmallReceipt struct {
	*HeuristicInvoice
	logger *slog.Logger
}

func NewSmallReceipt(logger *slog.Logger) *SmallReceipt {
	if logger == nil {
		logger = slog.Default()
	}
	return &SmallReceipt{HeuristicInvoice: NewHeuristicInvoice(logger), logger: logger}
}

func (r *SmallReceipt) Name() string { return "SmallReceiptExtractor" }

func (r *SmallReceipt) ExtractInvoice(ctx context.Context, text *entity.InterpretedText, filename string) (*entity.InvoiceFields, error) {
	out, err := r.HeuristicInvoice.ExtractInvoice(ctx, text, filename)
	if err != nil {
		return nil, err
	}

	if amount, ok := r.receiptAmount(text.RawText, filename); ok {
		out.Amount = amount
	} else {
		out.Amount = 0
	}
	return out, nil
}

// receiptAmount tries, in order: an amount embedded in the filename, an
// egenandel/total label, then the smallest plausible amount in the text.
func (r *SmallReceipt) receiptAmount(text, filename string) (float64, bool) {
	if filename != "" {
		base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		for _, m := range reFilenameAmount.FindAllStringSubmatch(base, -1) {
			if v, err := normalize.Amount(m[1]); err == nil && plausibleFee(v) {
				r.logger.Debug("receipt amount from filename", "file", base, "amount", v)
				return v, true
			}
		}
	}

	for _, m := range reReceiptLabel.FindAllStringSubmatch(text, -1) {
		if v, err := normalize.Amount(m[1]); err == nil && plausibleFee(v) {
			return v, true
		}
	}

	// smallest plausible amount under the ceiling
	best := 0.0
	found := false
	for _, m := range reAmount.FindAllString(text, -1) {
		v, err := normalize.Amount(m)
		if err != nil || !plausibleFee(v) {
			continue
		}
		if !found || v < best {
			best = v
			found = true
		}
	}
	return best, found
}

func plausibleFee(v float64) bool {
	return v > 0 && v <= ReceiptAmountCeiling
}
