package fields

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/normalize"
)

// MinTierMatches is how many lines a pattern tier must hit before its result
// set is accepted without trying the less specific tiers.
const MinTierMatches = 3

var (
	// tier 1: fixed-column bank export. One transaction-type word, a buy date
	// (dd.MM), description, a four-digit bank date (ddMM), the amount column,
	// the bank date repeated, and an archive reference.
	reTierFixed = regexp.MustCompile(
		`^(\p{L}[\p{L}./-]*(?:\s\p{L}[\p{L}./-]*)?)\s+` + // transaction type
			`(\d{2}\.\d{2})\s+` + // buy date dd.MM
			`(.+?)\s+` + // description
			`(\d{4})\s+` + // bank date ddMM
			`(\d{1,3}(?:[ .\x{00a0}]\d{3})*,\d{2})\s+` + // amount
			`\d{4}\s+` + // bank date repeated
			`(\d{6,})$`) // archive reference

	// tier 2: generic "date amount description" and "date description amount"
	statementDatePat  = `\d{2}[./]\d{2}[./]\d{4}|\d{4}-\d{2}-\d{2}`
	reTierDateAmtDesc = regexp.MustCompile(`^(` + statementDatePat + `)\s+(-?(?:` + strictAmountPat + `))\s+(.+)$`)
	reTierDateDescAmt = regexp.MustCompile(`^(` + statementDatePat + `)\s+(.+?)\s+(-?(?:` + strictAmountPat + `))$`)

	// tier 3: dual debit/credit columns; exactly one of the two is non-zero.
	reTierDualColumn = regexp.MustCompile(`^(` + statementDatePat + `)\s+(.+?)\s+(` + strictAmountPat + `)\s+(` + strictAmountPat + `)$`)

	// Norwegian account number: 1234.56.78901
	reAccountNo = regexp.MustCompile(`\b\d{4}[. ]\d{2}[. ]\d{5}\b`)

	// transaction-type words that mark a deposit in the fixed-column format
	depositTypes = map[string]struct{}{
		"lønn": {}, "giro": {}, "innbetaling": {}, "renter": {}, "overførsel": {},
	}

	reSpaces = regexp.MustCompile(`\s+`)
)

// HeuristicStatement is the rule-based statement-transaction extractor. Three
// pattern tiers run in order of specificity; the first tier with at least
// MinTierMatches results wins, otherwise the best of the three is kept.
type HeuristicStatement struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewHeuristicStatement(logger *slog.Logger) *HeuristicStatement {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeuristicStatement{logger: logger, now: time.Now}
}

func (h *HeuristicStatement) Name() string { return "HeuristicStatementExtractor" }

func (h *HeuristicStatement) ExtractStatement(_ context.Context, text *entity.InterpretedText) ([]entity.StatementTransaction, error) {
	currency := detectCurrency(text.RawText)
	accountNo := ""
	if m := reAccountNo.FindString(text.RawText); m != "" {
		accountNo = m
	}

	tiers := [][]entity.StatementTransaction{
		h.parseFixedColumn(text.Lines, currency),
		h.parseGeneric(text.Lines, currency),
		h.parseDualColumn(text.Lines, currency),
	}

	var chosen []entity.StatementTransaction
	for _, candidates := range tiers {
		if len(candidates) >= MinTierMatches {
			chosen = candidates
			break
		}
		if len(candidates) > len(chosen) {
			chosen = candidates
		}
	}

	for i := range chosen {
		chosen[i].AccountNo = accountNo
	}

	filtered := FilterTransactions(chosen, h.now())
	h.logger.Debug("statement extraction",
		"lines", len(text.Lines), "candidates", len(chosen), "kept", len(filtered))
	return filtered, nil
}

// parseFixedColumn handles the fixed-column locale export (tier 1). Amounts
// are withdrawals unless the transaction-type word marks a deposit. The date
// comes from the four-digit ddMM bank-date column.
func (h *HeuristicStatement) parseFixedColumn(lines []string, currency string) []entity.StatementTransaction {
	now := h.now()
	var out []entity.StatementTransaction
	for _, ln := range lines {
		m := reTierFixed.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		txType, desc, bankDate, rawAmount := m[1], m[3], m[4], m[5]

		date, ok := parseBankDate(bankDate, now)
		if !ok {
			continue
		}
		amount, err := normalize.Amount(rawAmount)
		if err != nil || amount == 0 {
			continue
		}
		if _, deposit := depositTypes[strings.ToLower(txType)]; !deposit {
			amount = -amount
		}
		out = append(out, entity.StatementTransaction{
			Date:        date,
			Amount:      amount,
			Currency:    currency,
			Description: strings.TrimSpace(desc),
		})
	}
	return out
}

// parseGeneric handles free-form "date amount description" and
// "date description amount" lines (tier 2).
func (h *HeuristicStatement) parseGeneric(lines []string, currency string) []entity.StatementTransaction {
	now := h.now()
	var out []entity.StatementTransaction
	for _, ln := range lines {
		var rawDate, rawAmount, desc string
		if m := reTierDateAmtDesc.FindStringSubmatch(ln); m != nil {
			rawDate, rawAmount, desc = m[1], m[2], m[3]
		} else if m := reTierDateDescAmt.FindStringSubmatch(ln); m != nil {
			rawDate, desc, rawAmount = m[1], m[2], m[3]
		} else {
			continue
		}

		date, ok := parseStatementDate(rawDate, now)
		if !ok {
			continue
		}
		amount, err := normalize.Amount(rawAmount)
		if err != nil || amount == 0 {
			// a zero here usually means the line belongs to another layout
			continue
		}
		out = append(out, entity.StatementTransaction{
			Date:        date,
			Amount:      amount,
			Currency:    currency,
			Description: strings.TrimSpace(desc),
		})
	}
	return out
}

// parseDualColumn handles debit/credit column layouts (tier 3). The debit
// column is negated, deposits in the credit column stay positive.
func (h *HeuristicStatement) parseDualColumn(lines []string, currency string) []entity.StatementTransaction {
	now := h.now()
	var out []entity.StatementTransaction
	for _, ln := range lines {
		m := reTierDualColumn.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		date, ok := parseStatementDate(m[1], now)
		if !ok {
			continue
		}
		debit, err1 := normalize.Amount(m[3])
		credit, err2 := normalize.Amount(m[4])
		if err1 != nil || err2 != nil {
			continue
		}
		amount := credit
		if debit != 0 {
			amount = -debit
		}
		if amount == 0 {
			continue
		}
		out = append(out, entity.StatementTransaction{
			Date:        date,
			Amount:      amount,
			Currency:    currency,
			Description: strings.TrimSpace(m[2]),
		})
	}
	return out
}

// FilterTransactions drops candidates with no date, a zero amount, a
// too-short description, or a date outside the plausible window, then
// removes exact duplicates keeping the first occurrence.
func FilterTransactions(candidates []entity.StatementTransaction, now time.Time) []entity.StatementTransaction {
	seen := map[string]struct{}{}
	var out []entity.StatementTransaction
	for _, tx := range candidates {
		if tx.Date.IsZero() || tx.Amount == 0 {
			continue
		}
		if len(strings.TrimSpace(tx.Description)) < 3 {
			continue
		}
		if !normalize.WithinDateWindow(tx.Date, now) {
			continue
		}
		key := dedupKey(tx)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tx)
	}
	return out
}

func dedupKey(tx entity.StatementTransaction) string {
	desc := strings.ToLower(reSpaces.ReplaceAllString(strings.TrimSpace(tx.Description), " "))
	return tx.Date.Format("2006-01-02") + "|" + strconv.FormatFloat(tx.Amount, 'f', 2, 64) + "|" + desc
}

// parseBankDate resolves a four-digit ddMM bank date against now, picking the
// most recent occurrence that is not in the future.
func parseBankDate(ddmm string, now time.Time) (time.Time, bool) {
	if len(ddmm) != 4 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(ddmm[:2])
	month, err2 := strconv.Atoi(ddmm[2:])
	if err1 != nil || err2 != nil || day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	t := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.After(now) {
		t = t.AddDate(-1, 0, 0)
	}
	return t, true
}

func parseStatementDate(raw string, now time.Time) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "02.01.2006", "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil && normalize.WithinDateWindow(t, now) {
			return t, true
		}
	}
	return time.Time{}, false
}
