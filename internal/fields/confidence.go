package fields

import (
	"strconv"
	"strings"

	"github.com/mskarstad/dokutolk/internal/entity"
)

// HeuristicScorer derives per-field confidences from how the extracted value
// relates to the interpreted text. Scores are advisory; nothing downstream
// fails on a low score.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer { return &HeuristicScorer{} }

func (s *HeuristicScorer) Score(result *entity.InterpretationResult, text *entity.InterpretedText) entity.FieldConfidence {
	conf := entity.FieldConfidence{}
	base := 0.5
	if text.OCRUsed {
		// OCR noise lowers trust across the board
		base = 0.35
	}
	if text.ExtractorUsed == "degraded" {
		base = 0.2
	}

	if result.Invoice != nil {
		inv := result.Invoice
		conf["amount"] = clamp(base + presenceBoost(inv.Amount != 0) + textBoost(text.RawText, formatAmount(inv.Amount)))
		conf["currency"] = clamp(base + presenceBoost(inv.Currency != ""))
		conf["date"] = clamp(base + presenceBoost(inv.Date != nil))
		conf["sender"] = clamp(base + presenceBoost(inv.Sender != "") + textBoost(text.RawText, inv.Sender))
		conf["description"] = clamp(base + presenceBoost(inv.Description != "" && inv.Description != FallbackDescription))
	}
	if len(result.Transactions) > 0 {
		// more surviving rows means the tier fit the layout
		rowScore := base + float64(len(result.Transactions))*0.05
		conf["transactions"] = clamp(rowScore)
	}
	return conf
}

func presenceBoost(present bool) float64 {
	if present {
		return 0.25
	}
	return -0.2
}

// textBoost rewards values that literally occur in the source text.
func textBoost(text, needle string) float64 {
	if needle == "" || len(needle) < 3 {
		return 0
	}
	if strings.Contains(text, needle) {
		return 0.15
	}
	return 0
}

func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	return strings.Replace(s, ".", ",", 1)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
