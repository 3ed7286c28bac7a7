// Package fields implements the pluggable field-extraction strategies:
// rule-based invoice/receipt/statement extractors and the contracts the
// AI-backed variants satisfy. Which variant runs is fixed per job by the
// UseAI option; there is no escalation mid-run.
package fields

import (
	"context"

	"github.com/mskarstad/dokutolk/internal/entity"
)

// InvoiceExtractor turns interpreted text into typed invoice fields.
// A missing field is not an error; the job still completes.
type InvoiceExtractor interface {
	Name() string
	ExtractInvoice(ctx context.Context, text *entity.InterpretedText, filename string) (*entity.InvoiceFields, error)
}

// StatementExtractor turns interpreted text into a transaction list.
type StatementExtractor interface {
	Name() string
	ExtractStatement(ctx context.Context, text *entity.InterpretedText) ([]entity.StatementTransaction, error)
}

// Scorer optionally annotates extracted fields with [0,1] confidences.
// Absence is not an error; the pipeline proceeds without scores.
type Scorer interface {
	Score(result *entity.InterpretationResult, text *entity.InterpretedText) entity.FieldConfidence
}
