package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/mskarstad/dokutolk/constants"
)

// InterpretedText is the output of text extraction for one document.
// Not persisted independently; embedded in the result's provenance metadata.
type InterpretedText struct {
	RawText       string         `json:"raw_text"`
	Lines         []string       `json:"lines"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	OCRUsed       bool           `json:"ocr_used"`
	Language      string         `json:"language,omitempty"`
	ExtractorUsed string         `json:"extractor_used"`
}

// InvoiceFields holds the typed fields extracted from an invoice or receipt.
type InvoiceFields struct {
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description,omitempty"`
	Sender      string     `json:"sender,omitempty"`
}

// StatementTransaction is one row extracted from a bank statement.
type StatementTransaction struct {
	Date        time.Time  `json:"date"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	AccountNo   string     `json:"account_no,omitempty"`
	Approved    bool       `json:"approved"`
	LedgerTxID  *uuid.UUID `json:"ledger_tx_id,omitempty"`
}

// FieldConfidence maps a field name to a [0,1] confidence score.
type FieldConfidence map[string]float64

// InterpretationResult is the persisted outcome of one completed job.
// Exactly one of Invoice or Transactions is set. JobID is unique: at most
// one result per job; a document may accumulate one result per completed run.
// Corrections supersede a result with a new version, they never mutate it.
type InterpretationResult struct {
	ID                uuid.UUID              `json:"id"`
	DocumentID        uuid.UUID              `json:"document_id"`
	JobID             uuid.UUID              `json:"job_id"`
	DocumentType      constants.DocumentType `json:"document_type"`
	InterpretedAt     time.Time              `json:"interpreted_at"`
	ExtractionMethods []string               `json:"extraction_methods"`
	Provenance        map[string]any         `json:"provenance,omitempty"`
	Confidence        FieldConfidence        `json:"confidence,omitempty"`
	Invoice           *InvoiceFields         `json:"invoice,omitempty"`
	Transactions      []StatementTransaction `json:"transactions,omitempty"`
}
