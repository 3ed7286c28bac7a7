// Package llm contains the AI-backed field extractors and the chat client
// contract they run against. The extractors degrade gracefully: a model that
// answers garbage yields an empty field set, while rejected credentials
// surface as an authentication error so the caller can fail the job.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mskarstad/dokutolk/constants"
	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/normalize"
)

// DefaultPromptChars bounds the document text sent per request.
const DefaultPromptChars = 6000

// AIExtractor satisfies both fields.InvoiceExtractor and
// fields.StatementExtractor by delegating to a ChatClient.
type AIExtractor struct {
	client      ChatClient
	promptChars int
	logger      *slog.Logger
}

func NewAIExtractor(client ChatClient, promptChars int, logger *slog.Logger) *AIExtractor {
	if promptChars <= 0 {
		promptChars = DefaultPromptChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AIExtractor{client: client, promptChars: promptChars, logger: logger}
}

func (e *AIExtractor) Name() string { return "AIFieldExtractor" }

// ExtractInvoice asks the model for typed invoice fields. Authentication
// failures propagate; every other failure is logged and reported as an empty
// field set so the job can still complete.
func (e *AIExtractor) ExtractInvoice(ctx context.Context, text *entity.InterpretedText, filename string) (*entity.InvoiceFields, error) {
	user := UserPrompt(text.RawText, filename, e.promptChars)
	content, err := e.client.Complete(ctx, SystemPrompt(constants.DocumentTypeInvoice), user)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			return nil, err
		}
		e.logger.Warn("llm.invoice.degraded", "error", err)
		return &entity.InvoiceFields{Currency: normalize.DefaultCurrency}, nil
	}

	parsed, err := e.decodeInvoice(content)
	if err != nil {
		e.logger.Warn("llm.invoice.unparseable", "error", err, "content_len", len(content))
		return &entity.InvoiceFields{Currency: normalize.DefaultCurrency}, nil
	}

	out := &entity.InvoiceFields{
		Currency:    normalize.Currency(parsed.Currency),
		Description: parsed.Description,
		Sender:      parsed.Sender,
	}
	if parsed.Amount != "" {
		if amt, aerr := normalize.Amount(parsed.Amount); aerr == nil {
			out.Amount = amt
		} else {
			e.logger.Warn("llm.invoice.bad_amount", "raw", parsed.Amount, "error", aerr)
		}
	}
	if parsed.Date != "" {
		if d, derr := normalize.Date(parsed.Date); derr == nil && normalize.WithinDateWindow(d, time.Now()) {
			out.Date = &d
		}
	}
	return out, nil
}

// ExtractStatement asks the model for the statement's transaction rows.
// Same failure contract as ExtractInvoice.
func (e *AIExtractor) ExtractStatement(ctx context.Context, text *entity.InterpretedText) ([]entity.StatementTransaction, error) {
	user := UserPrompt(text.RawText, "", e.promptChars)
	content, err := e.client.Complete(ctx, SystemPrompt(constants.DocumentTypeStatement), user)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			return nil, err
		}
		e.logger.Warn("llm.statement.degraded", "error", err)
		return nil, nil
	}

	parsed, err := e.decodeStatement(content)
	if err != nil {
		e.logger.Warn("llm.statement.unparseable", "error", err, "content_len", len(content))
		return nil, nil
	}

	now := time.Now()
	txs := make([]entity.StatementTransaction, 0, len(parsed.Transactions))
	for _, row := range parsed.Transactions {
		amt, aerr := normalize.Amount(row.Amount)
		if aerr != nil {
			e.logger.Warn("llm.statement.bad_amount", "raw", row.Amount, "error", aerr)
			continue
		}
		d, derr := normalize.Date(row.Date)
		if derr != nil || !normalize.WithinDateWindow(d, now) {
			continue
		}
		txs = append(txs, entity.StatementTransaction{
			Date:        d,
			Amount:      amt,
			Currency:    normalize.Currency(row.Currency),
			Description: row.Description,
			AccountNo:   row.AccountNo,
		})
	}
	return txs, nil
}

func (e *AIExtractor) decodeInvoice(content string) (InvoiceFieldsJSON, error) {
	raw := []byte(StripCodeFences(content))
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return InvoiceFieldsJSON{}, err
	}
	if err := ValidateInvoice(doc); err != nil {
		return InvoiceFieldsJSON{}, err
	}
	var out InvoiceFieldsJSON
	if err := json.Unmarshal(raw, &out); err != nil {
		return InvoiceFieldsJSON{}, err
	}
	return out, nil
}

func (e *AIExtractor) decodeStatement(content string) (StatementJSON, error) {
	raw := []byte(StripCodeFences(content))
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return StatementJSON{}, err
	}
	if err := ValidateStatement(doc); err != nil {
		return StatementJSON{}, err
	}
	var out StatementJSON
	if err := json.Unmarshal(raw, &out); err != nil {
		return StatementJSON{}, err
	}
	return out, nil
}
