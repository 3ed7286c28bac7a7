package llm

import "context"

// ChatClient is the single completion-style call the AI extractors depend on.
// Implementations must signal authentication failure distinctly (a wrapped
// common.ErrUnauthorized) from transport or decoding failures.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// InvoiceFieldsJSON is the shape the model is instructed to return for
// invoices and receipts. Money is carried as strings; normalization happens
// after schema validation.
type InvoiceFieldsJSON struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Date        string `json:"date,omitempty"` // YYYY-MM-DD
	Description string `json:"description,omitempty"`
	Sender      string `json:"sender,omitempty"`
}

// StatementJSON wraps the transaction list shape for statements.
type StatementJSON struct {
	Transactions []TransactionJSON `json:"transactions"`
}

// TransactionJSON is one statement row as returned by the model.
type TransactionJSON struct {
	Date        string `json:"date"` // YYYY-MM-DD
	Amount      string `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description"`
	AccountNo   string `json:"account_no,omitempty"`
}
