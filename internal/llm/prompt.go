package llm

import (
	"fmt"
	"strings"

	"github.com/mskarstad/dokutolk/constants"
)

const invoiceSystemPrompt = `You are a document interpretation engine for invoices and receipts.
Extract the requested fields from the document text and respond with a single JSON object only.
No prose, no Markdown, no code fences.

Fields:
- amount: the total payable amount as a plain number string, e.g. "1234.56"
- currency: ISO 4217 code, e.g. "NOK". Use "NOK" when the document gives no currency.
- date: the invoice or purchase date as YYYY-MM-DD, or omit when absent
- description: a short description of what was purchased, or omit
- sender: the issuing merchant or company name, or omit

Use an empty string for amount when no total can be found.`

const statementSystemPrompt = `You are a document interpretation engine for bank account statements.
Extract every transaction row from the statement text and respond with a single JSON object only.
No prose, no Markdown, no code fences.

Shape: {"transactions": [{"date", "amount", "currency", "description", "account_no"}]}
- date: YYYY-MM-DD
- amount: plain number string, negative for withdrawals and purchases, positive for deposits
- currency: ISO 4217, "NOK" when the statement gives no currency
- description: the row text describing the transaction
- account_no: the statement account number when present, else omit

Respond with {"transactions": []} when no rows can be found.`

// SystemPrompt returns the instruction block for the given document type.
func SystemPrompt(docType constants.DocumentType) string {
	if docType == constants.DocumentTypeStatement {
		return statementSystemPrompt
	}
	return invoiceSystemPrompt
}

// UserPrompt builds the document payload, truncated to maxChars so a long
// OCR dump cannot blow the request budget. Truncation cuts at a line
// boundary when one falls inside the final 200 characters.
func UserPrompt(text, filename string, maxChars int) string {
	if maxChars > 0 && len(text) > maxChars {
		cut := text[:maxChars]
		if idx := strings.LastIndexByte(cut[max(0, maxChars-200):], '\n'); idx >= 0 {
			cut = cut[:max(0, maxChars-200)+idx]
		}
		text = cut
	}
	var b strings.Builder
	if filename != "" {
		fmt.Fprintf(&b, "Filename: %s\n\n", filename)
	}
	b.WriteString("Document text:\n")
	b.WriteString(text)
	return b.String()
}
