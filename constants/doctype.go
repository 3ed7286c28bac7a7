package constants

import "strings"

// DocumentType classifies what kind of financial document a file holds.
type DocumentType string

const (
	DocumentTypeInvoice   DocumentType = "INVOICE"
	DocumentTypeStatement DocumentType = "STATEMENT"
	DocumentTypeReceipt   DocumentType = "RECEIPT"
	DocumentTypeUnknown   DocumentType = "UNKNOWN"
)

var allDocumentTypes = []DocumentType{
	DocumentTypeInvoice,
	DocumentTypeStatement,
	DocumentTypeReceipt,
	DocumentTypeUnknown,
}

// common aliases seen in upload metadata
var documentTypeAliases = map[string]DocumentType{
	"FAKTURA":        DocumentTypeInvoice,
	"KONTOUTSKRIFT":  DocumentTypeStatement,
	"BANK_STATEMENT": DocumentTypeStatement,
	"KVITTERING":     DocumentTypeReceipt,
}

// ParseDocumentType maps a free-form label to a DocumentType.
// Returns DocumentTypeUnknown,false for anything it does not recognise.
func ParseDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	if normalized == "" {
		return DocumentTypeUnknown, false
	}
	for _, dt := range allDocumentTypes {
		if normalized == string(dt) {
			return dt, true
		}
	}
	if dt, ok := documentTypeAliases[normalized]; ok {
		return dt, true
	}
	return DocumentTypeUnknown, false
}
