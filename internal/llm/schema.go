package llm

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const invoiceSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["amount", "currency"],
  "properties": {
    "amount":      {"type": "string"},
    "currency":    {"type": "string", "pattern": "^[A-Za-z]{3}$"},
    "date":        {"type": "string"},
    "description": {"type": "string"},
    "sender":      {"type": "string"}
  },
  "additionalProperties": true
}`

const statementSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["transactions"],
  "properties": {
    "transactions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["date", "amount", "description"],
        "properties": {
          "date":        {"type": "string"},
          "amount":      {"type": "string"},
          "currency":    {"type": "string"},
          "description": {"type": "string"},
          "account_no":  {"type": "string"}
        },
        "additionalProperties": true
      }
    }
  },
  "additionalProperties": true
}`

var (
	schemaOnce      sync.Once
	invoiceSchema   *jsonschema.Schema
	statementSchema *jsonschema.Schema
)

func compileSchemas() {
	schemaOnce.Do(func() {
		invoiceSchema = jsonschema.MustCompileString("invoice.json", invoiceSchemaJSON)
		statementSchema = jsonschema.MustCompileString("statement.json", statementSchemaJSON)
	})
}

// ValidateInvoice checks a decoded model response against the invoice shape.
func ValidateInvoice(doc any) error {
	compileSchemas()
	return invoiceSchema.Validate(doc)
}

// ValidateStatement checks a decoded model response against the statement shape.
func ValidateStatement(doc any) error {
	compileSchemas()
	return statementSchema.Validate(doc)
}

// StripCodeFences removes a Markdown code fence wrapper the model sometimes
// adds despite instructions, so the payload parses as bare JSON.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
