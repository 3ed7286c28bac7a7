// Package export produces XLSX workbooks from persisted interpretation
// results.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/mskarstad/dokutolk/constants"
	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes.
type Service struct {
	docs    repository.DocumentRepository
	results repository.ResultRepository
	logger  *slog.Logger
}

func NewService(docs repository.DocumentRepository, results repository.ResultRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, results: results, logger: logger}
}

// ExportDocumentXLSX returns a workbook for one document's results: one
// sheet of invoice/receipt fields and one of statement transactions.
// Either sheet may be empty depending on what the document produced.
func (s *Service) ExportDocumentXLSX(ctx context.Context, documentID uuid.UUID) ([]byte, error) {
	start := time.Now()

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	results, err := s.results.ListByDocumentID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}

	f := excelize.NewFile()
	if err := s.writeInvoiceSheet(f, doc, results); err != nil {
		return nil, err
	}
	if err := s.writeTransactionSheet(f, results); err != nil {
		return nil, err
	}
	// excelize seeds "Sheet1"; drop it once the real sheets exist
	_ = f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export complete",
		"document_id", documentID,
		"results", len(results),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func (s *Service) writeInvoiceSheet(f *excelize.File, doc *entity.Document, results []*entity.InterpretationResult) error {
	const sheet = "Fields"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Interpreted At", "Document Type", "Amount", "Currency", "Date", "Description", "Sender", "File Path"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, res := range results {
		if res.Invoice == nil {
			continue
		}
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, res.InterpretedAt.Format("2006-01-02 15:04"))
		write(2, string(res.DocumentType))
		write(3, res.Invoice.Amount)
		write(4, res.Invoice.Currency)
		if res.Invoice.Date != nil {
			write(5, res.Invoice.Date.Format("2006-01-02"))
		}
		write(6, truncate(res.Invoice.Description, 140))
		write(7, res.Invoice.Sender)
		write(8, doc.FilePath)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18)
	_ = f.SetColWidth(sheet, "C", "C", 12)
	_ = f.SetColWidth(sheet, "F", "G", 30)
	_ = f.SetColWidth(sheet, "H", "H", 40)
	return nil
}

func (s *Service) writeTransactionSheet(f *excelize.File, results []*entity.InterpretationResult) error {
	const sheet = "Transactions"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Date", "Amount", "Currency", "Description", "Account No", "Approved"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, res := range results {
		if res.DocumentType != constants.DocumentTypeStatement {
			continue
		}
		for _, tx := range res.Transactions {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			write(1, tx.Date.Format("2006-01-02"))
			write(2, tx.Amount)
			write(3, tx.Currency)
			write(4, truncate(tx.Description, 140))
			write(5, tx.AccountNo)
			write(6, tx.Approved)
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "D", "D", 40)
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
