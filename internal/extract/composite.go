// Package extract selects between the fast native-text strategy and OCR based
// on a sufficiency heuristic, and applies the best-effort degradation policy
// when both struggle.
package extract

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/ocr"
)

// Composite chooses an extraction strategy per document:
//  1. PDFs get the fast extractor first; sufficient output returns
//     immediately and OCR never runs.
//  2. Non-PDFs, insufficient fast output, or a fast failure fall through
//     to OCR.
//  3. If OCR also fails, an insufficient fast result is still returned
//     tagged degraded; with no text at all the job cannot proceed.
type Composite struct {
	fast   TextExtractor
	ocr    TextExtractor
	logger *slog.Logger
}

func NewComposite(fast, ocrx TextExtractor, logger *slog.Logger) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composite{fast: fast, ocr: ocrx, logger: logger}
}

// Extract runs the selection algorithm for one document.
func (c *Composite) Extract(ctx context.Context, doc *entity.Document) (*entity.InterpretedText, error) {
	var fastRes *ocr.Result
	var fastErr error

	if doc.IsPDF {
		res, err := c.fast.Extract(ctx, doc.FilePath)
		if err != nil {
			fastErr = err
			c.logger.Warn("fast extraction failed, falling back to ocr",
				"document_id", doc.ID, "error", err)
		} else {
			fastRes = &res
			if Sufficient(res.Text) {
				c.logger.Info("fast extraction sufficient",
					"document_id", doc.ID, "chars", len(res.Text), "pages", res.Pages)
				return interpreted(res, "fast", false, nil), nil
			}
			c.logger.Info("fast extraction insufficient, falling back to ocr",
				"document_id", doc.ID, "chars", len(res.Text))
		}
	}

	ocrRes, ocrErr := c.ocr.Extract(ctx, doc.FilePath)
	if ocrErr == nil {
		meta := map[string]any{}
		if fastRes != nil {
			meta["fastAttempted"] = true
			meta["fastChars"] = len(fastRes.Text)
			meta["fastLines"] = len(nonEmptyLines(fastRes.Text))
		} else if fastErr != nil {
			meta["fastAttempted"] = true
			meta["fastError"] = fastErr.Error()
		}
		return interpreted(ocrRes, "ocr", true, meta), nil
	}

	c.logger.Error("ocr extraction failed", "document_id", doc.ID, "error", ocrErr)

	// best-effort: a poor fast result beats no result
	if fastRes != nil {
		meta := map[string]any{
			"poorQuality": true,
			"ocrFailed":   ocrErr.Error(),
		}
		it := interpreted(*fastRes, "degraded", false, meta)
		return it, nil
	}

	return nil, common.ExtractionError("no text could be extracted", ocrErr)
}

// ExtractOCR skips the fast path entirely, for callers that request OCR
// explicitly. No degradation fallback exists here; an OCR failure is final.
func (c *Composite) ExtractOCR(ctx context.Context, doc *entity.Document) (*entity.InterpretedText, error) {
	res, err := c.ocr.Extract(ctx, doc.FilePath)
	if err != nil {
		c.logger.Error("forced ocr extraction failed", "document_id", doc.ID, "error", err)
		return nil, common.ExtractionError("ocr extraction failed", err)
	}
	return interpreted(res, "ocr", true, map[string]any{"forced": true}), nil
}

// Sufficient applies the quality heuristic to fast-extraction output.
func Sufficient(text string) bool {
	if len(text) < MinChars {
		return false
	}
	lines := nonEmptyLines(text)
	if len(lines) < MinLines {
		return false
	}
	total := 0
	for _, ln := range lines {
		total += len(ln)
	}
	if float64(total)/float64(len(lines)) < MinCharsPerLine {
		return false
	}
	return alnumRatio(text) >= MinAlnumRatio
}

// alnumRatio is the share of letters and digits among non-space characters.
func alnumRatio(text string) float64 {
	var alnum, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(ln); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func interpreted(res ocr.Result, tag string, ocrUsed bool, extra map[string]any) *entity.InterpretedText {
	lines := nonEmptyLines(res.Text)
	meta := map[string]any{
		"pages":     res.Pages,
		"method":    res.Method,
		"charCount": len(res.Text),
		"lineCount": len(lines),
	}
	if len(res.Warnings) > 0 {
		meta["warnings"] = res.Warnings
	}
	for k, v := range extra {
		meta[k] = v
	}
	return &entity.InterpretedText{
		RawText:       res.Text,
		Lines:         lines,
		Metadata:      meta,
		OCRUsed:       ocrUsed,
		Language:      res.Language,
		ExtractorUsed: tag,
	}
}
