// Package ocr implements the two text-extraction strategies: reading a PDF's
// native text layer with pdftotext, and rasterizing pages with pdftoppm and
// recognising them with tesseract. Both fail fatally only on I/O or engine
// errors; empty output is a valid result judged later by the selector.
package ocr

import (
	"log/slog"
	"strings"
	"time"
)

// Config holds the external-tool setup shared by both strategies.
type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Languages   string // tesseract language set, e.g. "nor+eng+swe"
	DPI         int    // rasterization DPI for scanned PDFs, default 300
	MaxPages    int    // 0 = no limit
	PageWorkers int    // parallel page OCR, default 4

	TessdataDir string
}

func (c *Config) applyDefaults() {
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Languages == "" {
		c.Languages = "nor+eng+swe"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.PageWorkers <= 0 {
		c.PageWorkers = 4
	}
}

// PrimaryLanguage returns the first entry of the configured language set.
func (c Config) PrimaryLanguage() string {
	if i := strings.Index(c.Languages, "+"); i > 0 {
		return c.Languages[:i]
	}
	return c.Languages
}

// Result is the raw output of one extraction strategy.
type Result struct {
	Text     string
	Pages    int
	Method   string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language string
	Duration time.Duration
	Warnings []string
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
