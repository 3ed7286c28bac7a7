package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FastExtractor reads the native text layer of a PDF page-by-page via pdftotext.
// No rasterization, so it is cheap; scanned PDFs come back near-empty and the
// selector falls through to OCR.
type FastExtractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewFastExtractor(cfg Config, logger *slog.Logger) *FastExtractor {
	cfg.applyDefaults()
	return &FastExtractor{cfg: cfg, runner: execRunner{}, logger: loggerOrDefault(logger)}
}

func (e *FastExtractor) Name() string { return "pdf-text" }

func (e *FastExtractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	e.logger.Debug("fast extraction start", "path", path)

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return Result{Method: "pdf-text", Warnings: []string{string(errb)}}, fmt.Errorf("pdftotext: %w", err)
	}

	text := string(out)
	// pdftotext separates pages with a form feed
	pages := 1 + strings.Count(text, "\f")

	return Result{
		Text:     text,
		Pages:    pages,
		Method:   "pdf-text",
		Duration: time.Since(start),
	}, nil
}
