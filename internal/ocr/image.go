package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mskarstad/dokutolk/constants"
)

// ImageExtractor renders each page to a raster image and runs tesseract on it.
// Pages are OCRed in parallel; output is concatenated in page order regardless
// of completion order. A failed page is recorded as a warning, not a job error.
type ImageExtractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewImageExtractor(cfg Config, logger *slog.Logger) *ImageExtractor {
	cfg.applyDefaults()
	return &ImageExtractor{cfg: cfg, runner: execRunner{}, logger: loggerOrDefault(logger)}
}

func (e *ImageExtractor) Name() string { return "ocr" }

func (e *ImageExtractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	if constants.IsPDFPath(path) {
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	}
	res, err := e.extractImage(ctx, path)
	res.Duration = time.Since(start)
	return res, err
}

func (e *ImageExtractor) extractPDF(ctx context.Context, path string) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "dokutolk-pp-*")
	if err != nil {
		return Result{Method: "pdf-ocr"}, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Result{Method: "pdf-ocr", Warnings: []string{string(errb)}}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{Method: "pdf-ocr", Warnings: []string{"pdftoppm produced no images"}}, fmt.Errorf("no pages rendered")
	}

	pageTexts, warns := e.ocrPages(ctx, matches)

	var b strings.Builder
	for _, txt := range pageTexts {
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
	}
	text := b.String()

	return Result{
		Text:     text,
		Pages:    len(matches),
		Method:   "pdf-ocr",
		Language: DetectLanguage(text, e.cfg.PrimaryLanguage()),
		Warnings: warns,
	}, nil
}

// ocrPages runs tesseract over the page images with a bounded worker pool.
// Results land in a slice indexed by page so ordering is preserved.
func (e *ImageExtractor) ocrPages(ctx context.Context, images []string) ([]string, []string) {
	texts := make([]string, len(images))
	pageWarns := make([][]string, len(images))

	sem := make(chan struct{}, e.cfg.PageWorkers)
	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(i int, img string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			txt, w, err := e.tesseract(ctx, img)
			if err != nil {
				// a corrupted page reduces output instead of failing the run
				pageWarns[i] = append(w, fmt.Sprintf("page %d: %v", i+1, err))
				return
			}
			texts[i] = txt
			pageWarns[i] = w
		}(i, img)
	}
	wg.Wait()

	var warns []string
	for _, w := range pageWarns {
		warns = append(warns, w...)
	}
	return texts, warns
}

func (e *ImageExtractor) extractImage(ctx context.Context, path string) (Result, error) {
	txt, warns, err := e.tesseract(ctx, path)
	if err != nil {
		return Result{Method: "image-ocr", Warnings: warns}, err
	}
	return Result{
		Text:     txt,
		Pages:    1,
		Method:   "image-ocr",
		Language: DetectLanguage(txt, e.cfg.PrimaryLanguage()),
		Warnings: warns,
	}, nil
}

func (e *ImageExtractor) tesseract(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Languages}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <langs>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}
