// Command dokutolk registers a document and runs one interpretation job
// against it, printing the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mskarstad/dokutolk/constants"
	"github.com/mskarstad/dokutolk/internal/classify"
	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/extract"
	"github.com/mskarstad/dokutolk/internal/fields"
	"github.com/mskarstad/dokutolk/internal/llm"
	"github.com/mskarstad/dokutolk/internal/llm/openai"
	"github.com/mskarstad/dokutolk/internal/ocr"
	"github.com/mskarstad/dokutolk/internal/pipeline"
	repo "github.com/mskarstad/dokutolk/internal/repository"
)

func main() {
	var (
		useOCR   = flag.Bool("ocr", false, "force OCR even for native-text PDFs")
		useAI    = flag.Bool("ai", false, "use the AI field extractor (needs OPENAI_API_KEY)")
		langHint = flag.String("lang", "", "language hint, e.g. nor, swe, eng")
		typeHint = flag.String("type", "", "document type hint: INVOICE, STATEMENT, RECEIPT")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: dokutolk [flags] <document path>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path, err := filepath.Abs(flag.Arg(0))
	if err != nil {
		logger.Error("bad document path", "error", err)
		os.Exit(2)
	}
	if !constants.IsAllowedPath(path) {
		logger.Error("unsupported file type", "path", path)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(*useAI); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	hinted := constants.DocumentTypeUnknown
	if *typeHint != "" {
		var ok bool
		if hinted, ok = constants.ParseDocumentType(*typeHint); !ok {
			logger.Error("bad type hint", "value", *typeHint)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    int(cfg.Database.MaxConns),
		MaxIdleConns:    int(cfg.Database.MinConns),
		ConnMaxLifetime: cfg.Database.MaxConnLifetime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	docs := repo.NewDocumentRepository(db, logger)
	jobs := repo.NewJobRepository(db, logger)
	results := repo.NewResultRepository(db, logger)

	ocrCfg := ocr.Config{
		Pdftotext:   cfg.OCR.Pdftotext,
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		Languages:   languagesFor(*langHint, cfg.OCR.Languages),
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
		PageWorkers: cfg.OCR.PageWorkers,
		TessdataDir: cfg.OCR.TessdataDir,
	}
	interp := extract.NewComposite(
		ocr.NewFastExtractor(ocrCfg, logger),
		ocr.NewImageExtractor(ocrCfg, logger),
		logger,
	)

	ext := pipeline.Extractors{
		Invoice:   fields.NewHeuristicInvoice(logger),
		Receipt:   fields.NewSmallReceipt(logger),
		Statement: fields.NewHeuristicStatement(logger),
		Scorer:    fields.NewHeuristicScorer(),
	}
	if *useAI {
		client := openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		ai := llm.NewAIExtractor(client, cfg.LLM.PromptChars, logger)
		ext.AIInvoice = ai
		ext.AIStatement = ai
	}

	orch := pipeline.NewOrchestrator(docs, jobs, results, interp, classify.New(logger), ext, logger)

	doc, err := docs.GetByPath(ctx, path)
	if err != nil {
		doc = &entity.Document{FilePath: path, IsPDF: constants.IsPDFPath(path)}
		if err := docs.Create(ctx, doc); err != nil {
			logger.Error("failed to register document", "error", err)
			os.Exit(1)
		}
	}

	job, err := orch.Submit(ctx, doc.ID, entity.JobOptions{
		UseOCR:       *useOCR,
		UseAI:        *useAI,
		LanguageHint: *langHint,
		HintedType:   hinted,
	})
	if err != nil {
		logger.Error("failed to submit job", "error", err)
		os.Exit(1)
	}

	if err := orch.Run(ctx, job.ID); err != nil {
		logger.Error("job failed", "job_id", job.ID, "error", err)
		os.Exit(1)
	}

	result, err := results.FindByJobID(ctx, job.ID)
	if err != nil {
		logger.Error("result lookup failed", "job_id", job.ID, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("failed to print result", "error", err)
		os.Exit(1)
	}
}

// languagesFor puts an explicit hint first so tesseract favors it, keeping
// the configured set as fallback.
func languagesFor(hint, configured string) string {
	if hint == "" {
		return configured
	}
	return hint + "+" + configured
}
