// Command dokbatch interprets many documents concurrently: every path on
// the command line is registered, submitted, and run on a worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mskarstad/dokutolk/constants"
	"github.com/mskarstad/dokutolk/internal/async"
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
		useOCR = flag.Bool("ocr", false, "force OCR even for native-text PDFs")
		useAI  = flag.Bool("ai", false, "use the AI field extractor (needs OPENAI_API_KEY)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: dokbatch [flags] <document path>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(*useAI); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
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
		Languages:   cfg.OCR.Languages,
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
	queue := async.NewQueue(orch, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithRunTimeout(cfg.Pipeline.ProcessTimeout),
	)

	submitted := 0
	for _, arg := range flag.Args() {
		path, perr := filepath.Abs(arg)
		if perr != nil || !constants.IsAllowedPath(path) {
			logger.Warn("skipping unsupported path", "path", arg)
			continue
		}
		doc, derr := docs.GetByPath(ctx, path)
		if derr != nil {
			doc = &entity.Document{FilePath: path, IsPDF: constants.IsPDFPath(path)}
			if cerr := docs.Create(ctx, doc); cerr != nil {
				logger.Error("failed to register document", "path", path, "error", cerr)
				continue
			}
		}
		job, serr := orch.Submit(ctx, doc.ID, entity.JobOptions{UseOCR: *useOCR, UseAI: *useAI})
		if serr != nil {
			logger.Error("failed to submit job", "path", path, "error", serr)
			continue
		}
		_ = queue.Enqueue(ctx, async.Task{JobID: job.ID, SubmittedAt: time.Now()})
		submitted++
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	queue.Shutdown(drainCtx)
	logger.Info("batch finished", "submitted", submitted)
}
