// Command dokexport writes an XLSX workbook with all interpretation
// results for a registered document.
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

	"github.com/google/uuid"

	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/export"
	repo "github.com/mskarstad/dokutolk/internal/repository"
)

func main() {
	var (
		out   = flag.String("o", "", "output file (default <document-id>.xlsx)")
		byID  = flag.String("id", "", "document id")
		byDoc = flag.String("file", "", "document path (alternative to -id)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *byID == "" && *byDoc == "" {
		fmt.Fprintln(os.Stderr, "usage: dokexport -id <document id> | -file <document path> [-o out.xlsx]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		DSN:         cfg.Database.DSN,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	docs := repo.NewDocumentRepository(db, logger)
	results := repo.NewResultRepository(db, logger)
	svc := export.NewService(docs, results, logger)

	var documentID uuid.UUID
	if *byID != "" {
		documentID, err = uuid.Parse(*byID)
		if err != nil {
			logger.Error("bad document id", "value", *byID, "error", err)
			os.Exit(2)
		}
	} else {
		path, perr := filepath.Abs(*byDoc)
		if perr != nil {
			logger.Error("bad document path", "error", perr)
			os.Exit(2)
		}
		doc, derr := docs.GetByPath(ctx, path)
		if derr != nil {
			logger.Error("document not registered", "path", path, "error", derr)
			os.Exit(1)
		}
		documentID = doc.ID
	}

	data, err := svc.ExportDocumentXLSX(ctx, documentID)
	if err != nil {
		logger.Error("export failed", "document_id", documentID, "error", err)
		os.Exit(1)
	}

	target := *out
	if target == "" {
		target = documentID.String() + ".xlsx"
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		logger.Error("failed to write workbook", "path", target, "error", err)
		os.Exit(1)
	}
	logger.Info("workbook written", "path", target, "bytes", len(data))
}
