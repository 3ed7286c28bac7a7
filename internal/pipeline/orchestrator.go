// Package pipeline owns the interpretation job state machine and the
// sequencing of extraction, classification, field extraction, and
// persistence. Only the orchestrator mutates job status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mskarstad/dokutolk/constants"
	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/fields"
	"github.com/mskarstad/dokutolk/internal/repository"
)

// Interpreter is the text-extraction front end (extract.Composite in
// production, a stub in tests).
type Interpreter interface {
	Extract(ctx context.Context, doc *entity.Document) (*entity.InterpretedText, error)
	ExtractOCR(ctx context.Context, doc *entity.Document) (*entity.InterpretedText, error)
}

// Classifier decides the document type from text, honoring a caller hint.
type Classifier interface {
	Classify(text string, hinted constants.DocumentType) constants.DocumentType
}

// Extractors bundles the field-extraction strategies the orchestrator can
// dispatch to. The AI pair may be nil; jobs requesting AI then fail fast.
type Extractors struct {
	Invoice     fields.InvoiceExtractor
	Receipt     fields.InvoiceExtractor
	Statement   fields.StatementExtractor
	AIInvoice   fields.InvoiceExtractor
	AIStatement fields.StatementExtractor
	Scorer      fields.Scorer
}

type Orchestrator struct {
	docs       repository.DocumentRepository
	jobs       repository.JobRepository
	results    repository.ResultRepository
	interp     Interpreter
	classifier Classifier
	ext        Extractors
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewOrchestrator(
	docs repository.DocumentRepository,
	jobs repository.JobRepository,
	results repository.ResultRepository,
	interp Interpreter,
	classifier Classifier,
	ext Extractors,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		docs:       docs,
		jobs:       jobs,
		results:    results,
		interp:     interp,
		classifier: classifier,
		ext:        ext,
		logger:     logger,
		now:        time.Now,
		locks:      map[uuid.UUID]*sync.Mutex{},
	}
}

// Submit registers a new PENDING job for the document.
func (o *Orchestrator) Submit(ctx context.Context, documentID uuid.UUID, opts entity.JobOptions) (*entity.InterpretationJob, error) {
	if _, err := o.docs.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	job := &entity.InterpretationJob{
		DocumentID: documentID,
		Status:     constants.JobStatusPending,
		CreatedAt:  o.now().UTC(),
		Options:    opts,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Run executes one job to a terminal state. Concurrent runs against the
// same document serialize on a per-document lock. The returned error is
// the failure recorded on the job, nil for COMPLETED, and an invalid-state
// error when the job was not runnable.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	lock := o.documentLock(job.DocumentID)
	lock.Lock()
	defer lock.Unlock()

	// reload under the lock; another run or a cancel may have advanced it
	job, err = o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanTransition(constants.JobStatusRunning) {
		return common.InvalidStateError(string(job.Status), string(constants.JobStatusRunning))
	}

	started := o.now().UTC()
	job.Status = constants.JobStatusRunning
	job.StartedAt = &started
	if err := o.jobs.Update(ctx, job); err != nil {
		return err
	}
	logAttrs := []any{"job_id", job.ID, "document_id", job.DocumentID}
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		logAttrs = append(logAttrs, "request_id", rid)
	}
	o.logger.Info("job running", logAttrs...)

	if runErr := o.execute(ctx, job); runErr != nil {
		if errors.Is(runErr, errCancelled) {
			o.logger.Info("job cancelled mid-run", "job_id", job.ID)
			return nil
		}
		return o.fail(ctx, job, runErr)
	}
	return nil
}

// errCancelled is an internal signal: the job was cancelled between phases
// and its status must not be touched again.
var errCancelled = errors.New("job cancelled")

func (o *Orchestrator) execute(ctx context.Context, job *entity.InterpretationJob) error {
	doc, err := o.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return err
	}

	var text *entity.InterpretedText
	if job.Options.UseOCR {
		text, err = o.interp.ExtractOCR(ctx, doc)
	} else {
		text, err = o.interp.Extract(ctx, doc)
	}
	if err != nil {
		return err
	}

	if err := o.checkpoint(ctx, job); err != nil {
		return err
	}

	// the type is persisted with the terminal update; writing it here would
	// race a concurrent cancel on the status column
	docType := o.classifier.Classify(text.RawText, job.Options.HintedType)
	job.DocumentType = docType
	o.logger.Info("document classified",
		"job_id", job.ID, "document_type", docType, "extractor", text.ExtractorUsed)

	if err := o.checkpoint(ctx, job); err != nil {
		return err
	}

	result := &entity.InterpretationResult{
		DocumentID:        doc.ID,
		JobID:             job.ID,
		DocumentType:      docType,
		InterpretedAt:     o.now().UTC(),
		ExtractionMethods: []string{text.ExtractorUsed},
		Provenance: map[string]any{
			"text":          text.Metadata,
			"language":      text.Language,
			"ocr_used":      text.OCRUsed,
			"hinted_type":   string(job.Options.HintedType),
			"language_hint": job.Options.LanguageHint,
		},
	}

	if err := o.extractFields(ctx, job, doc, text, result); err != nil {
		return err
	}

	if o.ext.Scorer != nil {
		result.Confidence = o.ext.Scorer.Score(result, text)
	}

	if err := o.checkpoint(ctx, job); err != nil {
		return err
	}

	// result is durable before the job turns COMPLETED
	if err := o.results.Save(ctx, result); err != nil {
		return err
	}

	finished := o.now().UTC()
	job.Status = constants.JobStatusCompleted
	job.FinishedAt = &finished
	if err := o.jobs.Update(ctx, job); err != nil {
		return err
	}
	o.logger.Info("job completed",
		"job_id", job.ID, "document_type", docType,
		"methods", result.ExtractionMethods,
		"duration_ms", finished.Sub(*job.StartedAt).Milliseconds())
	return nil
}

func (o *Orchestrator) extractFields(
	ctx context.Context,
	job *entity.InterpretationJob,
	doc *entity.Document,
	text *entity.InterpretedText,
	result *entity.InterpretationResult,
) error {
	filename := filepath.Base(doc.FilePath)

	if job.DocumentType == constants.DocumentTypeStatement {
		ex := o.ext.Statement
		if job.Options.UseAI {
			if o.ext.AIStatement == nil {
				return fmt.Errorf("ai extraction requested but not configured")
			}
			ex = o.ext.AIStatement
		}
		txs, err := ex.ExtractStatement(ctx, text)
		if err != nil {
			return err
		}
		result.Transactions = txs
		result.ExtractionMethods = append(result.ExtractionMethods, ex.Name())
		return nil
	}

	ex := o.ext.Invoice
	if job.DocumentType == constants.DocumentTypeReceipt && o.ext.Receipt != nil {
		ex = o.ext.Receipt
	}
	if job.Options.UseAI {
		if o.ext.AIInvoice == nil {
			return fmt.Errorf("ai extraction requested but not configured")
		}
		ex = o.ext.AIInvoice
	}
	inv, err := ex.ExtractInvoice(ctx, text, filename)
	if err != nil {
		return err
	}
	result.Invoice = inv
	result.ExtractionMethods = append(result.ExtractionMethods, ex.Name())
	return nil
}

// checkpoint honors context cancellation and cooperative job cancellation
// between pipeline phases.
func (o *Orchestrator) checkpoint(ctx context.Context, job *entity.InterpretationJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, err := o.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if current.Status == constants.JobStatusCancelled {
		return errCancelled
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job *entity.InterpretationJob, cause error) error {
	finished := o.now().UTC()
	msg := cause.Error()
	job.Status = constants.JobStatusFailed
	job.FinishedAt = &finished
	job.ErrorMessage = &msg
	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Error("failed to record job failure", "job_id", job.ID, "error", err)
	}
	o.logger.Warn("job failed", "job_id", job.ID, "error", msg)
	return cause
}

// Cancel moves a PENDING or RUNNING job to CANCELLED. Terminal jobs are
// frozen and report an invalid-state error.
func (o *Orchestrator) Cancel(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanTransition(constants.JobStatusCancelled) {
		return common.InvalidStateError(string(job.Status), string(constants.JobStatusCancelled))
	}
	finished := o.now().UTC()
	job.Status = constants.JobStatusCancelled
	job.FinishedAt = &finished
	if err := o.jobs.Update(ctx, job); err != nil {
		return err
	}
	o.logger.Info("job cancelled", "job_id", job.ID)
	return nil
}

func (o *Orchestrator) documentLock(documentID uuid.UUID) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[documentID] = lock
	}
	return lock
}
