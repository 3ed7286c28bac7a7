package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mskarstad/dokutolk/constants"
	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/pipeline"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*entity.Document
}

func newMemDocs() *memDocs { return &memDocs{docs: map[uuid.UUID]*entity.Document{}} }

func (m *memDocs) Create(_ context.Context, doc *entity.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, common.NotFoundError("document", id.String())
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocs) GetByPath(_ context.Context, path string) (*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.FilePath == path {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, common.NotFoundError("document", path)
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entity.InterpretationJob
}

func newMemJobs() *memJobs { return &memJobs{jobs: map[uuid.UUID]*entity.InterpretationJob{}} }

func (m *memJobs) Create(_ context.Context, job *entity.InterpretationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) Update(_ context.Context, job *entity.InterpretationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return common.NotFoundError("job", job.ID.String())
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id uuid.UUID) (*entity.InterpretationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, common.NotFoundError("job", id.String())
	}
	cp := *job
	return &cp, nil
}

func (m *memJobs) ListByDocument(_ context.Context, documentID uuid.UUID) ([]*entity.InterpretationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.InterpretationJob
	for _, job := range m.jobs {
		if job.DocumentID == documentID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memResults struct {
	mu      sync.Mutex
	byJob   map[uuid.UUID]*entity.InterpretationResult
	savedAt []uuid.UUID // job IDs in save order
	onSave  func()
}

func newMemResults() *memResults {
	return &memResults{byJob: map[uuid.UUID]*entity.InterpretationResult{}}
}

func (m *memResults) Save(_ context.Context, res *entity.InterpretationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	cp := *res
	m.byJob[res.JobID] = &cp
	m.savedAt = append(m.savedAt, res.JobID)
	if m.onSave != nil {
		m.onSave()
	}
	return nil
}

func (m *memResults) FindByJobID(_ context.Context, jobID uuid.UUID) (*entity.InterpretationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.byJob[jobID]
	if !ok {
		return nil, common.NotFoundError("result", jobID.String())
	}
	cp := *res
	return &cp, nil
}

func (m *memResults) FindLatestByDocumentID(_ context.Context, documentID uuid.UUID) (*entity.InterpretationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.byJob {
		if res.DocumentID == documentID {
			cp := *res
			return &cp, nil
		}
	}
	return nil, common.NotFoundError("result", documentID.String())
}

func (m *memResults) ListByDocumentID(_ context.Context, documentID uuid.UUID) ([]*entity.InterpretationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.InterpretationResult
	for _, res := range m.byJob {
		if res.DocumentID == documentID {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

type stubInterpreter struct {
	text    *entity.InterpretedText
	err     error
	ocrText *entity.InterpretedText
}

func (s *stubInterpreter) Extract(context.Context, *entity.Document) (*entity.InterpretedText, error) {
	return s.text, s.err
}

func (s *stubInterpreter) ExtractOCR(context.Context, *entity.Document) (*entity.InterpretedText, error) {
	if s.ocrText != nil {
		return s.ocrText, nil
	}
	return s.text, s.err
}

type stubClassifier struct {
	docType constants.DocumentType
	after   func() // runs post-classification, before the next phase
}

func (s *stubClassifier) Classify(_ string, hinted constants.DocumentType) constants.DocumentType {
	if s.after != nil {
		defer s.after()
	}
	if hinted != "" && hinted != constants.DocumentTypeUnknown {
		return hinted
	}
	return s.docType
}

type stubInvoice struct {
	fields *entity.InvoiceFields
	err    error
}

func (s *stubInvoice) Name() string { return "StubInvoice" }

func (s *stubInvoice) ExtractInvoice(context.Context, *entity.InterpretedText, string) (*entity.InvoiceFields, error) {
	return s.fields, s.err
}

type stubStatement struct {
	txs []entity.StatementTransaction
	err error
}

func (s *stubStatement) Name() string { return "StubStatement" }

func (s *stubStatement) ExtractStatement(context.Context, *entity.InterpretedText) ([]entity.StatementTransaction, error) {
	return s.txs, s.err
}

type harness struct {
	docs    *memDocs
	jobs    *memJobs
	results *memResults
	orch    *pipeline.Orchestrator
	doc     *entity.Document
}

func newHarness(t *testing.T, interp pipeline.Interpreter, cls pipeline.Classifier, ext pipeline.Extractors) *harness {
	t.Helper()
	h := &harness{docs: newMemDocs(), jobs: newMemJobs(), results: newMemResults()}
	h.orch = pipeline.NewOrchestrator(h.docs, h.jobs, h.results, interp, cls, ext, nil)
	h.doc = &entity.Document{FilePath: "/data/faktura.pdf", IsPDF: true}
	require.NoError(t, h.docs.Create(context.Background(), h.doc))
	return h
}

func plainText(raw string) *entity.InterpretedText {
	return &entity.InterpretedText{RawText: raw, Metadata: map[string]any{}, ExtractorUsed: "fast"}
}

func TestRunCompletesInvoiceJob(t *testing.T) {
	inv := &entity.InvoiceFields{Amount: 1234.56, Currency: "NOK", Sender: "Snekker Hansen AS"}
	h := newHarness(t,
		&stubInterpreter{text: plainText("Faktura")},
		&stubClassifier{docType: constants.DocumentTypeInvoice},
		pipeline.Extractors{Invoice: &stubInvoice{fields: inv}},
	)
	ctx := context.Background()

	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, job.Status)

	require.NoError(t, h.orch.Run(ctx, job.ID))

	got, err := h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, constants.DocumentTypeInvoice, got.DocumentType)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)
	assert.Nil(t, got.ErrorMessage)

	res, err := h.results.FindByJobID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Invoice)
	assert.InDelta(t, 1234.56, res.Invoice.Amount, 0.001)
	assert.Contains(t, res.ExtractionMethods, "fast")
	assert.Contains(t, res.ExtractionMethods, "StubInvoice")
}

func TestRunResultPersistedBeforeCompletion(t *testing.T) {
	h := newHarness(t,
		&stubInterpreter{text: plainText("Faktura")},
		&stubClassifier{docType: constants.DocumentTypeInvoice},
		pipeline.Extractors{Invoice: &stubInvoice{fields: &entity.InvoiceFields{Currency: "NOK"}}},
	)
	ctx := context.Background()
	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{})
	require.NoError(t, err)

	var statusAtSave constants.JobStatus
	h.results.onSave = func() {
		j, jerr := h.jobs.GetByID(ctx, job.ID)
		require.NoError(t, jerr)
		statusAtSave = j.Status
	}
	require.NoError(t, h.orch.Run(ctx, job.ID))
	assert.Equal(t, constants.JobStatusRunning, statusAtSave)
}

func TestRunStatementJob(t *testing.T) {
	txs := []entity.StatementTransaction{{Amount: -199.00, Currency: "NOK", Description: "Elkjøp"}}
	h := newHarness(t,
		&stubInterpreter{text: plainText("Kontoutskrift")},
		&stubClassifier{docType: constants.DocumentTypeStatement},
		pipeline.Extractors{Statement: &stubStatement{txs: txs}},
	)
	ctx := context.Background()
	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{})
	require.NoError(t, err)
	require.NoError(t, h.orch.Run(ctx, job.ID))

	res, err := h.results.FindByJobID(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Nil(t, res.Invoice)
	got, _ := h.jobs.GetByID(ctx, job.ID)
	assert.Equal(t, constants.DocumentTypeStatement, got.DocumentType)
}

func TestRunExtractionFailureFailsJob(t *testing.T) {
	h := newHarness(t,
		&stubInterpreter{err: common.ExtractionError("no text could be extracted", nil)},
		&stubClassifier{docType: constants.DocumentTypeInvoice},
		pipeline.Extractors{Invoice: &stubInvoice{fields: &entity.InvoiceFields{}}},
	)
	ctx := context.Background()
	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{})
	require.NoError(t, err)

	err = h.orch.Run(ctx, job.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)

	got, _ := h.jobs.GetByID(ctx, job.ID)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "no text")
	require.NotNil(t, got.FinishedAt)

	_, err = h.results.FindByJobID(ctx, job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRunAIAuthFailureFailsJob(t *testing.T) {
	h := newHarness(t,
		&stubInterpreter{text: plainText("Faktura")},
		&stubClassifier{docType: constants.DocumentTypeInvoice},
		pipeline.Extractors{
			Invoice:   &stubInvoice{fields: &entity.InvoiceFields{}},
			AIInvoice: &stubInvoice{err: common.AuthError("completion api rejected credentials", nil)},
		},
	)
	ctx := context.Background()
	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{UseAI: true})
	require.NoError(t, err)

	err = h.orch.Run(ctx, job.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	got, _ := h.jobs.GetByID(ctx, job.ID)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
}

func TestRunHintedTypeWins(t *testing.T) {
	h := newHarness(t,
		&stubInterpreter{text: plainText("Faktura med totalt")},
		&stubClassifier{docType: constants.DocumentTypeInvoice},
		pipeline.Extractors{
			Invoice:   &stubInvoice{fields: &entity.InvoiceFields{}},
			Statement: &stubStatement{txs: nil},
		},
	)
	ctx := context.Background()
	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{HintedType: constants.DocumentTypeStatement})
	require.NoError(t, err)
	require.NoError(t, h.orch.Run(ctx, job.ID))

	got, _ := h.jobs.GetByID(ctx, job.ID)
	assert.Equal(t, constants.DocumentTypeStatement, got.DocumentType)
}

func TestRunOnTerminalJobIsInvalid(t *testing.T) {
	h := newHarness(t,
		&stubInterpreter{text: plainText("Faktura")},
		&stubClassifier{docType: constants.DocumentTypeInvoice},
		pipeline.Extractors{Invoice: &stubInvoice{fields: &entity.InvoiceFields{}}},
	)
	ctx := context.Background()
	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{})
	require.NoError(t, err)
	require.NoError(t, h.orch.Run(ctx, job.ID))

	err = h.orch.Run(ctx, job.ID)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestCancelPendingJob(t *testing.T) {
	h := newHarness(t,
		&stubInterpreter{text: plainText("Faktura")},
		&stubClassifier{docType: constants.DocumentTypeInvoice},
		pipeline.Extractors{Invoice: &stubInvoice{fields: &entity.InvoiceFields{}}},
	)
	ctx := context.Background()
	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{})
	require.NoError(t, err)
	require.NoError(t, h.orch.Cancel(ctx, job.ID))

	got, _ := h.jobs.GetByID(ctx, job.ID)
	assert.Equal(t, constants.JobStatusCancelled, got.Status)
	require.NotNil(t, got.FinishedAt)

	// cancelled is terminal: neither cancel again nor run
	assert.ErrorIs(t, h.orch.Cancel(ctx, job.ID), common.ErrInvalidState)
	assert.ErrorIs(t, h.orch.Run(ctx, job.ID), common.ErrInvalidState)
}

func TestCancelMidRunStopsWithoutResult(t *testing.T) {
	h := newHarness(t, nil, nil, pipeline.Extractors{})
	ctx := context.Background()
	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{})
	require.NoError(t, err)

	cls := &stubClassifier{
		docType: constants.DocumentTypeInvoice,
		after: func() {
			require.NoError(t, h.orch.Cancel(ctx, job.ID))
		},
	}
	orch := pipeline.NewOrchestrator(h.docs, h.jobs, h.results,
		&stubInterpreter{text: plainText("Faktura")}, cls,
		pipeline.Extractors{Invoice: &stubInvoice{fields: &entity.InvoiceFields{}}}, nil)

	require.NoError(t, orch.Run(ctx, job.ID))

	got, _ := h.jobs.GetByID(ctx, job.ID)
	assert.Equal(t, constants.JobStatusCancelled, got.Status)
	_, err = h.results.FindByJobID(ctx, job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRunForcedOCRUsesOCRPath(t *testing.T) {
	ocrText := &entity.InterpretedText{RawText: "Faktura", OCRUsed: true, ExtractorUsed: "ocr", Metadata: map[string]any{}}
	h := newHarness(t,
		&stubInterpreter{text: plainText("unused"), ocrText: ocrText},
		&stubClassifier{docType: constants.DocumentTypeInvoice},
		pipeline.Extractors{Invoice: &stubInvoice{fields: &entity.InvoiceFields{}}},
	)
	ctx := context.Background()
	job, err := h.orch.Submit(ctx, h.doc.ID, entity.JobOptions{UseOCR: true})
	require.NoError(t, err)
	require.NoError(t, h.orch.Run(ctx, job.ID))

	res, err := h.results.FindByJobID(ctx, job.ID)
	require.NoError(t, err)
	assert.Contains(t, res.ExtractionMethods, "ocr")
}
