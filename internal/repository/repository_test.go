package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mskarstad/dokutolk/constants"
	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := repository.Open(context.Background(), repository.Config{DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDocumentRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := repository.NewDocumentRepository(db, nil)
	ctx := context.Background()

	doc := &entity.Document{FilePath: "/data/faktura_2024.pdf", IsPDF: true}
	require.NoError(t, repo.Create(ctx, doc))
	require.NotEqual(t, uuid.Nil, doc.ID)
	require.False(t, doc.UploadedAt.IsZero())

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.FilePath, got.FilePath)
	assert.True(t, got.IsPDF)
	assert.WithinDuration(t, doc.UploadedAt, got.UploadedAt, time.Second)

	byPath, err := repo.GetByPath(ctx, doc.FilePath)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byPath.ID)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestJobLifecyclePersistence(t *testing.T) {
	db := openTestDB(t)
	docs := repository.NewDocumentRepository(db, nil)
	jobs := repository.NewJobRepository(db, nil)
	ctx := context.Background()

	doc := &entity.Document{FilePath: "/data/kontoutskrift.pdf", IsPDF: true}
	require.NoError(t, docs.Create(ctx, doc))

	job := &entity.InterpretationJob{
		DocumentID: doc.ID,
		Options:    entity.JobOptions{UseOCR: true, LanguageHint: "nor"},
	}
	require.NoError(t, jobs.Create(ctx, job))
	assert.Equal(t, constants.JobStatusPending, job.Status)

	started := time.Now().UTC()
	job.Status = constants.JobStatusRunning
	job.StartedAt = &started
	job.DocumentType = constants.DocumentTypeStatement
	require.NoError(t, jobs.Update(ctx, job))

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, got.Status)
	assert.Equal(t, constants.DocumentTypeStatement, got.DocumentType)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.Options.UseOCR)
	assert.Equal(t, "nor", got.Options.LanguageHint)
	assert.Nil(t, got.FinishedAt)

	listed, err := jobs.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	missing := &entity.InterpretationJob{ID: uuid.New()}
	assert.ErrorIs(t, jobs.Update(ctx, missing), common.ErrNotFound)
}

func TestResultSaveAndFind(t *testing.T) {
	db := openTestDB(t)
	docs := repository.NewDocumentRepository(db, nil)
	jobs := repository.NewJobRepository(db, nil)
	results := repository.NewResultRepository(db, nil)
	ctx := context.Background()

	doc := &entity.Document{FilePath: "/data/kvittering_45.pdf", IsPDF: true}
	require.NoError(t, docs.Create(ctx, doc))
	job := &entity.InterpretationJob{DocumentID: doc.ID}
	require.NoError(t, jobs.Create(ctx, job))

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	res := &entity.InterpretationResult{
		DocumentID:        doc.ID,
		JobID:             job.ID,
		DocumentType:      constants.DocumentTypeReceipt,
		ExtractionMethods: []string{"fast", "SmallReceiptExtractor"},
		Confidence:        entity.FieldConfidence{"amount": 0.8},
		Invoice: &entity.InvoiceFields{
			Amount:   45.00,
			Currency: "NOK",
			Date:     &date,
			Sender:   "EasyPark",
		},
	}
	require.NoError(t, results.Save(ctx, res))

	got, err := results.FindByJobID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Invoice)
	assert.InDelta(t, 45.00, got.Invoice.Amount, 0.001)
	assert.Equal(t, "EasyPark", got.Invoice.Sender)
	assert.Equal(t, []string{"fast", "SmallReceiptExtractor"}, got.ExtractionMethods)
	assert.InDelta(t, 0.8, got.Confidence["amount"], 0.001)

	// saving again for the same job replaces, never duplicates
	res.Invoice.Amount = 46.00
	require.NoError(t, results.Save(ctx, res))
	again, err := results.FindByJobID(ctx, job.ID)
	require.NoError(t, err)
	assert.InDelta(t, 46.00, again.Invoice.Amount, 0.001)

	latest, err := results.FindLatestByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, latest.JobID)

	_, err = results.FindByJobID(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
