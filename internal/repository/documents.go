package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	GetByPath(ctx context.Context, path string) (*entity.Document, error)
}

type documentRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewDocumentRepository(db *sql.DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepo{db: db, log: log}
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, file_path, is_pdf, uploaded_at) VALUES ($1, $2, $3, $4)`,
		doc.ID.String(), doc.FilePath, doc.IsPDF, encodeTime(doc.UploadedAt))
	if err != nil {
		r.log.Error("document create failed", "file_path", doc.FilePath, "err", err)
		return fmt.Errorf("create document: %w", err)
	}
	r.log.Info("document registered", "document_id", doc.ID, "file_path", doc.FilePath)
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, file_path, is_pdf, uploaded_at FROM documents WHERE id = $1`, id.String())
	return scanDocument(row, id.String())
}

func (r *documentRepo) GetByPath(ctx context.Context, path string) (*entity.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, file_path, is_pdf, uploaded_at FROM documents WHERE file_path = $1`, path)
	return scanDocument(row, path)
}

func scanDocument(row *sql.Row, key string) (*entity.Document, error) {
	var (
		doc      entity.Document
		id, upAt string
	)
	if err := row.Scan(&id, &doc.FilePath, &doc.IsPDF, &upAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundError("document", key)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	var err error
	if doc.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse document id: %w", err)
	}
	if doc.UploadedAt, err = decodeTime(upAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
