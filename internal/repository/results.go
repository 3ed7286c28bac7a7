package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mskarstad/dokutolk/constants"
	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/entity"
)

type ResultRepository interface {
	Save(ctx context.Context, res *entity.InterpretationResult) error
	FindByJobID(ctx context.Context, jobID uuid.UUID) (*entity.InterpretationResult, error)
	FindLatestByDocumentID(ctx context.Context, documentID uuid.UUID) (*entity.InterpretationResult, error)
	ListByDocumentID(ctx context.Context, documentID uuid.UUID) ([]*entity.InterpretationResult, error)
}

type resultRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewResultRepository(db *sql.DB, log *slog.Logger) ResultRepository {
	if log == nil {
		log = slog.Default()
	}
	return &resultRepo{db: db, log: log}
}

// resultPayload is the JSON document stored per result row. Typed fields
// round-trip through it; querying happens on the indexed columns.
type resultPayload struct {
	ExtractionMethods []string                      `json:"extraction_methods"`
	Provenance        map[string]any                `json:"provenance,omitempty"`
	Confidence        entity.FieldConfidence        `json:"confidence,omitempty"`
	Invoice           *entity.InvoiceFields         `json:"invoice,omitempty"`
	Transactions      []entity.StatementTransaction `json:"transactions,omitempty"`
}

func (r *resultRepo) Save(ctx context.Context, res *entity.InterpretationResult) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.InterpretedAt.IsZero() {
		res.InterpretedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(resultPayload{
		ExtractionMethods: res.ExtractionMethods,
		Provenance:        res.Provenance,
		Confidence:        res.Confidence,
		Invoice:           res.Invoice,
		Transactions:      res.Transactions,
	})
	if err != nil {
		return fmt.Errorf("encode result payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO interpretation_results (id, document_id, job_id, document_type, interpreted_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (job_id) DO UPDATE SET
			document_type = excluded.document_type,
			interpreted_at = excluded.interpreted_at,
			payload = excluded.payload`,
		res.ID.String(), res.DocumentID.String(), res.JobID.String(),
		string(res.DocumentType), encodeTime(res.InterpretedAt), string(payload))
	if err != nil {
		r.log.Error("result save failed", "job_id", res.JobID, "err", err)
		return fmt.Errorf("save result: %w", err)
	}
	r.log.Info("result saved", "result_id", res.ID, "job_id", res.JobID, "document_type", res.DocumentType)
	return nil
}

func (r *resultRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) (*entity.InterpretationResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, document_id, job_id, document_type, interpreted_at, payload
		 FROM interpretation_results WHERE job_id = $1`, jobID.String())
	res, err := scanResult(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("result", jobID.String())
	}
	return res, err
}

func (r *resultRepo) FindLatestByDocumentID(ctx context.Context, documentID uuid.UUID) (*entity.InterpretationResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, document_id, job_id, document_type, interpreted_at, payload
		 FROM interpretation_results WHERE document_id = $1
		 ORDER BY interpreted_at DESC LIMIT 1`, documentID.String())
	res, err := scanResult(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("result", documentID.String())
	}
	return res, err
}

func (r *resultRepo) ListByDocumentID(ctx context.Context, documentID uuid.UUID) ([]*entity.InterpretationResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, document_id, job_id, document_type, interpreted_at, payload
		 FROM interpretation_results WHERE document_id = $1 ORDER BY interpreted_at`, documentID.String())
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []*entity.InterpretationResult
	for rows.Next() {
		res, err := scanResult(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanResult(scan func(dest ...any) error) (*entity.InterpretationResult, error) {
	var (
		res                       entity.InterpretationResult
		id, docID, jobID          string
		docType, intAt, payloadJS string
	)
	if err := scan(&id, &docID, &jobID, &docType, &intAt, &payloadJS); err != nil {
		return nil, err
	}
	var err error
	if res.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse result id: %w", err)
	}
	if res.DocumentID, err = uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("parse document id: %w", err)
	}
	if res.JobID, err = uuid.Parse(jobID); err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	res.DocumentType = constants.DocumentType(docType)
	if res.InterpretedAt, err = decodeTime(intAt); err != nil {
		return nil, err
	}
	var payload resultPayload
	if err = json.Unmarshal([]byte(payloadJS), &payload); err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}
	res.ExtractionMethods = payload.ExtractionMethods
	res.Provenance = payload.Provenance
	res.Confidence = payload.Confidence
	res.Invoice = payload.Invoice
	res.Transactions = payload.Transactions
	return &res, nil
}
