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

type JobRepository interface {
	Create(ctx context.Context, job *entity.InterpretationJob) error
	Update(ctx context.Context, job *entity.InterpretationJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.InterpretationJob, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.InterpretationJob, error)
}

type jobRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewJobRepository(db *sql.DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

func (r *jobRepo) Create(ctx context.Context, job *entity.InterpretationJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	if job.DocumentType == "" {
		job.DocumentType = constants.DocumentTypeUnknown
	}
	opts, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("encode job options: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO interpretation_jobs
			(id, document_id, status, document_type, options, error_message, created_at, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID.String(), job.DocumentID.String(), string(job.Status), string(job.DocumentType),
		string(opts), nullString(job.ErrorMessage), encodeTime(job.CreatedAt),
		encodeNullTime(job.StartedAt), encodeNullTime(job.FinishedAt))
	if err != nil {
		r.log.Error("job create failed", "document_id", job.DocumentID, "err", err)
		return fmt.Errorf("create job: %w", err)
	}
	r.log.Info("job created", "job_id", job.ID, "document_id", job.DocumentID, "status", job.Status)
	return nil
}

func (r *jobRepo) Update(ctx context.Context, job *entity.InterpretationJob) error {
	opts, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("encode job options: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE interpretation_jobs
		 SET status = $1, document_type = $2, options = $3, error_message = $4,
		     started_at = $5, finished_at = $6
		 WHERE id = $7`,
		string(job.Status), string(job.DocumentType), string(opts), nullString(job.ErrorMessage),
		encodeNullTime(job.StartedAt), encodeNullTime(job.FinishedAt), job.ID.String())
	if err != nil {
		r.log.Error("job update failed", "job_id", job.ID, "err", err)
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundError("job", job.ID.String())
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.InterpretationJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, document_id, status, document_type, options, error_message, created_at, started_at, finished_at
		 FROM interpretation_jobs WHERE id = $1`, id.String())
	job, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("job", id.String())
	}
	return job, err
}

func (r *jobRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.InterpretationJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, document_id, status, document_type, options, error_message, created_at, started_at, finished_at
		 FROM interpretation_jobs WHERE document_id = $1 ORDER BY created_at`, documentID.String())
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.InterpretationJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scan func(dest ...any) error) (*entity.InterpretationJob, error) {
	var (
		job                  entity.InterpretationJob
		id, docID, createdAt string
		status, docType      string
		opts                 string
		errMsg               sql.NullString
		startedAt, finished  sql.NullString
	)
	if err := scan(&id, &docID, &status, &docType, &opts, &errMsg, &createdAt, &startedAt, &finished); err != nil {
		return nil, err
	}
	var err error
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	if job.DocumentID, err = uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("parse document id: %w", err)
	}
	job.Status = constants.JobStatus(status)
	job.DocumentType = constants.DocumentType(docType)
	if err = json.Unmarshal([]byte(opts), &job.Options); err != nil {
		return nil, fmt.Errorf("decode job options: %w", err)
	}
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	if job.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if job.StartedAt, err = decodeNullTime(startedAt); err != nil {
		return nil, err
	}
	if job.FinishedAt, err = decodeNullTime(finished); err != nil {
		return nil, err
	}
	return &job, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func encodeNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
