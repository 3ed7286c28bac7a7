package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Statements are kept to the SQL subset both SQLite and PostgreSQL accept.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		file_path   TEXT    NOT NULL,
		is_pdf      BOOLEAN NOT NULL,
		uploaded_at TEXT    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS interpretation_jobs (
		id            TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL REFERENCES documents(id),
		status        TEXT NOT NULL,
		document_type TEXT NOT NULL DEFAULT 'UNKNOWN',
		options       TEXT NOT NULL DEFAULT '{}',
		error_message TEXT,
		created_at    TEXT NOT NULL,
		started_at    TEXT,
		finished_at   TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS interpretation_results (
		id             TEXT PRIMARY KEY,
		document_id    TEXT NOT NULL REFERENCES documents(id),
		job_id         TEXT NOT NULL UNIQUE REFERENCES interpretation_jobs(id),
		document_type  TEXT NOT NULL,
		interpreted_at TEXT NOT NULL,
		payload        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_document_id ON interpretation_jobs(document_id)`,
	`CREATE INDEX IF NOT EXISTS idx_results_document_id ON interpretation_results(document_id)`,
}

// Migrate applies the schema idempotently.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
