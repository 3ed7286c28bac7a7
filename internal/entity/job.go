package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/mskarstad/dokutolk/constants"
)

// JobOptions carries caller intent for a single interpretation run.
// Strategy selection is static per job: no escalation between variants mid-run.
type JobOptions struct {
	UseOCR       bool                   `json:"use_ocr"`
	UseAI        bool                   `json:"use_ai"`
	LanguageHint string                 `json:"language_hint,omitempty"`
	HintedType   constants.DocumentType `json:"hinted_type,omitempty"`
}

// InterpretationJob represents one interpretation run for data transfer between layers.
// Only the orchestrator mutates a job; terminal statuses are frozen.
type InterpretationJob struct {
	ID           uuid.UUID              `json:"id"`
	DocumentID   uuid.UUID              `json:"document_id"`
	Status       constants.JobStatus    `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	FinishedAt   *time.Time             `json:"finished_at,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	DocumentType constants.DocumentType `json:"document_type,omitempty"`
	Options      JobOptions             `json:"options"`
}
