package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded file for data transfer between layers.
// Immutable once registered.
type Document struct {
	ID         uuid.UUID `json:"id"`
	FilePath   string    `json:"file_path"`
	IsPDF      bool      `json:"is_pdf"`
	UploadedAt time.Time `json:"uploaded_at"`
}
