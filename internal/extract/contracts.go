package extract

import (
	"context"

	"github.com/mskarstad/dokutolk/internal/ocr"
)

// TextExtractor is one extraction strategy: file -> raw text.
type TextExtractor interface {
	Name() string
	Extract(ctx context.Context, path string) (ocr.Result, error)
}

// Sufficiency thresholds for judging fast-extraction output. Below any of
// these the text layer is considered unusable and OCR runs instead.
const (
	MinChars        = 100
	MinLines        = 5
	MinCharsPerLine = 10.0
	MinAlnumRatio   = 0.5
)
