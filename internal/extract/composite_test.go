package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mskarstad/dokutolk/internal/common"
	"github.com/mskarstad/dokutolk/internal/entity"
	"github.com/mskarstad/dokutolk/internal/ocr"
)

type stubExtractor struct {
	name  string
	res   ocr.Result
	err   error
	calls int
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(context.Context, string) (ocr.Result, error) {
	s.calls++
	return s.res, s.err
}

func pdfDoc() *entity.Document {
	return &entity.Document{ID: uuid.New(), FilePath: "/tmp/doc.pdf", IsPDF: true}
}

// goodText builds text that clears every sufficiency threshold.
func goodText(lines int) string {
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "line %02d with plenty of readable words\n", i)
	}
	return b.String()
}

func TestCompositeFastSufficientSkipsOCR(t *testing.T) {
	fast := &stubExtractor{name: "pdf-text", res: ocr.Result{Text: goodText(20), Pages: 1, Method: "pdf-text"}}
	ocrx := &stubExtractor{name: "ocr"}
	c := NewComposite(fast, ocrx, nil)

	it, err := c.Extract(context.Background(), pdfDoc())
	require.NoError(t, err)
	assert.Equal(t, "fast", it.ExtractorUsed)
	assert.False(t, it.OCRUsed)
	assert.Equal(t, 0, ocrx.calls, "OCR must not run when fast output is sufficient")
	assert.Len(t, it.Lines, 20)
}

func TestCompositeShortFastTriggersOCR(t *testing.T) {
	// 50 chars across 2 lines: below both the char and line minimums
	fast := &stubExtractor{name: "pdf-text", res: ocr.Result{Text: "short line one here\nand short line two ab\n", Pages: 1, Method: "pdf-text"}}
	ocrx := &stubExtractor{name: "ocr", res: ocr.Result{Text: goodText(12), Pages: 1, Method: "pdf-ocr", Language: "nor"}}
	c := NewComposite(fast, ocrx, nil)

	it, err := c.Extract(context.Background(), pdfDoc())
	require.NoError(t, err)
	assert.Equal(t, "ocr", it.ExtractorUsed)
	assert.True(t, it.OCRUsed)
	assert.Equal(t, 1, ocrx.calls)
	assert.Equal(t, true, it.Metadata["fastAttempted"])
}

func TestCompositeNonPDFGoesStraightToOCR(t *testing.T) {
	fast := &stubExtractor{name: "pdf-text"}
	ocrx := &stubExtractor{name: "ocr", res: ocr.Result{Text: goodText(8), Pages: 1, Method: "image-ocr"}}
	c := NewComposite(fast, ocrx, nil)

	doc := &entity.Document{ID: uuid.New(), FilePath: "/tmp/scan.jpg", IsPDF: false}
	it, err := c.Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 0, fast.calls)
	assert.True(t, it.OCRUsed)
}

func TestCompositeDegradedFallback(t *testing.T) {
	fast := &stubExtractor{name: "pdf-text", res: ocr.Result{Text: "almost nothing", Pages: 1, Method: "pdf-text"}}
	ocrx := &stubExtractor{name: "ocr", err: fmt.Errorf("tesseract: exit status 1")}
	c := NewComposite(fast, ocrx, nil)

	it, err := c.Extract(context.Background(), pdfDoc())
	require.NoError(t, err, "a poor fast result must be returned instead of failing")
	assert.Equal(t, "degraded", it.ExtractorUsed)
	assert.Equal(t, true, it.Metadata["poorQuality"])
}

func TestCompositeFatalWhenNothingUsable(t *testing.T) {
	fast := &stubExtractor{name: "pdf-text", err: fmt.Errorf("pdftotext: exit status 1")}
	ocrx := &stubExtractor{name: "ocr", err: fmt.Errorf("tesseract: exit status 1")}
	c := NewComposite(fast, ocrx, nil)

	_, err := c.Extract(context.Background(), pdfDoc())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)
}

func TestSufficient(t *testing.T) {
	t.Run("500 chars 20 lines passes", func(t *testing.T) {
		assert.True(t, Sufficient(goodText(20)))
	})
	t.Run("50 chars 2 lines fails", func(t *testing.T) {
		assert.False(t, Sufficient("short line one here\nand short line two ab"))
	})
	t.Run("low alnum ratio fails", func(t *testing.T) {
		junk := strings.Repeat("].,;#%&/()=?*^:_-<>|\n", 30)
		assert.False(t, Sufficient(junk))
	})
	t.Run("short average lines fail", func(t *testing.T) {
		assert.False(t, Sufficient(strings.Repeat("abcd efg\n", 30)))
	})
}

func TestCompositeForcedOCRSkipsFastPath(t *testing.T) {
	fast := &stubExtractor{name: "pdf-text", res: ocr.Result{Text: goodText(20), Pages: 1, Method: "pdf-text"}}
	ocrx := &stubExtractor{name: "ocr", res: ocr.Result{Text: goodText(10), Pages: 2, Method: "pdf-ocr"}}
	c := NewComposite(fast, ocrx, nil)

	it, err := c.ExtractOCR(context.Background(), pdfDoc())
	require.NoError(t, err)
	assert.Equal(t, "ocr", it.ExtractorUsed)
	assert.True(t, it.OCRUsed)
	assert.Equal(t, 0, fast.calls, "fast path must not run when OCR is forced")
	assert.Equal(t, true, it.Metadata["forced"])
}

func TestCompositeForcedOCRFailureIsFatal(t *testing.T) {
	fast := &stubExtractor{name: "pdf-text", res: ocr.Result{Text: goodText(20)}}
	ocrx := &stubExtractor{name: "ocr", err: fmt.Errorf("tesseract missing")}
	c := NewComposite(fast, ocrx, nil)

	_, err := c.ExtractOCR(context.Background(), pdfDoc())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)
}
