package ocr

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner maps a command name to canned output or an error.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if err, ok := f.errs[name]; ok {
		return nil, []byte("boom"), err
	}
	return []byte(f.outputs[name]), nil, nil
}

func TestFastExtractorPageCount(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{
		"pdftotext": "Faktura 1234\nBeløp: 500,00\fside to\n",
	}}
	e := NewFastExtractor(Config{}, nil)
	e.runner = fr

	res, err := e.Extract(context.Background(), "/tmp/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Contains(t, res.Text, "Faktura 1234")
}

func TestFastExtractorCommandFailure(t *testing.T) {
	fr := &fakeRunner{errs: map[string]error{"pdftotext": fmt.Errorf("exit status 1")}}
	e := NewFastExtractor(Config{}, nil)
	e.runner = fr

	_, err := e.Extract(context.Background(), "/tmp/doc.pdf")
	assert.Error(t, err)
}

func TestImageExtractorSingleImage(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{
		"tesseract": "Kvittering\nTotalt 199,00 kr\n",
	}}
	e := NewImageExtractor(Config{}, nil)
	e.runner = fr

	res, err := e.Extract(context.Background(), "/tmp/scan.png")
	require.NoError(t, err)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.Contains(t, res.Text, "Totalt")
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		primary string
		want    string
	}{
		{"norwegian diacritics", "kjøp av brød og smør på Strøget, løpenummer åtte, dørsalg", "eng", "nor"},
		{"swedish diacritics", "köp av bröd och smör på gatan, löpnummer två, dörrförsäljning", "eng", "swe"},
		{"too few occurrences defaults to primary", "smør", "nor", "nor"},
		{"plain english defaults", "invoice total due date", "eng", "eng"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text, tt.primary))
		})
	}
}
