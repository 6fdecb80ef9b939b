package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

func TestJoinPages(t *testing.T) {
	tests := []struct {
		name     string
		pages    []string
		expected string
	}{
		{"no pages", nil, ""},
		{"single page", []string{"Page one."}, "Page one."},
		{"blank pages skipped", []string{"First.", "   \n", "", "Third.\n"}, "First.\n\nThird.\n"},
		{"all blank", []string{" ", "\n\t"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinPages(tt.pages))
		})
	}
}

// testdata/report.pdf has three pages: two lines of text, an empty page, one line.
const reportText = "Quarterly revenue grew.\nCosts were flat.\n\nOutlook remains stable."

func TestPDFText_Report(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "report.pdf"))
	require.NoError(t, err)

	text, err := PDFText(data)

	require.NoError(t, err)
	assert.Equal(t, reportText, text)
}

func TestPageTexts_KeepsBlankPages(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "report.pdf"))
	require.NoError(t, err)

	pages, err := pageTexts(data)

	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "Quarterly revenue grew.\nCosts were flat.", pages[0])
	assert.Empty(t, pages[1])
	assert.Equal(t, "Outlook remains stable.", pages[2])
}

func TestPDFFile_Report(t *testing.T) {
	path := filepath.Join("testdata", "report.pdf")

	text, data, err := PDFFile(path)

	require.NoError(t, err)
	assert.Equal(t, reportText, text)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestPDFText_InvalidData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("this is definitely not a pdf file")},
		{"truncated header", []byte("%PDF-1.4\n1 0 obj\n<<")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := PDFText(tt.data)

			assert.Empty(t, text)
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))
		})
	}
}

func TestPDFFile_Missing(t *testing.T) {
	_, _, err := PDFFile(filepath.Join(t.TempDir(), "missing.pdf"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPDFFile_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, _, err := PDFFile(path)

	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Contains(t, err.Error(), path)
}
