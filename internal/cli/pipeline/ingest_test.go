package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/pdfrag/internal/domain"
	"github.com/cloo-solutions/pdfrag/internal/storage"
)

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, sourceID, fullText string) (int, error) {
	args := m.Called(ctx, sourceID, fullText)
	return args.Int(0), args.Error(1)
}

type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) PutDocument(ctx context.Context, sourceID string, data []byte) (string, error) {
	args := m.Called(ctx, sourceID, data)
	return args.String(0), args.Error(1)
}

func (m *MockArchiver) GetDocument(ctx context.Context, key string) (*storage.Document, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Document), args.Error(1)
}

func TestSourceIDFor(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		explicit string
		expected string
	}{
		{"base name", "/data/reports/q3.pdf", "", "q3.pdf"},
		{"relative path", "docs/manual.pdf", "", "manual.pdf"},
		{"explicit wins", "/data/q3.pdf", "quarterly-report", "quarterly-report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sourceIDFor(tt.path, tt.explicit))
		})
	}
}

const reportText = "Quarterly revenue grew.\nCosts were flat.\n\nOutlook remains stable."

func reportPath() string {
	return filepath.Join("testdata", "report.pdf")
}

func TestIngestFile_Success(t *testing.T) {
	ctx := context.Background()
	svc := new(MockIngester)
	svc.On("Ingest", ctx, "report.pdf", reportText).Return(1, nil)

	result, err := ingestFile(ctx, svc, nil, reportPath(), "", false)

	require.NoError(t, err)
	assert.Equal(t, IngestResult{SourceID: "report.pdf", Ingested: 1}, result)
	svc.AssertExpectations(t)
}

func TestIngestFile_Archive(t *testing.T) {
	ctx := context.Background()
	raw, err := os.ReadFile(reportPath())
	require.NoError(t, err)

	svc := new(MockIngester)
	docs := new(MockArchiver)
	svc.On("Ingest", ctx, "q3-report", reportText).Return(1, nil)
	docs.On("PutDocument", ctx, "q3-report", raw).Return("documents/abc/q3-report.pdf", nil)

	result, err := ingestFile(ctx, svc, docs, reportPath(), "q3-report", true)

	require.NoError(t, err)
	assert.Equal(t, "q3-report", result.SourceID)
	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, "documents/abc/q3-report.pdf", result.ArchiveKey)
	svc.AssertExpectations(t)
	docs.AssertExpectations(t)
}

func TestIngestFile_IngestFailureSkipsArchive(t *testing.T) {
	svc := new(MockIngester)
	docs := new(MockArchiver)
	svc.On("Ingest", mock.Anything, "report.pdf", reportText).Return(0, errors.New("embedding service down"))

	_, err := ingestFile(context.Background(), svc, docs, reportPath(), "", true)

	assert.EqualError(t, err, "embedding service down")
	docs.AssertNotCalled(t, "PutDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestFile_ArchiveError(t *testing.T) {
	svc := new(MockIngester)
	docs := new(MockArchiver)
	svc.On("Ingest", mock.Anything, "report.pdf", reportText).Return(1, nil)
	docs.On("PutDocument", mock.Anything, "report.pdf", mock.Anything).Return("", errors.New("bucket missing"))

	_, err := ingestFile(context.Background(), svc, docs, reportPath(), "", true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive report.pdf")
	assert.Contains(t, err.Error(), "bucket missing")
}

func TestIngestArchived_Success(t *testing.T) {
	ctx := context.Background()
	raw, err := os.ReadFile(reportPath())
	require.NoError(t, err)

	tests := []struct {
		name       string
		explicitID string
		expectedID string
	}{
		{"source id from metadata", "", "reports/q3.pdf"},
		{"explicit source id", "q3-override", "q3-override"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockIngester)
			docs := new(MockArchiver)
			docs.On("GetDocument", ctx, "documents/abc/q3.pdf").
				Return(&storage.Document{Key: "documents/abc/q3.pdf", SourceID: "reports/q3.pdf", Data: raw}, nil)
			svc.On("Ingest", ctx, tt.expectedID, reportText).Return(1, nil)

			result, err := ingestArchived(ctx, svc, docs, "documents/abc/q3.pdf", tt.explicitID)

			require.NoError(t, err)
			assert.Equal(t, IngestResult{SourceID: tt.expectedID, Ingested: 1, ArchiveKey: "documents/abc/q3.pdf"}, result)
			svc.AssertExpectations(t)
			docs.AssertExpectations(t)
		})
	}
}

func TestIngestFile_MissingFile(t *testing.T) {
	svc := new(MockIngester)

	_, err := ingestFile(context.Background(), svc, nil, filepath.Join(t.TempDir(), "missing.pdf"), "", false)

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestFile_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
	svc := new(MockIngester)
	docs := new(MockArchiver)

	_, err := ingestFile(context.Background(), svc, docs, path, "", true)

	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
	docs.AssertNotCalled(t, "PutDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestArchived_GetError(t *testing.T) {
	svc := new(MockIngester)
	docs := new(MockArchiver)
	docs.On("GetDocument", mock.Anything, "documents/q3.pdf").Return(nil, errors.New("no such key"))

	_, err := ingestArchived(context.Background(), svc, docs, "documents/q3.pdf", "")

	assert.EqualError(t, err, "no such key")
	svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestArchived_InvalidDocument(t *testing.T) {
	svc := new(MockIngester)
	docs := new(MockArchiver)
	docs.On("GetDocument", mock.Anything, "documents/q3.pdf").
		Return(&storage.Document{Key: "documents/q3.pdf", SourceID: "q3.pdf", Data: []byte("garbage")}, nil)

	_, err := ingestArchived(context.Background(), svc, docs, "documents/q3.pdf", "")

	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Contains(t, err.Error(), "documents/q3.pdf")
}

func TestPrintIngestResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	results := []IngestResult{
		{SourceID: "a.pdf", Ingested: 3},
		{SourceID: "b.pdf", Ingested: 0, ArchiveKey: "documents/b.pdf"},
	}

	require.NoError(t, printIngestResults(&buf, results, true))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "a.pdf", decoded[0]["source_id"])
	assert.Equal(t, float64(3), decoded[0]["ingested"])
	assert.NotContains(t, decoded[0], "archive_key")
	assert.Equal(t, "documents/b.pdf", decoded[1]["archive_key"])
}

func TestPrintIngestResults_Text(t *testing.T) {
	var buf bytes.Buffer
	results := []IngestResult{
		{SourceID: "a.pdf", Ingested: 3, ArchiveKey: "documents/a.pdf"},
		{SourceID: "scan.pdf", Ingested: 0},
	}

	require.NoError(t, printIngestResults(&buf, results, false))

	out := buf.String()
	assert.Contains(t, out, "a.pdf: ingested 3 chunks")
	assert.Contains(t, out, "Archive: documents/a.pdf")
	assert.Contains(t, out, "scan.pdf: no text extracted")
}
