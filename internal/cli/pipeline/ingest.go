package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/pdfrag/internal/extract"
	"github.com/cloo-solutions/pdfrag/internal/storage"
	"github.com/cloo-solutions/pdfrag/internal/telemetry"
)

type ingester interface {
	Ingest(ctx context.Context, sourceID, fullText string) (int, error)
}

type archiver interface {
	PutDocument(ctx context.Context, sourceID string, data []byte) (string, error)
	GetDocument(ctx context.Context, key string) (*storage.Document, error)
}

// IngestResult reports how many chunks were stored for one document.
type IngestResult struct {
	SourceID   string `json:"source_id"`
	Ingested   int    `json:"ingested"`
	ArchiveKey string `json:"archive_key,omitempty"`
}

func IngestCmd() *cobra.Command {
	var (
		sourceID string
		archive  bool
		s3Keys   []string
	)

	cmd := &cobra.Command{
		Use:   "ingest [pdf...]",
		Short: "Ingest PDF documents",
		Long: `Extracts text from each PDF, splits it into overlapping chunks, embeds the
chunks and upserts them into the vector store. Re-ingesting a document
overwrites its existing chunks.`,
		Example: `  pdfrag ingest reports/q3.pdf
  pdfrag ingest q3.pdf --source-id quarterly-q3 --archive
  pdfrag ingest --from-s3 documents/<id>/q3.pdf --output`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(s3Keys) == 0 {
				return fmt.Errorf("requires at least one PDF path or --from-s3 key")
			}
			if sourceID != "" && len(args)+len(s3Keys) > 1 {
				return fmt.Errorf("--source-id can only be used with a single document")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			ctx := commandContext(cmd)

			rt, err := newRuntime(ctx, runtimeOptions{archive: archive || len(s3Keys) > 0})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, span := startCommand(ctx, "ingest")
			defer span.End()

			var docs archiver
			if rt.Archive != nil {
				if err := rt.Archive.EnsureBucket(ctx); err != nil {
					return err
				}
				docs = rt.Archive
			}

			results := make([]IngestResult, 0, len(args)+len(s3Keys))
			for _, path := range args {
				res, err := ingestFile(ctx, rt.Retrieval, docs, path, sourceID, archive)
				if err != nil {
					return err
				}
				results = append(results, res)
			}
			for _, key := range s3Keys {
				res, err := ingestArchived(ctx, rt.Retrieval, docs, key, sourceID)
				if err != nil {
					return err
				}
				results = append(results, res)
			}

			return printIngestResults(os.Stdout, results, outputJSON)
		},
	}

	cmd.Flags().StringVar(&sourceID, "source-id", "", "Source id for the document (defaults to the file name)")
	cmd.Flags().BoolVar(&archive, "archive", false, "Upload the PDF to the S3 document archive after it is indexed")
	cmd.Flags().StringSliceVar(&s3Keys, "from-s3", nil, "Ingest an archived PDF by object key")

	return cmd
}

// sourceIDFor returns the explicit source id or the file's base name.
func sourceIDFor(path, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Base(path)
}

func ingestFile(ctx context.Context, svc ingester, docs archiver, path, explicitID string, archive bool) (IngestResult, error) {
	text, data, err := extract.PDFFile(path)
	if err != nil {
		return IngestResult{}, err
	}

	result := IngestResult{SourceID: sourceIDFor(path, explicitID)}
	result.Ingested, err = svc.Ingest(ctx, result.SourceID, text)
	if err != nil {
		return IngestResult{}, err
	}

	// Archive only documents that made it into the index.
	if archive && docs != nil {
		key, err := docs.PutDocument(ctx, result.SourceID, data)
		if err != nil {
			return IngestResult{}, fmt.Errorf("archive %s: %w", result.SourceID, err)
		}
		result.ArchiveKey = key
		telemetry.AddBreadcrumb(ctx, "archive", "stored "+key)
	}
	return result, nil
}

func ingestArchived(ctx context.Context, svc ingester, docs archiver, key, explicitID string) (IngestResult, error) {
	doc, err := docs.GetDocument(ctx, key)
	if err != nil {
		return IngestResult{}, err
	}
	telemetry.AddBreadcrumb(ctx, "archive", "fetched "+key)
	text, err := extract.PDFText(doc.Data)
	if err != nil {
		return IngestResult{}, fmt.Errorf("extract %s: %w", key, err)
	}

	result := IngestResult{SourceID: doc.SourceID, ArchiveKey: key}
	if explicitID != "" {
		result.SourceID = explicitID
	}
	result.Ingested, err = svc.Ingest(ctx, result.SourceID, text)
	if err != nil {
		return IngestResult{}, err
	}
	return result, nil
}

func printIngestResults(w io.Writer, results []IngestResult, outputJSON bool) error {
	if outputJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		_, err := fmt.Fprintln(w, string(output))
		return err
	}

	for _, res := range results {
		if res.Ingested == 0 {
			fmt.Fprintf(w, "%s: no text extracted, nothing ingested\n", res.SourceID)
			continue
		}
		fmt.Fprintf(w, "%s: ingested %d chunks\n", res.SourceID, res.Ingested)
		if res.ArchiveKey != "" {
			fmt.Fprintf(w, "  Archive: %s\n", res.ArchiveKey)
		}
	}
	return nil
}
