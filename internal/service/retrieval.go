package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/pdfrag/internal/domain"
	"github.com/cloo-solutions/pdfrag/internal/telemetry"
)

// DefaultTopK is the number of contexts returned when the caller does not ask for a count.
const DefaultTopK = 5

// Embedder defines the interface for turning texts into vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore defines the interface for a vector index holding chunk embeddings
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []domain.Payload) error
	Search(ctx context.Context, vector []float32, topK int, sourceFilter string) (*domain.RetrievalResult, error)
}

// Answerer defines the interface for answering a question from retrieved contexts
type Answerer interface {
	GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error)
}

type RetrievalConfig struct {
	Chunk      ChunkConfig
	TopK       int
	Collection string
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Chunk: DefaultChunkConfig(),
		TopK:  DefaultTopK,
	}
}

// RetrievalService ingests document text into a vector store and retrieves
// the chunks most similar to a question.
type RetrievalService struct {
	embedder Embedder
	store    VectorStore
	answerer Answerer
	cfg      RetrievalConfig
}

// NewRetrievalService creates a RetrievalService with default chunking and top-k.
func NewRetrievalService(embedder Embedder, store VectorStore) *RetrievalService {
	return NewRetrievalServiceWithConfig(embedder, store, nil, DefaultRetrievalConfig())
}

func NewRetrievalServiceWithConfig(embedder Embedder, store VectorStore, answerer Answerer, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		answerer: answerer,
		cfg:      cfg,
	}
}

// ChunkID derives the record id of chunk index of a document. The same pair
// always yields the same id, so re-ingesting a document overwrites its records.
func ChunkID(sourceID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%d", sourceID, index))).String()
}

// Ingest chunks fullText, embeds the chunks and upserts them under sourceID.
// It returns the number of chunks stored.
func (s *RetrievalService) Ingest(ctx context.Context, sourceID, fullText string) (count int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "retrieval.ingest", telemetry.SpanAttributes{
		SourceID:   sourceID,
		Collection: s.cfg.Collection,
		Operation:  "ingest",
	})
	defer span.End()
	start := time.Now()
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.SetData("chunks", count)
		logOp("ingest", sourceID, count, start, err)
	}()

	if strings.TrimSpace(sourceID) == "" {
		return 0, domain.ErrEmptySourceID
	}

	chunks, err := chunkDocument(fullText, s.cfg.Chunk)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: %w", sourceID, err)
	}
	if len(chunks) == 0 {
		log.Printf("ingest: source=%s has no text, nothing stored", sourceID)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: %w", sourceID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("ingest %s: %w", sourceID, domain.NewServiceError("embed",
			fmt.Sprintf("got %d embeddings for %d chunks", len(vectors), len(chunks)), nil))
	}

	ids := make([]string, len(chunks))
	payloads := make([]domain.Payload, len(chunks))
	for i, c := range chunks {
		ids[i] = ChunkID(sourceID, c.Index)
		payloads[i] = domain.Payload{Source: sourceID, Text: c.Text}
	}

	if err := s.store.Upsert(ctx, ids, vectors, payloads); err != nil {
		return 0, fmt.Errorf("ingest %s: %w", sourceID, err)
	}

	return len(chunks), nil
}

// Query embeds question and returns the topK most similar chunks, optionally
// restricted to one source. topK <= 0 selects the configured default.
func (s *RetrievalService) Query(ctx context.Context, question string, topK int, sourceFilter string) (result *domain.RetrievalResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "retrieval.query", telemetry.SpanAttributes{
		SourceID:   sourceFilter,
		Collection: s.cfg.Collection,
		Operation:  "query",
	})
	defer span.End()
	start := time.Now()
	defer func() {
		hits := 0
		if result != nil {
			hits = result.Len()
		}
		if err != nil {
			span.SetError(err)
		}
		span.SetData("hits", hits)
		logOp("query", sourceFilter, hits, start, err)
	}()

	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("query: %w", domain.NewServiceError("embed",
			fmt.Sprintf("got %d embeddings for 1 question", len(vectors)), nil))
	}

	result, err = s.store.Search(ctx, vectors[0], topK, sourceFilter)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return result, nil
}

// Ask retrieves contexts for question and has the answerer respond from them.
// The answerer is called even when nothing was retrieved.
func (s *RetrievalService) Ask(ctx context.Context, question string, topK int, sourceFilter string) (answer *domain.Answer, err error) {
	ctx, span := telemetry.StartSpan(ctx, "retrieval.ask", telemetry.SpanAttributes{
		SourceID:   sourceFilter,
		Collection: s.cfg.Collection,
		Operation:  "ask",
	})
	defer span.End()
	start := time.Now()
	defer func() {
		n := 0
		if answer != nil {
			n = answer.NumContexts
		}
		if err != nil {
			span.SetError(err)
		}
		logOp("ask", sourceFilter, n, start, err)
	}()

	if s.answerer == nil {
		return nil, domain.NewConfigurationError("answer generation is not configured")
	}

	result, err := s.Query(ctx, question, topK, sourceFilter)
	if err != nil {
		return nil, err
	}

	text, err := s.answerer.GenerateAnswer(ctx, question, result.Contexts)
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}

	return &domain.Answer{
		Answer:      text,
		Sources:     result.Sources,
		NumContexts: result.Len(),
	}, nil
}
