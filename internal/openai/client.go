package openai

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

const (
	// DefaultEmbeddingModel is the model used for chunk and question embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the vector size of every collection created by default
	DefaultEmbeddingDimensions = 1536
	// DefaultMaxBatchInputs caps the number of inputs per embeddings request
	DefaultMaxBatchInputs = 256
	// DefaultMaxBatchTokens caps the summed token count per embeddings request
	DefaultMaxBatchTokens = 250000
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([]openai.Embedding, error)
}

type OpenAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIAdapter(client *openai.Client, model openai.EmbeddingModel, dimensions int) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client:     client,
		model:      model,
		dimensions: dimensions,
	}
}

// CreateEmbeddings sends one embeddings request for all texts.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([]openai.Embedding, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	}
	// Only the text-embedding-3 family accepts a dimensions parameter.
	if strings.HasPrefix(string(a.model), "text-embedding-3") && a.dimensions > 0 {
		req.Dimensions = a.dimensions
	}

	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	MaxBatchInputs      int
	MaxBatchTokens      int
	ChatModel           string
}

func (c Config) withDefaults() Config {
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if c.MaxBatchInputs <= 0 {
		c.MaxBatchInputs = DefaultMaxBatchInputs
	}
	if c.MaxBatchTokens <= 0 {
		c.MaxBatchTokens = DefaultMaxBatchTokens
	}
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	return c
}

// NewAPIClient builds a go-openai client, honouring a custom base URL for
// OpenAI-compatible gateways.
func NewAPIClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// Embedder turns texts into vectors of a fixed dimension.
type Embedder struct {
	api        EmbeddingAPI
	tokens     TokenCounter
	dimensions int
	maxInputs  int
	maxTokens  int
}

// NewEmbedder creates an Embedder backed by the OpenAI embeddings endpoint.
func NewEmbedder(cfg Config) *Embedder {
	cfg = cfg.withDefaults()
	api := NewOpenAIAdapter(NewAPIClient(cfg), cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	return NewEmbedderWithAPI(api, NewTokenCounter(), cfg)
}

// NewEmbedderWithAPI creates an Embedder over an arbitrary EmbeddingAPI.
func NewEmbedderWithAPI(api EmbeddingAPI, tokens TokenCounter, cfg Config) *Embedder {
	cfg = cfg.withDefaults()
	if tokens == nil {
		tokens = estimateCounter{}
	}
	return &Embedder{
		api:        api,
		tokens:     tokens,
		dimensions: cfg.EmbeddingDimensions,
		maxInputs:  cfg.MaxBatchInputs,
		maxTokens:  cfg.MaxBatchTokens,
	}
}

// Dimensions returns the vector size every embedding is checked against.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed returns one vector per input, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	batches := e.batches(texts)
	for _, b := range batches {
		out, err := e.embedBatch(ctx, texts[b.start:b.end], b.start)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, out...)
	}

	if len(batches) > 1 {
		log.Printf("embed: %d texts in %d requests", len(texts), len(batches))
	}
	return vectors, nil
}

type batchRange struct {
	start, end int
}

// batches splits texts so that no request exceeds the input or token budget.
// A single text over the token budget still gets its own request.
func (e *Embedder) batches(texts []string) []batchRange {
	var out []batchRange
	start, tokens := 0, 0
	for i, t := range texts {
		n := e.tokens.CountTokens(t)
		if i > start && (i-start >= e.maxInputs || tokens+n > e.maxTokens) {
			out = append(out, batchRange{start: start, end: i})
			start, tokens = i, 0
		}
		tokens += n
	}
	return append(out, batchRange{start: start, end: len(texts)})
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string, offset int) ([][]float32, error) {
	data, err := e.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, domain.NewServiceError("embed", fmt.Sprintf("request for batch at offset %d failed", offset), err)
	}
	if len(data) != len(texts) {
		return nil, domain.NewServiceError("embed",
			fmt.Sprintf("malformed response for batch at offset %d: got %d embeddings for %d inputs", offset, len(data), len(texts)), nil)
	}

	out := make([][]float32, len(texts))
	for _, d := range data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, domain.NewServiceError("embed",
				fmt.Sprintf("malformed response for batch at offset %d: unexpected index %d", offset, d.Index), nil)
		}
		if len(d.Embedding) != e.dimensions {
			return nil, domain.NewServiceError("embed",
				fmt.Sprintf("malformed response for batch at offset %d: embedding %d has %d dimensions, expected %d",
					offset, d.Index, len(d.Embedding), e.dimensions), nil)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
