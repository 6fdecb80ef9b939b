// Package pipeline implements the pdfrag commands that drive ingestion and retrieval.
package pipeline

import (
	"context"
	"fmt"
	"log"

	openaisdk "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/pdfrag/internal/config"
	"github.com/cloo-solutions/pdfrag/internal/database"
	"github.com/cloo-solutions/pdfrag/internal/domain"
	"github.com/cloo-solutions/pdfrag/internal/openai"
	"github.com/cloo-solutions/pdfrag/internal/repository"
	"github.com/cloo-solutions/pdfrag/internal/service"
	"github.com/cloo-solutions/pdfrag/internal/storage"
	"github.com/cloo-solutions/pdfrag/internal/telemetry"
)

// Runtime holds the wired dependencies of one command invocation.
type Runtime struct {
	Config    *config.Config
	Retrieval *service.RetrievalService
	Archive   *storage.S3Client

	closers []func()
}

// Close releases pools and flushes telemetry in reverse order of creation.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

type runtimeOptions struct {
	answerer bool
	archive  bool
}

// newRuntime loads configuration and wires the retrieval service.
func newRuntime(ctx context.Context, opts runtimeOptions) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.HasOpenAI() {
		return nil, domain.NewConfigurationError("OPENAI_API_KEY is required")
	}

	rt := &Runtime{Config: cfg}
	rt.closers = append(rt.closers, initTelemetry(cfg))

	store, closeStore, err := newVectorStore(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)

	aiCfg := openAIConfig(cfg)
	var answerer service.Answerer
	if opts.answerer {
		answerer = openai.NewAnswerer(aiCfg)
	}
	rt.Retrieval = service.NewRetrievalServiceWithConfig(openai.NewEmbedder(aiCfg), store, answerer, retrievalConfig(cfg))

	if opts.archive {
		if !cfg.HasS3() {
			rt.Close()
			return nil, domain.NewConfigurationError("S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the document archive")
		}
		archive, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		rt.Archive = archive
	}

	return rt, nil
}

// startCommand opens the root transaction that the service spans attach to.
func startCommand(ctx context.Context, name string) (context.Context, *telemetry.Span) {
	return telemetry.StartTransaction(ctx, "pdfrag "+name, "cli."+name)
}

func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	// 10% sampling in production, everything in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func newVectorStore(ctx context.Context, cfg *config.Config) (service.VectorStore, func(), error) {
	switch cfg.VectorStore {
	case config.VectorStoreQdrant:
		store := repository.NewQdrantStore(repository.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.Collection,
			Dimension:  cfg.EmbeddingDimensions,
		})
		return store, func() {}, nil
	default:
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, nil, domain.NewStorageError("connect", domain.StorageReasonConnectivity, "failed to connect to database", err)
		}
		return repository.NewPGVectorStore(pool, cfg.Collection, cfg.EmbeddingDimensions), pool.Close, nil
	}
}

func openAIConfig(cfg *config.Config) openai.Config {
	return openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      openaisdk.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		MaxBatchInputs:      cfg.EmbeddingBatchSize,
		MaxBatchTokens:      cfg.EmbeddingBatchTokens,
		ChatModel:           cfg.ChatModel,
	}
}

func retrievalConfig(cfg *config.Config) service.RetrievalConfig {
	return service.RetrievalConfig{
		Chunk: service.ChunkConfig{
			MaxSize: cfg.ChunkSize,
			Overlap: cfg.ChunkOverlap,
		},
		TopK:       cfg.TopK,
		Collection: cfg.Collection,
	}
}
