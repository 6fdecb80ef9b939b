package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

const (
	VectorStorePGVector = "pgvector"
	VectorStoreQdrant   = "qdrant"
)

type Config struct {
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	VectorStore  string `envconfig:"VECTOR_STORE" default:"pgvector"`
	Collection   string `envconfig:"COLLECTION" default:"rag_documents"`
	QdrantURL    string `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantAPIKey string `envconfig:"QDRANT_API_KEY"`

	OpenAIAPIKey         string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL        string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel       string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions  int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingBatchSize   int    `envconfig:"EMBEDDING_BATCH_INPUTS" default:"256"`
	EmbeddingBatchTokens int    `envconfig:"EMBEDDING_BATCH_TOKENS" default:"250000"`
	ChatModel            string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"100"`
	TopK         int `envconfig:"TOP_K" default:"5"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"pdfrag-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("PDFRAG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks the settings every pipeline command depends on.
func (c *Config) Validate() error {
	switch c.VectorStore {
	case VectorStorePGVector:
		if c.DatabaseURL == "" {
			return domain.NewConfigurationError("DATABASE_URL is required for the pgvector store")
		}
	case VectorStoreQdrant:
		if c.QdrantURL == "" {
			return domain.NewConfigurationError("QDRANT_URL is required for the qdrant store")
		}
	default:
		return domain.NewConfigurationError(fmt.Sprintf("unknown vector store %q, expected pgvector or qdrant", c.VectorStore))
	}

	if c.EmbeddingDimensions <= 0 {
		return domain.NewConfigurationError("EMBEDDING_DIMENSIONS must be greater than zero")
	}
	if c.ChunkSize <= 0 {
		return domain.ErrInvalidChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return domain.ErrInvalidChunkOverlap
	}
	if c.TopK <= 0 {
		return domain.NewConfigurationError("TOP_K must be greater than zero")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
